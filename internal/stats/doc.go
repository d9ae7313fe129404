// Package stats recomputes per-campaign statistics from the delivery event
// log. Recompute is a full rebuild, never an increment, so running it twice
// over the same events always yields the same row.
package stats
