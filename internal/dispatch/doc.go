// Package dispatch implements the send queue and the per-tenant dispatch
// scheduler.
//
// The scheduler is a batch invocation, not a long-running loop: the caller
// (cmd/worker) triggers Run on a timer while holding a single-instance
// lock, since overlapping invocations would double-count the hourly quota
// window. Within one invocation tenants are processed independently and a
// failing candidate never aborts the batch.
//
// Repository implementations live in repository/postgres.
package dispatch
