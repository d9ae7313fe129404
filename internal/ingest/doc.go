// Package ingest records engagement and provider feedback against send
// candidates: pixel opens, click redirects, and bounce/delivery webhooks.
//
// Open and click hits are attributed by the candidate's tracking token;
// webhooks are attributed by recipient address to the most recently sent
// candidate. Recording is append-only and best-effort on the public
// endpoints: a pixel request always gets its GIF and a click always gets
// its redirect, whatever happens to the event write.
package ingest
