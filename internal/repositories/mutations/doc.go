// Package mutations persists the queue of pending mutations.
//
// Rows are listed oldest first: by enqueued_at, then by id for rows sharing
// a timestamp. Headers are stored as JSON, the body verbatim.
package mutations
