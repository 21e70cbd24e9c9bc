// Package catchlog writes fishing catches and session summaries to PostgreSQL.
//
// Catches are batched and flushed when the batch is full or on a timer.
// Session summaries are written as they arrive, after any pending catches.
// Inserts are idempotent (ON CONFLICT DO NOTHING).
package catchlog
