// Package pipeline runs scans over many targets concurrently.
//
// A BatchProcessor pulls targets from a sequence, scans up to a fixed number
// of them at a time, and hands each result to a callback as soon as it is
// ready. Results therefore arrive in completion order, not in address order.
// A failed scan never stops the batch; cancelling the context stops
// dispatching new targets while the scans already running finish.
package pipeline
