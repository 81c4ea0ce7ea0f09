// Package workflow drives queue items through their planned steps. One
// scheduler goroutine picks ready items in FIFO order with retry-elapsed
// items first, dispatches at most one active step per item through the
// worker pool, folds worker results into persisted state, hands finished
// items to the upload sink, and publishes lifecycle transitions on the
// notification bus.
package workflow
