// Package workerpool bounds concurrent codec work. Submissions borrow a slot
// from a fixed-size semaphore, run their adapter under a per-step timeout,
// and always return the slot, so the configured concurrency limit holds even
// when adapters time out, panic, or the caller's context is cancelled.
package workerpool
