// Package pipeline holds the pure decision layer of item processing: the
// per-step state machine and the retry backoff schedule. Functions here
// mutate only the item passed in and never touch the store, the clock, or
// the filesystem, so every transition is testable in isolation.
package pipeline
