// Package queue persists media items and their pipeline state in SQLite.
//
// Each item carries its immutable plan, append-only step outputs, per-step
// retry counters, and recorded warnings as JSON columns. The store serializes
// access with WAL mode and busy retries. CanTransition defines status
// transition legality; the workflow manager checks it before persisting so
// items cannot move backwards except along the documented retry and
// cancellation paths.
package queue
