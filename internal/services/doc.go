// Package services provides the shared error taxonomy and context plumbing
// used across pipeline components.
//
// Errors are tagged with sentinel markers (ErrCodec, ErrTimeout, ...) via
// Wrap so the workflow manager can classify failures without inspecting
// message text. Context helpers carry item, step, and correlation identifiers
// into structured logs.
package services
