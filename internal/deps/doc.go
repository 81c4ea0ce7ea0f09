// Package deps checks that external binaries the pipeline shells out to are
// present before any work is accepted.
package deps
