// Package plan computes the ordered transformation steps for a media item.
//
// Planning is pure and deterministic: the same mime type, source metadata,
// and configuration always produce the same step sequence. Plans are linear
// chains; each step names the prior output (or the original source) it
// consumes, and optional steps are marked so their failures downgrade to
// warnings instead of failing the item.
package plan
