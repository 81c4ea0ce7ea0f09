// Package sink delivers finished renditions to their final home. The local
// backend files assets into the library directory; the S3 backend pushes
// them to a bucket. Both report failures as upload errors so the workflow
// retries them under the standard policy.
package sink
