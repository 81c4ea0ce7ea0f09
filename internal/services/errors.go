package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify every failure the pipeline can surface. Retry
// policy keys off these markers: planning and cancellation are terminal,
// everything else is retried within the per-step budget.
var (
	ErrPlanning          = errors.New("planning error")
	ErrCodec             = errors.New("codec error")
	ErrTimeout           = errors.New("timeout")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrUpload            = errors.New("upload error")
	ErrCancelled         = errors.New("cancelled")
)

// Kind is the string classification recorded on failed queue items.
type Kind string

const (
	KindPlanning          Kind = "planning"
	KindCodec             Kind = "codec"
	KindTimeout           Kind = "timeout"
	KindResourceExhausted Kind = "resource_exhausted"
	KindUpload            Kind = "upload"
	KindCancelled         Kind = "cancelled"
	KindUnknown           Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCodec
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ClassifyKind maps an error to its Kind for persistence and retry decisions.
func ClassifyKind(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPlanning):
		return KindPlanning
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, ErrUpload):
		return KindUpload
	case errors.Is(err, ErrCodec):
		return KindCodec
	default:
		return KindUnknown
	}
}

// Retryable reports whether an error should be retried within the per-step
// budget. Planning failures and cancellations are always terminal.
func Retryable(err error) bool {
	switch ClassifyKind(err) {
	case KindPlanning, KindCancelled:
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
