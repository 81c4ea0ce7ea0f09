package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("disk exploded")
	err := Wrap(ErrCodec, "codec", "encode image", "/staging/out.jpg", cause)

	if !errors.Is(err, ErrCodec) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	for _, fragment := range []string{"codec", "encode image", "/staging/out.jpg", "disk exploded"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("message %q missing %q", err.Error(), fragment)
		}
	}
}

func TestWrapDefaultsNilMarker(t *testing.T) {
	err := Wrap(nil, "codec", "encode", "", nil)
	if !errors.Is(err, ErrCodec) {
		t.Fatalf("nil marker error = %v, want codec class", err)
	}
}

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{Wrap(ErrPlanning, "planner", "classify", "unsupported", nil), KindPlanning},
		{Wrap(ErrCodec, "codec", "encode", "", nil), KindCodec},
		{Wrap(ErrTimeout, "pool", "submit", "", nil), KindTimeout},
		{Wrap(ErrResourceExhausted, "codec", "encode", "", nil), KindResourceExhausted},
		{Wrap(ErrUpload, "sink", "store", "", nil), KindUpload},
		{Wrap(ErrCancelled, "pool", "submit", "", nil), KindCancelled},
		{errors.New("something else"), KindUnknown},
		{fmt.Errorf("deep: %w", Wrap(ErrUpload, "sink", "store", "", nil)), KindUpload},
	}
	for _, tc := range cases {
		if got := ClassifyKind(tc.err); got != tc.want {
			t.Errorf("ClassifyKind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(Wrap(ErrPlanning, "planner", "classify", "", nil)) {
		t.Error("planning errors must be terminal")
	}
	if Retryable(Wrap(ErrCancelled, "pool", "submit", "", nil)) {
		t.Error("cancellations must be terminal")
	}
	for _, err := range []error{
		Wrap(ErrCodec, "codec", "encode", "", nil),
		Wrap(ErrTimeout, "pool", "submit", "", nil),
		Wrap(ErrResourceExhausted, "codec", "encode", "", nil),
		Wrap(ErrUpload, "sink", "store", "", nil),
	} {
		if !Retryable(err) {
			t.Errorf("%v must be retryable", err)
		}
	}
}
