package queue

import (
	"testing"
	"time"
)

func TestStoredTimestampsCompareLexically(t *testing.T) {
	// A whole-second value must sort before one half a second later even as
	// a string; a trimming layout would put "…30Z" after "…30.5Z".
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	later := base.Add(500 * time.Millisecond)

	a := nullableTime(&base).(string)
	b := nullableTime(&later).(string)
	if a >= b {
		t.Fatalf("stored order %q >= %q, want chronological", a, b)
	}

	parsed, err := parseTimeString(a)
	if err != nil {
		t.Fatalf("parseTimeString: %v", err)
	}
	if !parsed.Equal(base) {
		t.Fatalf("round trip = %v, want %v", parsed, base)
	}
}
