package testsupport

import (
	"context"
	"testing"

	"mediaprep/internal/config"
	"mediaprep/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem inserts a queue item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, item *queue.Item) *queue.Item {
	t.Helper()

	stored, err := store.NewItem(context.Background(), item)
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return stored
}
