package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"xb-go/internal/store"
)

// NewTestStore creates an empty in-memory archive store.
func NewTestStore() *store.MemoryStore {
	return store.NewMemoryStore()
}

// SeedStore puts a small placeholder archive under each key with the given
// last-modified time.
func SeedStore(t *testing.T, s *store.MemoryStore, modified time.Time, keys ...string) {
	t.Helper()
	for _, key := range keys {
		body := "archive:" + key
		if err := s.Put(context.Background(), key, strings.NewReader(body), int64(len(body))); err != nil {
			t.Fatalf("seeding %s: %v", key, err)
		}
		if err := s.SetLastModified(key, modified); err != nil {
			t.Fatalf("seeding %s: %v", key, err)
		}
	}
}
