package testutil

import (
	"testing"

	"xb-go/internal/database"
	"xb-go/internal/xb"
)

// NewTestHistory creates a migrated in-memory run history. It is closed when
// the test completes.
func NewTestHistory(t *testing.T) xb.History {
	t.Helper()

	h, err := database.NewSQLiteHistory(":memory:")
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() {
		h.Close()
	})
	return h
}
