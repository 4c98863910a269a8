package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"xb-go/internal/xb"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore(), true)
}

func TestMemoryStore_LastModified(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if err := s.Put(ctx, "full_backup_20240115.tar.gz", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ := s.List(ctx, "")
	if !got[0].LastModified.Equal(now) {
		t.Errorf("LastModified = %v, want %v", got[0].LastModified, now)
	}

	old := now.AddDate(0, 0, -30)
	if err := s.SetLastModified("full_backup_20240115.tar.gz", old); err != nil {
		t.Fatalf("SetLastModified() error = %v", err)
	}
	got, _ = s.List(ctx, "")
	if !got[0].LastModified.Equal(old) {
		t.Errorf("LastModified = %v, want %v", got[0].LastModified, old)
	}

	if err := s.SetLastModified("missing", old); !errors.Is(err, xb.ErrObjectNotFound) {
		t.Errorf("SetLastModified(missing) error = %v, want ErrObjectNotFound", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	if _, err := s.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}
