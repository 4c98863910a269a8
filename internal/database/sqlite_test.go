package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"xb-go/internal/xb"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteHistory() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistory_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	runs := []xb.RunRecord{
		{ID: "run-1", Op: xb.OpTick, Kind: "full", Key: "full_backup_20240115.tar.gz", Size: 4096, Started: base, Finished: base.Add(time.Minute)},
		{ID: "run-2", Op: xb.OpTick, Kind: "incremental", Key: "inc_backup_20240115110000.tar.gz", Size: 512, Swept: 3, Started: base.Add(time.Hour), Finished: base.Add(time.Hour + time.Second)},
		{ID: "run-3", Op: xb.OpTick, Kind: "incremental", Started: base.Add(2 * time.Hour), Finished: base.Add(2 * time.Hour), Error: "archive store put: timeout"},
	}
	for _, r := range runs {
		if err := h.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.ID, err)
		}
	}

	got, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d runs", len(got))
	}
	if got[0].ID != "run-3" || got[1].ID != "run-2" {
		t.Errorf("Recent order = %s, %s; want run-3, run-2", got[0].ID, got[1].ID)
	}
	if got[0].Succeeded() {
		t.Error("run-3 should be a failure")
	}
	if got[1].Swept != 3 || got[1].Size != 512 || got[1].Key != "inc_backup_20240115110000.tar.gz" {
		t.Errorf("run-2 = %+v", got[1])
	}
	if !got[1].Started.Equal(runs[1].Started) || !got[1].Finished.Equal(runs[1].Finished) {
		t.Errorf("times not preserved: %+v", got[1])
	}
}

func TestSQLiteHistory_RecordReplaces(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	rec := xb.RunRecord{ID: "run-1", Op: xb.OpRestore, Started: now, Finished: now}
	if err := h.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Error = "restore stage merge: prepare failed"
	rec.Finished = now.Add(time.Minute)
	if err := h.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d runs, want 1", len(got))
	}
	if got[0].Error != rec.Error {
		t.Errorf("Error = %q, want %q", got[0].Error, rec.Error)
	}
}

func TestSQLiteHistory_FilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "xb.db")
	now := time.Now().UTC()

	h, err := NewSQLiteHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Record(ctx, xb.RunRecord{ID: "a", Op: xb.OpSweep, Swept: 2, Started: now, Finished: now}); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = NewSQLiteHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if err := h.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
	got, err := h.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Swept != 2 {
		t.Errorf("Recent() = %+v", got)
	}
	if h.Path() != path {
		t.Errorf("Path() = %q", h.Path())
	}
}
