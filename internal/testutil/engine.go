package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"xb-go/internal/xb"
)

// FakeMarker is the completion marker FakeEngine writes.
const FakeMarker = "xtrabackup_checkpoints"

// MergeCall records one FakeEngine.Merge invocation.
type MergeCall struct {
	Base        string
	Incremental string
	LogOnly     bool
}

// FakeEngine stands in for xtrabackup. Snapshot writes a small directory with
// the completion marker; Merge appends the incremental's payload to the base
// so tests can check ordering on disk.
type FakeEngine struct {
	mu sync.Mutex

	Snapshots []string // target dirs, in call order
	Bases     []string // base dir per snapshot ("" for full)
	Merges    []MergeCall
	CopyBacks [][2]string

	// SnapshotErr fails every Snapshot when set.
	SnapshotErr error
	// FailMergeAt fails the n-th Merge call (1-based); zero never fails.
	FailMergeAt int
	// CopyBackErr fails CopyBack when set.
	CopyBackErr error
	// SkipMarker makes Snapshot leave out the completion marker.
	SkipMarker bool
}

var _ xb.Engine = (*FakeEngine)(nil)

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (e *FakeEngine) Snapshot(_ context.Context, targetDir, baseDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Snapshots = append(e.Snapshots, targetDir)
	e.Bases = append(e.Bases, baseDir)
	if e.SnapshotErr != nil {
		return e.SnapshotErr
	}
	if baseDir != "" {
		if _, err := os.Stat(filepath.Join(baseDir, FakeMarker)); err != nil {
			return fmt.Errorf("base %s is not a complete backup: %w", baseDir, err)
		}
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return err
	}
	payload := filepath.Base(targetDir) + "\n"
	if err := os.WriteFile(filepath.Join(targetDir, "payload"), []byte(payload), 0o640); err != nil {
		return err
	}
	if e.SkipMarker {
		return nil
	}
	kind := "full-backuped"
	if baseDir != "" {
		kind = "incremental"
	}
	return os.WriteFile(filepath.Join(targetDir, FakeMarker), []byte("backup_type = "+kind+"\n"), 0o640)
}

func (e *FakeEngine) Merge(_ context.Context, baseDir, incrementalDir string, logOnly bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Merges = append(e.Merges, MergeCall{Base: baseDir, Incremental: incrementalDir, LogOnly: logOnly})
	if e.FailMergeAt == len(e.Merges) {
		return fmt.Errorf("prepare failed (injected)")
	}
	if _, err := os.Stat(filepath.Join(baseDir, FakeMarker)); err != nil {
		return fmt.Errorf("base %s is not a backup: %w", baseDir, err)
	}
	if incrementalDir == "" {
		return nil
	}
	payload, err := os.ReadFile(filepath.Join(incrementalDir, "payload"))
	if err != nil {
		return fmt.Errorf("incremental %s: %w", incrementalDir, err)
	}
	f, err := os.OpenFile(filepath.Join(baseDir, "payload"), os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(payload)
	return err
}

func (e *FakeEngine) CopyBack(_ context.Context, baseDir, dataDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CopyBacks = append(e.CopyBacks, [2]string{baseDir, dataDir})
	return e.CopyBackErr
}

func (e *FakeEngine) IsComplete(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FakeMarker))
	return err == nil
}

// MergeCalls returns a copy of the recorded merges.
func (e *FakeEngine) MergeCalls() []MergeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MergeCall(nil), e.Merges...)
}

// SnapshotCount returns how many snapshots were attempted.
func (e *FakeEngine) SnapshotCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Snapshots)
}
