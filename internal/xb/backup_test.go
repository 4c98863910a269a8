package xb_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"xb-go/internal/archive"
	"xb-go/internal/testutil"
	"xb-go/internal/xb"
)

func newBackupService(t *testing.T) (*xb.BackupService, *testutil.FakeEngine, *xb.WorkDir, *faultyStore) {
	t.Helper()
	work, err := xb.NewWorkDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eng := testutil.NewFakeEngine()
	s := &faultyStore{ArchiveStore: testutil.NewTestStore()}
	return xb.NewBackupService(s, eng, archive.NewTarGz(), work, ".tar.gz", nil), eng, work, s
}

func TestBackupService_RunFullClearsStaleDirectory(t *testing.T) {
	svc, _, work, _ := newBackupService(t)
	now := testutil.FixedClock().Now()

	stale := work.Path("full_backup_20240115")
	if err := os.MkdirAll(stale, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale+"/ib_logfile0", []byte("half written"), 0o640); err != nil {
		t.Fatal(err)
	}

	res, err := svc.RunFull(context.Background(), now)
	if err != nil {
		t.Fatalf("RunFull() error = %v", err)
	}
	if _, err := os.Stat(stale + "/ib_logfile0"); !os.IsNotExist(err) {
		t.Error("stale file survived the retaken full backup")
	}
	if res.Size <= 0 || res.Dir != stale {
		t.Errorf("result = %+v", res)
	}
}

func TestBackupService_RunIncrementalRefusesExistingDirectory(t *testing.T) {
	svc, eng, work, _ := newBackupService(t)
	now := testutil.FixedClock().Now()
	if _, err := svc.RunFull(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(work.Path(xb.DirName(xb.KindIncremental, now)), 0o750); err != nil {
		t.Fatal(err)
	}

	_, err := svc.RunIncremental(context.Background(), now, work.Path("full_backup_20240115"))
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("RunIncremental() error = %v, want already exists", err)
	}
	if eng.SnapshotCount() != 1 {
		t.Error("engine ran for a colliding incremental")
	}
}

func TestBackupService_EngineFailureUploadsNothing(t *testing.T) {
	svc, eng, _, s := newBackupService(t)
	eng.SnapshotErr = &xb.EngineError{Op: "backup", Args: []string{"xtrabackup", "--backup"}, Err: errors.New("exit status 1")}

	_, err := svc.RunFull(context.Background(), testutil.FixedClock().Now())
	var ee *xb.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("RunFull() error = %v, want *EngineError", err)
	}
	objs, _ := s.List(context.Background(), "")
	if len(objs) != 0 {
		t.Errorf("store received %d objects after engine failure", len(objs))
	}
}

func TestBackupService_UploadFailureKeepsIncrementalOut(t *testing.T) {
	svc, _, work, s := newBackupService(t)
	now := testutil.FixedClock().Now()
	if _, err := svc.RunFull(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	s.putErr = errors.New("503 slow down")

	_, err := svc.RunIncremental(context.Background(), now, work.Path("full_backup_20240115"))
	var se *xb.StoreError
	if !errors.As(err, &se) || se.Op != "put" || se.Key != xb.IncrementalKey(now, "tar.gz") {
		t.Fatalf("RunIncremental() error = %v, want put *StoreError", err)
	}
	objs, _ := s.List(context.Background(), "")
	if len(objs) != 1 {
		t.Errorf("store has %d objects, want only the full", len(objs))
	}
}
