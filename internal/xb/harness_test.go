package xb_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"xb-go/internal/archive"
	"xb-go/internal/store"
	"xb-go/internal/testutil"
	"xb-go/internal/xb"
)

// faultyStore wraps an ArchiveStore and fails selected operations.
type faultyStore struct {
	xb.ArchiveStore
	listErr   error
	putErr    error
	deleteErr error
}

func (f *faultyStore) List(ctx context.Context, prefix string) ([]xb.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ArchiveStore.List(ctx, prefix)
}

func (f *faultyStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.ArchiveStore.Put(ctx, key, r, size)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ArchiveStore.Delete(ctx, key)
}

type countingPinger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *countingPinger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingObserver struct {
	reports []*xb.TickReport
}

func (o *recordingObserver) TickFinished(r *xb.TickReport) { o.reports = append(o.reports, r) }

// harness wires a Scheduler and Restorer over an in-memory store, the fake
// engine and the real tar.gz archiver. The store stamps objects with the
// stub clock.
type harness struct {
	mem      *store.MemoryStore
	store    *faultyStore
	engine   *testutil.FakeEngine
	work     *xb.WorkDir
	clock    *testutil.StubClock
	logger   *testutil.RecordingLogger
	pinger   *countingPinger
	observer *recordingObserver
	sched    *xb.Scheduler
	restorer *xb.Restorer
	restore  string
}

func newHarness(t *testing.T, policy xb.RetentionPolicy) *harness {
	t.Helper()
	h := &harness{
		mem:      testutil.NewTestStore(),
		engine:   testutil.NewFakeEngine(),
		clock:    testutil.FixedClock(),
		logger:   testutil.NewRecordingLogger(),
		pinger:   &countingPinger{},
		observer: &recordingObserver{},
		restore:  t.TempDir(),
	}
	h.mem.SetClock(h.clock.Now)
	h.store = &faultyStore{ArchiveStore: h.mem}

	work, err := xb.NewWorkDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h.work = work

	archiver := archive.NewTarGz()
	backups := xb.NewBackupService(h.store, h.engine, archiver, work, "tar.gz", h.logger)
	sweeper := xb.NewSweeper(h.store, policy, h.logger)
	ids := testutil.NewStubIDGenerator()
	h.sched = xb.NewScheduler(h.store, backups, sweeper, h.engine, work, h.pinger, h.logger, h.clock, ids)
	h.sched.AddObserver(h.observer)
	h.restorer = xb.NewRestorer(h.store, h.engine, archiver, h.restore, h.logger, ids)
	return h
}

func (h *harness) tick(t *testing.T) *xb.TickReport {
	t.Helper()
	report, err := h.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	return report
}

func (h *harness) catalog(t *testing.T) *xb.Catalog {
	t.Helper()
	objs, err := h.mem.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	return xb.NewCatalog(objs, "tar.gz", nil)
}
