package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xb-go/internal/config"
	"xb-go/internal/store"
	"xb-go/internal/testutil"
	"xb-go/internal/xb"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Store = config.StoreConfig{Type: "memory"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

type testApp struct {
	*XBApp
	engine *testutil.FakeEngine
	clock  *testutil.StubClock
}

func newTestApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()
	eng := testutil.NewFakeEngine()
	clock := testutil.FixedClock()
	a, err := NewXBApp(context.Background(), cfg,
		WithEngine(eng),
		WithStderr(io.Discard),
		WithClock(clock),
		WithIDGenerator(testutil.NewStubIDGenerator()),
	)
	if err != nil {
		t.Fatalf("NewXBApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return &testApp{XBApp: a, engine: eng, clock: clock}
}

func TestNewXBApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkDir = ""

	_, err := NewXBApp(context.Background(), cfg, WithStderr(io.Discard))
	var missing *config.ConfigMissingError
	if !errors.As(err, &missing) || missing.Key != "work_dir" {
		t.Fatalf("NewXBApp() error = %v, want ConfigMissingError for work_dir", err)
	}
}

func TestNewXBApp_UnknownEncryption(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Type = "rot13"

	if _, err := NewXBApp(context.Background(), cfg, WithStderr(io.Discard)); err == nil {
		t.Fatal("expected error for unknown encryption type")
	}
}

func TestXBApp_TickRestoreSweep(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t))

	if a.RunID() != "run-1" {
		t.Errorf("RunID() = %q, want run-1", a.RunID())
	}

	report, err := a.Tick(ctx)
	if err != nil {
		t.Fatalf("first Tick() error = %v", err)
	}
	if report.State != xb.StateNoBaseToday || report.Result.Key != "full_backup_20240115.tar.gz" {
		t.Fatalf("first tick = state %s key %s", report.State, report.Result.Key)
	}

	a.clock.Advance(time.Hour)
	report, err = a.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	incKey := "inc_backup_20240115113000.tar.gz"
	if report.State != xb.StateBaseExists || report.Result.Key != incKey {
		t.Fatalf("second tick = state %s key %s", report.State, report.Result.Key)
	}

	catalog, err := a.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("catalog has %d records, want 2", catalog.Len())
	}

	chain, err := a.Resolve(catalog, incKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if _, err := a.Resolve(catalog, "full_backup_20230101.tar.gz"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrBackupNotFound", err)
	}

	if !a.NeedsPassphrase() {
		t.Fatal("NeedsPassphrase() = false with test encryption")
	}
	if _, err := a.Restore(ctx, chain, ""); !errors.Is(err, store.ErrLocked) {
		t.Fatalf("Restore() before Unlock error = %v, want ErrLocked", err)
	}

	if err := a.Unlock("anything"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	res, err := a.Restore(ctx, chain, "/var/lib/mysql")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	payload, err := os.ReadFile(filepath.Join(res.BaseDir, "payload"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "full_backup_20240115\ninc_backup_20240115113000\n"; string(payload) != want {
		t.Errorf("restored payload = %q, want %q", payload, want)
	}
	if len(a.engine.CopyBacks) != 1 || a.engine.CopyBacks[0] != [2]string{res.BaseDir, "/var/lib/mysql"} {
		t.Errorf("CopyBacks = %v", a.engine.CopyBacks)
	}

	runs, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	wantOps := []string{xb.OpRestore, xb.OpRestore, xb.OpTick, xb.OpTick}
	if len(runs) != len(wantOps) {
		t.Fatalf("History() returned %d runs, want %d", len(runs), len(wantOps))
	}
	for i, op := range wantOps {
		if runs[i].Op != op {
			t.Errorf("runs[%d].Op = %s, want %s", i, runs[i].Op, op)
		}
	}
	if !runs[0].Succeeded() || runs[1].Succeeded() {
		t.Errorf("restore outcomes = %v, %v; want success then failure", runs[0].Succeeded(), runs[1].Succeeded())
	}
	if runs[0].Key != incKey || runs[0].Kind != "incremental" {
		t.Errorf("restore record = %+v", runs[0])
	}

	// Archives carry real upload times; jump past the 7d window.
	a.clock.Set(time.Now().Add(8 * 24 * time.Hour))
	if expired := a.Expired(catalog); len(expired) != 2 {
		t.Fatalf("Expired() = %d records, want 2", len(expired))
	}
	deleted, err := a.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("Sweep() deleted %d, want 2", len(deleted))
	}
	catalog, err = a.Catalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Len() != 0 {
		t.Errorf("catalog has %d records after sweep, want 0", catalog.Len())
	}
}

func TestXBApp_SweepDisabledWindow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Window = "0"
	a := newTestApp(t, cfg)

	if _, err := a.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.clock.Set(time.Now().Add(365 * 24 * time.Hour))

	deleted, err := a.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Sweep() deleted %d with disabled window", len(deleted))
	}
}

func TestXBApp_TickLocked(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	release, err := a.work.Lock()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, err := a.Tick(context.Background()); !errors.Is(err, xb.ErrLocked) {
		t.Errorf("Tick() error = %v, want ErrLocked", err)
	}
	if len(a.engine.Snapshots) != 0 {
		t.Error("engine ran while work directory was locked")
	}
}

func TestXBApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.RunAtStart = true
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for a.engine.SnapshotCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("run-at-start tick never happened")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-deadline:
		t.Fatal("Run() did not return after cancel")
	}
}

func TestXBApp_Trigger(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		cron     string
		after    time.Time
		want     time.Time
		wantErr  bool
	}{
		{
			name:     "interval",
			interval: "2h",
			after:    time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "cron wins over interval",
			interval: "2h",
			cron:     "15 * * * *",
			after:    time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 1, 15, 10, 15, 0, 0, time.UTC),
		},
		{
			name:     "sub-second interval",
			interval: "500ms",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &XBApp{cfg: &config.Config{Schedule: config.ScheduleConfig{Interval: tt.interval, Cron: tt.cron}}}
			trigger, err := a.trigger()
			if (err != nil) != tt.wantErr {
				t.Fatalf("trigger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := trigger.Next(tt.after); !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}
