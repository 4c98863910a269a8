package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"xb-go/internal/archive"
	"xb-go/internal/config"
	"xb-go/internal/database"
	"xb-go/internal/encryption"
	"xb-go/internal/engine"
	"xb-go/internal/liveness"
	"xb-go/internal/metrics"
	"xb-go/internal/store"
	"xb-go/internal/xb"
)

// XBApp is the application layer between the CLI and the xb services.
// It constructs all dependencies from config and closes the history
// database and log file on Close.
type XBApp struct {
	cfg       *config.Config
	runID     string
	store     xb.ArchiveStore
	encrypted *store.EncryptedStore // nil when archives are stored in the clear
	engine    xb.Engine
	work      *xb.WorkDir
	history   xb.History
	metrics   *metrics.Collector
	sweeper   *xb.Sweeper
	scheduler *xb.Scheduler
	restorer  *xb.Restorer
	logger    xb.Logger
	clock     xb.Clock
	idgen     xb.IDGenerator
	logFile   io.Closer
}

// Option overrides a dependency NewXBApp would otherwise build from config.
type Option func(*options)

type options struct {
	engine xb.Engine
	stderr io.Writer
	clock  xb.Clock
	idgen  xb.IDGenerator
}

// WithEngine replaces the configured xtrabackup engine.
func WithEngine(e xb.Engine) Option { return func(o *options) { o.engine = e } }

// WithStderr sends console log output to w instead of os.Stderr.
func WithStderr(w io.Writer) Option { return func(o *options) { o.stderr = w } }

// WithClock replaces the wall clock.
func WithClock(c xb.Clock) Option { return func(o *options) { o.clock = c } }

// WithIDGenerator replaces the UUID run ID generator.
func WithIDGenerator(g xb.IDGenerator) Option { return func(o *options) { o.idgen = g } }

// NewXBApp validates cfg and creates a fully wired XBApp. The caller must
// call Close when done.
func NewXBApp(ctx context.Context, cfg *config.Config, opts ...Option) (*XBApp, error) {
	o := options{stderr: os.Stderr, clock: xb.RealClock{}, idgen: xb.UUIDGenerator{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	window, err := cfg.RetentionWindow()
	if err != nil {
		return nil, err
	}

	runID := o.idgen.New()
	slogger, logFile, err := newLogger(cfg.LogDir, cfg.Logging, runID, xb.NewRedactor(secretsOf(cfg)...), o.stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &XBApp{
		cfg:     cfg,
		runID:   runID,
		logger:  logger,
		clock:   o.clock,
		idgen:   o.idgen,
		logFile: logFile,
	}
	if err := a.wire(ctx, o, window); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *XBApp) wire(ctx context.Context, o options, window time.Duration) error {
	cfg := a.cfg

	work, err := xb.NewWorkDir(cfg.WorkDir)
	if err != nil {
		return err
	}
	a.work = work

	inner, err := store.NewStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("creating archive store: %w", err)
	}
	a.store = inner

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil {
		a.encrypted = store.NewEncryptedStore(inner, enc, cfg.WorkDir)
		a.store = a.encrypted
	}

	a.engine = o.engine
	if a.engine == nil {
		a.engine = engine.NewXtrabackup(cfg.Engine, engine.ExecRunner{}, a.logger)
	}

	history, err := database.NewHistoryFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	a.history = history

	pinger, err := liveness.NewPingerFromConfig(cfg.Liveness)
	if err != nil {
		return err
	}

	archiver := archive.NewTarGz()
	backups := xb.NewBackupService(a.store, a.engine, archiver, work, cfg.ArchiveExt, a.logger)
	a.sweeper = xb.NewSweeper(a.store, xb.RetentionPolicy{Window: window, Strict: cfg.Retention.Strict}, a.logger)
	a.scheduler = xb.NewScheduler(a.store, backups, a.sweeper, a.engine, work, pinger, a.logger, a.clock, a.idgen)
	a.restorer = xb.NewRestorer(a.store, a.engine, archiver, cfg.RestoreDir, a.logger, a.idgen)

	a.metrics = metrics.NewCollector()
	a.scheduler.AddObserver(xb.NewHistoryObserver(history, a.logger))
	a.scheduler.AddObserver(a.metrics)
	return nil
}

// RunID identifies this process in log lines.
func (a *XBApp) RunID() string { return a.runID }

// Config returns the validated configuration.
func (a *XBApp) Config() *config.Config { return a.cfg }

func (a *XBApp) trigger() (xb.Trigger, error) {
	if a.cfg.Schedule.Cron != "" {
		return xb.ParseTrigger(a.cfg.Schedule.Cron)
	}
	d, err := config.ParseDuration(a.cfg.Schedule.Interval)
	if err != nil {
		return nil, fmt.Errorf("schedule.interval: %w", err)
	}
	return xb.IntervalTrigger(d)
}

// Run holds the work directory lock and ticks on schedule until ctx is
// cancelled or a tick fails. The metrics endpoint is served alongside when
// configured.
func (a *XBApp) Run(ctx context.Context) error {
	trigger, err := a.trigger()
	if err != nil {
		return err
	}
	release, err := a.work.Lock()
	if err != nil {
		return err
	}
	defer release()

	if err := a.store.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("archive store not ready: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return a.metrics.Serve(gctx, a.cfg.Metrics.Listen, a.logger)
		})
	}
	g.Go(func() error {
		return a.scheduler.Run(gctx, trigger, a.cfg.Schedule.RunAtStart)
	})
	spec, _ := a.cfg.ScheduleSpec()
	a.logger.Info("scheduler started", "schedule", spec, "run_at_start", a.cfg.Schedule.RunAtStart)
	return g.Wait()
}

// Tick runs a single scheduler tick under the work directory lock.
func (a *XBApp) Tick(ctx context.Context) (*xb.TickReport, error) {
	release, err := a.work.Lock()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := a.store.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("archive store not ready: %w", err)
	}
	return a.scheduler.Tick(ctx)
}

// Catalog lists the archive store.
func (a *XBApp) Catalog(ctx context.Context) (*xb.Catalog, error) {
	objects, err := a.store.List(ctx, "")
	if err != nil {
		return nil, &xb.StoreError{Op: "list", Err: err}
	}
	return xb.NewCatalog(objects, a.cfg.ArchiveExt, a.logger), nil
}

// ErrBackupNotFound is returned by Resolve for a key absent from the catalog.
var ErrBackupNotFound = errors.New("backup not found")

// Resolve returns the restore chain ending at key.
func (a *XBApp) Resolve(catalog *xb.Catalog, key string) (xb.Chain, error) {
	target, ok := catalog.Find(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, key)
	}
	return xb.ResolveChain(catalog, target)
}

// NeedsPassphrase reports whether restores must Unlock first.
func (a *XBApp) NeedsPassphrase() bool { return a.encrypted != nil }

// Unlock unwraps the archive decryption key. It is a no-op for unencrypted
// stores.
func (a *XBApp) Unlock(passphrase string) error {
	if a.encrypted == nil {
		return nil
	}
	return a.encrypted.Unlock(passphrase)
}

// Restore prepares chain under restore_dir and, when dataDir is set, copies
// the result back into it. Every attempt is recorded in run history.
func (a *XBApp) Restore(ctx context.Context, chain xb.Chain, dataDir string) (*xb.RestoreResult, error) {
	started := a.clock.Now().UTC()
	res, err := a.restorer.Restore(ctx, chain)
	if err == nil && dataDir != "" {
		err = a.restorer.Activate(ctx, res.BaseDir, dataDir)
	}

	rec := xb.RunRecord{
		ID:       a.idgen.New(),
		Op:       xb.OpRestore,
		Started:  started,
		Finished: a.clock.Now().UTC(),
	}
	if res != nil {
		rec.ID = res.RunID
	}
	if len(chain) > 0 {
		rec.Kind = chain.Target().Kind.String()
		rec.Key = chain.Target().Key
		rec.Size = chain.TotalSize()
	}
	if err != nil {
		rec.Error = err.Error()
	}
	a.record(ctx, rec)
	return res, err
}

// Expired returns what a sweep at the current time would delete. A disabled
// retention window expires nothing.
func (a *XBApp) Expired(catalog *xb.Catalog) []xb.BackupRecord {
	if a.sweeper.Policy().Window <= 0 {
		return nil
	}
	return a.sweeper.Expired(catalog, a.sweeper.Cutoff(a.clock.Now()))
}

// Sweep deletes expired archives once, outside the scheduler, and returns
// the deleted records.
func (a *XBApp) Sweep(ctx context.Context) ([]xb.BackupRecord, error) {
	started := a.clock.Now().UTC()
	catalog, err := a.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	expired := a.Expired(catalog)
	n, err := a.sweeper.Delete(ctx, expired)

	rec := xb.RunRecord{
		ID:       a.idgen.New(),
		Op:       xb.OpSweep,
		Swept:    n,
		Started:  started,
		Finished: a.clock.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	a.record(ctx, rec)
	return expired[:n], err
}

// History returns the most recent runs, newest first.
func (a *XBApp) History(ctx context.Context, limit int) ([]xb.RunRecord, error) {
	return a.history.Recent(ctx, limit)
}

func (a *XBApp) record(ctx context.Context, rec xb.RunRecord) {
	if err := a.history.Record(ctx, rec); err != nil {
		a.logger.Warn("recording run history", "run", rec.ID, "error", err)
	}
}

// Close closes the history database and the log file.
func (a *XBApp) Close() error {
	var firstErr error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing run history: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
