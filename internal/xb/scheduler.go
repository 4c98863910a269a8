package xb

import (
	"context"
	"time"
)

// State is the scheduler's view of the current day.
type State int

const (
	// StateNoBaseToday means no complete, uploaded full backup exists for the
	// current UTC day; the tick takes one.
	StateNoBaseToday State = iota + 1
	// StateBaseExists means today's full backup is resident and uploaded; the
	// tick takes an incremental relative to it.
	StateBaseExists
)

func (s State) String() string {
	switch s {
	case StateNoBaseToday:
		return "no-base-today"
	case StateBaseExists:
		return "base-exists"
	default:
		return "unknown"
	}
}

// TickReport is the outcome of one scheduler tick.
type TickReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	State    State
	Result   *BackupResult // nil if the procedure failed or never ran
	Swept    int
	Err      error
}

// TickObserver is notified after every tick, successful or not.
type TickObserver interface {
	TickFinished(report *TickReport)
}

// Pinger emits the optional external liveness signal.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Scheduler decides between full and incremental backups once per tick.
// Its state is rebuilt every tick from the store listing and the work
// directory; nothing is carried between ticks in memory.
type Scheduler struct {
	store     ArchiveStore
	backups   *BackupService
	sweeper   *Sweeper
	engine    Engine
	work      *WorkDir
	pinger    Pinger
	observers []TickObserver
	ext       string
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewScheduler wires a Scheduler. pinger may be nil.
func NewScheduler(store ArchiveStore, backups *BackupService, sweeper *Sweeper, engine Engine, work *WorkDir, pinger Pinger, logger Logger, clock Clock, idgen IDGenerator) *Scheduler {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Scheduler{
		store:   store,
		backups: backups,
		sweeper: sweeper,
		engine:  engine,
		work:    work,
		pinger:  pinger,
		ext:     backups.ext,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// AddObserver registers o to receive every TickReport.
func (s *Scheduler) AddObserver(o TickObserver) {
	s.observers = append(s.observers, o)
}

// Probe returns the state for now. A base exists only when today's full
// directory is on disk, carries the engine's completion marker, and today's
// full key is in the catalog. The returned path is the base directory.
func (s *Scheduler) Probe(now time.Time, catalog *Catalog) (State, string) {
	name := DirName(KindFull, now)
	dir := s.work.Path(name)
	if !s.work.Exists(name) || !s.engine.IsComplete(dir) {
		return StateNoBaseToday, ""
	}
	if _, ok := catalog.Find(FullKey(now, s.ext)); !ok {
		return StateNoBaseToday, ""
	}
	return StateBaseExists, dir
}

// Tick runs one scheduling step: list the store, probe, run the full or
// incremental procedure, then sweep and ping regardless of the outcome. A
// procedure failure is returned as the tick error; nothing retries it.
func (s *Scheduler) Tick(ctx context.Context) (*TickReport, error) {
	now := s.clock.Now().UTC()
	report := &TickReport{RunID: s.idgen.New(), Started: now}

	err := s.tick(ctx, now, report)

	report.Finished = s.clock.Now().UTC()
	report.Err = err
	for _, o := range s.observers {
		o.TickFinished(report)
	}
	if err != nil {
		s.logger.Error("tick failed", "run", report.RunID, "state", report.State.String(), "error", err)
		return report, err
	}
	s.logger.Info("tick complete", "run", report.RunID, "kind", report.Result.Kind.String(), "key", report.Result.Key, "swept", report.Swept)
	return report, nil
}

func (s *Scheduler) tick(ctx context.Context, now time.Time, report *TickReport) error {
	objects, err := s.store.List(ctx, "")
	if err != nil {
		return &StoreError{Op: "list", Err: err}
	}
	catalog := NewCatalog(objects, s.ext, s.logger)

	state, baseDir := s.Probe(now, catalog)
	report.State = state
	s.logger.Debug("probe", "state", state.String(), "base", baseDir)

	var procErr error
	switch state {
	case StateNoBaseToday:
		report.Result, procErr = s.backups.RunFull(ctx, now)
		if procErr == nil {
			removed, err := s.work.PruneStaleDirs(now)
			if err != nil {
				s.logger.Warn("pruning stale working directories", "error", err)
			}
			for _, name := range removed {
				s.logger.Info("removed stale working directory", "dir", name)
			}
		}
	case StateBaseExists:
		report.Result, procErr = s.backups.RunIncremental(ctx, now, baseDir)
	}

	swept, sweepErr := s.sweeper.Sweep(ctx, catalog, now)
	report.Swept = swept
	if sweepErr != nil {
		s.logger.Error("retention sweep failed", "error", sweepErr)
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("liveness ping failed", "error", err)
		}
	}

	if procErr != nil {
		return &TickError{State: state, Kind: kindForState(state), Err: procErr}
	}
	return sweepErr
}

func kindForState(state State) Kind {
	if state == StateBaseExists {
		return KindIncremental
	}
	return KindFull
}

// Run ticks on every trigger firing until ctx is cancelled or a tick fails.
// A failed tick ends the loop with its error; restarting the process is the
// retry mechanism. Cancellation returns nil.
func (s *Scheduler) Run(ctx context.Context, trigger Trigger, runAtStart bool) error {
	if runAtStart {
		if _, err := s.Tick(ctx); err != nil {
			return err
		}
	}
	for {
		now := s.clock.Now()
		next := trigger.Next(now)
		s.logger.Info("next tick scheduled", "at", next.UTC().Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if _, err := s.Tick(ctx); err != nil {
			return err
		}
	}
}
