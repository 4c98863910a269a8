package xb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Restore stage names used in StageError.
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StagePrepare  = "prepare"
	StageMerge    = "merge"
	StageCleanup  = "cleanup"
	StageActivate = "activate"
)

// Restorer turns a resolved chain into a single prepared backup directory.
// Every stage runs synchronously and in order; the first failure aborts the
// restore and leaves partial state in place.
type Restorer struct {
	store    ArchiveStore
	engine   Engine
	archiver Archiver
	root     string
	logger   Logger
	idgen    IDGenerator
}

// NewRestorer creates a Restorer whose workspaces live under root.
func NewRestorer(store ArchiveStore, engine Engine, archiver Archiver, root string, logger Logger, idgen IDGenerator) *Restorer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Restorer{
		store:    store,
		engine:   engine,
		archiver: archiver,
		root:     root,
		logger:   logger,
		idgen:    idgen,
	}
}

// RestoreResult describes a prepared restore.
type RestoreResult struct {
	RunID   string
	BaseDir string
	Chain   Chain
}

// Restore downloads, extracts and merges chain into
// <root>/<runID>/base and returns that path. The base directory is never
// deleted by the restorer.
func (r *Restorer) Restore(ctx context.Context, chain Chain) (*RestoreResult, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("restore: empty chain")
	}

	runID := r.idgen.New()
	workspace := filepath.Join(r.root, runID)
	if err := os.MkdirAll(workspace, 0o750); err != nil {
		return nil, &StageError{Stage: StagePrepare, Dir: workspace, Err: err}
	}
	base := filepath.Join(workspace, "base")

	full := chain.Full()
	r.logger.Info("restore started", "run", runID, "full", full.Key, "incrementals", len(chain.Incrementals()))

	if err := r.fetch(ctx, full, workspace, base); err != nil {
		return nil, err
	}

	incs := chain.Incrementals()
	if len(incs) == 0 {
		if err := r.engine.Merge(ctx, base, "", false); err != nil {
			return nil, &StageError{Stage: StagePrepare, Key: full.Key, Dir: base, Err: err}
		}
		r.logger.Info("restore prepared", "run", runID, "dir", base)
		return &RestoreResult{RunID: runID, BaseDir: base, Chain: chain}, nil
	}

	if err := r.engine.Merge(ctx, base, "", true); err != nil {
		return nil, &StageError{Stage: StagePrepare, Key: full.Key, Dir: base, Err: err}
	}

	for i, inc := range incs {
		last := i == len(incs)-1
		dir := filepath.Join(workspace, DirName(KindIncremental, inc.Timestamp))
		if err := r.fetch(ctx, inc, workspace, dir); err != nil {
			return nil, err
		}

		r.logger.Info("merging incremental", "key", inc.Key, "final", last)
		if err := r.engine.Merge(ctx, base, dir, !last); err != nil {
			return nil, &StageError{Stage: StageMerge, Key: inc.Key, Dir: workspace, Err: err}
		}

		if err := os.RemoveAll(dir); err != nil {
			return nil, &StageError{Stage: StageCleanup, Key: inc.Key, Dir: dir, Err: err}
		}
	}

	r.logger.Info("restore prepared", "run", runID, "dir", base)
	return &RestoreResult{RunID: runID, BaseDir: base, Chain: chain}, nil
}

// fetch downloads rec into workspace, extracts it into dest and removes the
// downloaded archive.
func (r *Restorer) fetch(ctx context.Context, rec BackupRecord, workspace, dest string) error {
	archivePath := filepath.Join(workspace, filepath.Base(rec.Key))

	f, err := os.OpenFile(archivePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &StageError{Stage: StageDownload, Key: rec.Key, Dir: workspace, Err: err}
	}
	r.logger.Debug("downloading", "key", rec.Key, "to", archivePath)
	getErr := r.store.Get(ctx, rec.Key, f)
	closeErr := f.Close()
	if getErr != nil {
		return &StageError{Stage: StageDownload, Key: rec.Key, Dir: workspace, Err: &StoreError{Op: "get", Key: rec.Key, Err: getErr}}
	}
	if closeErr != nil {
		return &StageError{Stage: StageDownload, Key: rec.Key, Dir: workspace, Err: closeErr}
	}

	if err := r.archiver.Extract(ctx, archivePath, dest); err != nil {
		return &StageError{Stage: StageExtract, Key: rec.Key, Dir: workspace, Err: err}
	}
	if err := os.Remove(archivePath); err != nil {
		return &StageError{Stage: StageCleanup, Key: rec.Key, Dir: workspace, Err: err}
	}
	return nil
}

// Activate copies a prepared base directory back into the database data
// directory using the engine.
func (r *Restorer) Activate(ctx context.Context, base, dataDir string) error {
	if dataDir == "" {
		return &StageError{Stage: StageActivate, Dir: base, Err: fmt.Errorf("data directory not set")}
	}
	r.logger.Info("copying back prepared backup", "from", base, "to", dataDir)
	if err := r.engine.CopyBack(ctx, base, dataDir); err != nil {
		return &StageError{Stage: StageActivate, Dir: base, Err: err}
	}
	return nil
}
