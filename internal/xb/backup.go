package xb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupResult describes one completed backup procedure.
type BackupResult struct {
	Kind Kind
	Key  string
	Size int64
	Dir  string // local directory the engine wrote; removed for incrementals
}

// BackupService runs the backup-side procedures: snapshot, compress, upload,
// clean up. It holds no state between calls.
type BackupService struct {
	store    ArchiveStore
	engine   Engine
	archiver Archiver
	work     *WorkDir
	ext      string
	logger   Logger
}

// NewBackupService creates a BackupService writing into work and uploading
// archives with extension ext.
func NewBackupService(store ArchiveStore, engine Engine, archiver Archiver, work *WorkDir, ext string, logger Logger) *BackupService {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &BackupService{
		store:    store,
		engine:   engine,
		archiver: archiver,
		work:     work,
		ext:      NormalizeExt(ext),
		logger:   logger,
	}
}

// RunFull takes today's full backup. The snapshot directory stays resident as
// the base for the day's incrementals; only the local archive is removed.
// On failure the directory is left in place for diagnosis.
func (s *BackupService) RunFull(ctx context.Context, now time.Time) (*BackupResult, error) {
	name := DirName(KindFull, now)
	key := FullKey(now, s.ext)

	// A leftover directory without the completion marker is an interrupted
	// run; the engine needs an empty target.
	if err := s.work.Remove(name); err != nil {
		return nil, fmt.Errorf("clearing stale full backup directory: %w", err)
	}

	dir := s.work.Path(name)
	s.logger.Info("full backup started", "dir", dir, "key", key)
	if err := s.engine.Snapshot(ctx, dir, ""); err != nil {
		return nil, fmt.Errorf("full snapshot: %w", err)
	}

	size, err := s.archiveAndUpload(ctx, dir, key)
	if err != nil {
		return nil, err
	}

	s.logger.Info("full backup uploaded", "key", key, "size", size)
	return &BackupResult{Kind: KindFull, Key: key, Size: size, Dir: dir}, nil
}

// RunIncremental takes an incremental backup relative to baseDir. The
// incremental directory is removed once its archive is uploaded.
func (s *BackupService) RunIncremental(ctx context.Context, now time.Time, baseDir string) (*BackupResult, error) {
	name := DirName(KindIncremental, now)
	key := IncrementalKey(now, s.ext)

	if s.work.Exists(name) {
		return nil, fmt.Errorf("incremental directory %s already exists", name)
	}

	dir := s.work.Path(name)
	s.logger.Info("incremental backup started", "dir", dir, "base", baseDir, "key", key)
	if err := s.engine.Snapshot(ctx, dir, baseDir); err != nil {
		return nil, fmt.Errorf("incremental snapshot: %w", err)
	}

	size, err := s.archiveAndUpload(ctx, dir, key)
	if err != nil {
		return nil, err
	}

	if err := s.work.Remove(name); err != nil {
		return nil, fmt.Errorf("removing incremental directory: %w", err)
	}

	s.logger.Info("incremental backup uploaded", "key", key, "size", size)
	return &BackupResult{Kind: KindIncremental, Key: key, Size: size, Dir: dir}, nil
}

// archiveAndUpload compresses dir next to itself, uploads it under key and
// removes the local archive once the upload succeeded.
func (s *BackupService) archiveAndUpload(ctx context.Context, dir, key string) (int64, error) {
	archivePath := s.work.Path(filepath.Base(key))

	size, err := s.archiver.Compress(ctx, dir, archivePath)
	if err != nil {
		return 0, fmt.Errorf("compressing %s: %w", filepath.Base(dir), err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	putErr := s.store.Put(ctx, key, f, size)
	f.Close()
	if putErr != nil {
		return 0, &StoreError{Op: "put", Key: key, Err: putErr}
	}

	if err := os.Remove(archivePath); err != nil {
		return 0, fmt.Errorf("removing local archive: %w", err)
	}
	return size, nil
}
