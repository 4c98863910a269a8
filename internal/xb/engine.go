package xb

import "context"

// Engine drives the external backup tool. Every call blocks until the tool
// exits; no timeout is applied.
type Engine interface {
	// Snapshot takes a backup into targetDir. An empty baseDir takes a full
	// snapshot; otherwise the snapshot is incremental relative to baseDir,
	// which is read but never modified.
	Snapshot(ctx context.Context, targetDir, baseDir string) error

	// Merge prepares baseDir. With an empty incrementalDir it prepares the
	// base alone; otherwise it merges incrementalDir into baseDir. logOnly
	// keeps the base open for further incrementals; false finalizes it.
	Merge(ctx context.Context, baseDir, incrementalDir string, logOnly bool) error

	// CopyBack copies a finalized baseDir into the live data directory.
	CopyBack(ctx context.Context, baseDir, dataDir string) error

	// IsComplete reports whether dir holds the engine's completion marker,
	// i.e. a snapshot run into it finished rather than just started.
	IsComplete(dir string) bool
}

// Archiver turns a directory into a single compressed file and back.
type Archiver interface {
	// Compress writes srcDir into archivePath and returns the archive size.
	Compress(ctx context.Context, srcDir, archivePath string) (int64, error)

	// Extract unpacks archivePath into destDir, creating it if needed.
	Extract(ctx context.Context, archivePath, destDir string) error
}
