// Package engine drives the external physical backup tool.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kballard/go-shellquote"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// DefaultCompletionMarker is the file xtrabackup writes last into a
// successful backup directory.
const DefaultCompletionMarker = "xtrabackup_checkpoints"

// Xtrabackup implements xb.Engine with Percona XtraBackup (or MariaBackup,
// which accepts the same flags).
type Xtrabackup struct {
	binary    string
	conn      []string
	extraArgs []string
	marker    string
	runner    Runner
	redactor  *xb.Redactor
	logger    xb.Logger
}

var _ xb.Engine = (*Xtrabackup)(nil)

// NewXtrabackup builds an engine from cfg. runner may be nil for ExecRunner.
func NewXtrabackup(cfg config.EngineConfig, runner Runner, logger xb.Logger) *Xtrabackup {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = xb.NewNopLogger()
	}
	marker := cfg.CompletionMarker
	if marker == "" {
		marker = DefaultCompletionMarker
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "xtrabackup"
	}
	return &Xtrabackup{
		binary:    binary,
		conn:      connectionArgs(cfg),
		extraArgs: append([]string(nil), cfg.ExtraArgs...),
		marker:    marker,
		runner:    runner,
		redactor:  xb.NewRedactor(cfg.Password),
		logger:    logger,
	}
}

func connectionArgs(cfg config.EngineConfig) []string {
	var args []string
	if cfg.User != "" {
		args = append(args, "--user="+cfg.User)
	}
	if cfg.Password != "" {
		args = append(args, "--password="+cfg.Password)
	}
	if cfg.Host != "" {
		args = append(args, "--host="+cfg.Host)
	}
	if cfg.Port != 0 {
		args = append(args, "--port="+strconv.Itoa(cfg.Port))
	}
	if cfg.Socket != "" {
		args = append(args, "--socket="+cfg.Socket)
	}
	return args
}

// Snapshot takes a full backup into targetDir, or an incremental one
// relative to baseDir when baseDir is set.
func (x *Xtrabackup) Snapshot(ctx context.Context, targetDir, baseDir string) error {
	args := []string{"--backup", "--target-dir=" + targetDir}
	if baseDir != "" {
		args = append(args, "--incremental-basedir="+baseDir)
	}
	args = append(args, x.conn...)
	args = append(args, x.extraArgs...)
	return x.run(ctx, "backup", args)
}

// Merge prepares baseDir. With incrementalDir set, that incremental is
// applied onto the base. logOnly keeps the base open for further
// incrementals; the final merge must have logOnly false.
func (x *Xtrabackup) Merge(ctx context.Context, baseDir, incrementalDir string, logOnly bool) error {
	args := []string{"--prepare"}
	if logOnly {
		args = append(args, "--apply-log-only")
	}
	args = append(args, "--target-dir="+baseDir)
	if incrementalDir != "" {
		args = append(args, "--incremental-dir="+incrementalDir)
	}
	return x.run(ctx, "prepare", args)
}

// CopyBack copies a prepared backup into an empty data directory.
func (x *Xtrabackup) CopyBack(ctx context.Context, baseDir, dataDir string) error {
	args := []string{"--copy-back", "--target-dir=" + baseDir, "--datadir=" + dataDir}
	return x.run(ctx, "copy-back", args)
}

// IsComplete reports whether dir holds the completion marker.
func (x *Xtrabackup) IsComplete(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, x.marker))
	return err == nil && info.Mode().IsRegular()
}

func (x *Xtrabackup) run(ctx context.Context, op string, args []string) error {
	redacted := xb.RedactArgs(args)
	x.logger.Info("engine started", "op", op, "cmd", shellquote.Join(append([]string{x.binary}, redacted...)...))

	err := x.runner.Run(ctx, x.binary, args, func(stream, line string) {
		x.logger.Info(x.redactor.String(line), "op", op, "stream", stream)
	})
	if err != nil {
		return &xb.EngineError{Op: op, Args: append([]string{x.binary}, redacted...), Err: err}
	}
	x.logger.Info("engine finished", "op", op)
	return nil
}
