package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// LogFileName is the rotating log file under log_dir.
const LogFileName = "xb.log"

// xbHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// Messages and values pass through the redactor before they are written.
type xbHandler struct {
	w        io.Writer
	runID    string
	level    slog.Leveler
	redactor *xb.Redactor
	attrs    []slog.Attr
}

func (h *xbHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *xbHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, h.redactor.String(r.Message))

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *xbHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	fmt.Fprintf(b, "\t%s=%s", a.Key, h.redactor.String(a.Value.Resolve().String()))
}

func (h *xbHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &xbHandler{
		w:        h.w,
		runID:    h.runID,
		level:    h.level,
		redactor: h.redactor,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *xbHandler) WithGroup(string) slog.Handler { return h }

// parseLevel accepts slog level names; empty means info.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// newLogger creates a structured logger that writes to logDir/xb.log, rotated
// by lumberjack, and to stderr. The returned closer closes the log file.
func newLogger(logDir string, cfg config.LoggingConfig, runID string, redactor *xb.Redactor, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	w := io.MultiWriter(file, stderr)
	handler := &xbHandler{w: w, runID: runID, level: level, redactor: redactor}
	return slog.New(handler), file, nil
}

// secretsOf lists configured literal secrets the log redactor must mask.
func secretsOf(cfg *config.Config) []string {
	return []string{cfg.Engine.Password, cfg.Store.SecretKey}
}

// slogAdapter wraps *slog.Logger to satisfy the xb.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
