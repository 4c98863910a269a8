package xb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockFileName = ".xb.lock"

// WorkDir is the local working-storage root. It holds the resident full
// backup directory for the current day, in-flight incremental directories and
// archives awaiting upload. One process owns it at a time.
type WorkDir struct {
	root string
}

// NewWorkDir creates root if necessary.
func NewWorkDir(root string) (*WorkDir, error) {
	if root == "" {
		return nil, fmt.Errorf("work directory not set")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	return &WorkDir{root: root}, nil
}

// Root returns the directory path.
func (w *WorkDir) Root() string { return w.root }

// Path joins name onto the root.
func (w *WorkDir) Path(name string) string { return filepath.Join(w.root, name) }

// Exists reports whether name exists as a directory.
func (w *WorkDir) Exists(name string) bool {
	info, err := os.Stat(w.Path(name))
	return err == nil && info.IsDir()
}

// Remove deletes name and everything under it. Missing entries are not an
// error.
func (w *WorkDir) Remove(name string) error {
	if err := os.RemoveAll(w.Path(name)); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// FullDirs lists resident full backup directories, oldest first.
func (w *WorkDir) FullDirs() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("reading work directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), fullPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// PruneStaleDirs removes every resident full directory other than today's
// and every incremental directory from an earlier day, and returns the
// removed names. This is the rolling local window: only the current day's
// base stays on disk. Today's failed incremental directories are kept for
// diagnosis until the next day's full backup.
func (w *WorkDir) PruneStaleDirs(now time.Time) ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("reading work directory: %w", err)
	}
	keep := DirName(KindFull, now)
	today := DayOf(now)

	var stale []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			continue
		}
		switch {
		case strings.HasPrefix(name, fullPrefix):
			if name != keep {
				stale = append(stale, name)
			}
		case strings.HasPrefix(name, incrementalPrefix):
			if day := strings.TrimPrefix(name, incrementalPrefix); len(day) < len(today) || day[:len(today)] < today {
				stale = append(stale, name)
			}
		}
	}
	sort.Strings(stale)

	var removed []string
	for _, name := range stale {
		if err := w.Remove(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// ErrLocked is returned by Lock when another instance holds the work
// directory.
var ErrLocked = errors.New("work directory is locked by another instance")

// Lock takes an advisory flock on the lock file. The kernel drops it when
// the holding process exits, so a killed instance never blocks a restart.
// The returned func releases it.
func (w *WorkDir) Lock() (func() error, error) {
	lock := flock.New(w.Path(lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking work directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lock.Path())
	}
	return lock.Unlock, nil
}
