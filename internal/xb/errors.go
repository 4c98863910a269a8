package xb

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// MalformedKeyError reports a store key that carries the archive extension
// but matches neither the full nor the incremental naming pattern.
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed backup key %q: %s", e.Key, e.Reason)
}

// MissingBaseBackupError is returned when an incremental backup has no full
// backup on the same calendar day. The chain cannot be restored.
type MissingBaseBackupError struct {
	Day string // YYYYMMDD
}

func (e *MissingBaseBackupError) Error() string {
	return fmt.Sprintf("no full backup for day %s: incremental chain is not restorable", e.Day)
}

// EngineError reports a non-zero exit (or failed start) of the backup engine.
// Args are already redacted.
type EngineError struct {
	Op   string
	Args []string
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed: %s: %v", e.Op, shellquote.Join(e.Args...), e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// StoreError reports a failed Archive Store call.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("archive store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("archive store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LivenessPingError reports a failed liveness signal. It is logged, never
// returned from a tick.
type LivenessPingError struct {
	URL string
	Err error
}

func (e *LivenessPingError) Error() string {
	return fmt.Sprintf("liveness ping %s: %v", e.URL, e.Err)
}

func (e *LivenessPingError) Unwrap() error { return e.Err }

// StageError names the restore stage that failed. Partial state is left on
// disk; Dir points at it when known.
type StageError struct {
	Stage string
	Key   string
	Dir   string
	Err   error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "restore stage %s", e.Stage)
	if e.Key != "" {
		fmt.Fprintf(&b, " (%s)", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Dir != "" {
		fmt.Fprintf(&b, "; partial state left in %s", e.Dir)
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// TickError reports a failed full or incremental procedure. The scheduler
// state is not advanced; the next tick probes again from scratch.
type TickError struct {
	State State
	Kind  Kind
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%s backup failed in state %s: %v", e.Kind, e.State, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }
