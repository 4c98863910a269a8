package xb

import (
	"context"
	"time"
)

// RetentionPolicy controls the age-based sweep of stored archives.
type RetentionPolicy struct {
	// Window is how long an archive is kept after its last-modified time.
	// Zero disables the sweep.
	Window time.Duration
	// Strict keeps a full backup while any incremental of the same day is
	// still inside the window, so a surviving chain never loses its base.
	Strict bool
}

// Sweeper deletes archives that fell out of the retention window.
type Sweeper struct {
	store  ArchiveStore
	policy RetentionPolicy
	logger Logger
}

func NewSweeper(store ArchiveStore, policy RetentionPolicy, logger Logger) *Sweeper {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Sweeper{store: store, policy: policy, logger: logger}
}

// Policy returns the configured policy.
func (s *Sweeper) Policy() RetentionPolicy { return s.policy }

// Cutoff returns the oldest last-modified time that survives a sweep at now.
func (s *Sweeper) Cutoff(now time.Time) time.Time {
	return now.Add(-s.policy.Window)
}

// Sweep deletes expired archives relative to now and returns how many were
// deleted. A zero window deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context, catalog *Catalog, now time.Time) (int, error) {
	if s.policy.Window <= 0 {
		return 0, nil
	}
	return s.SweepBefore(ctx, catalog, s.Cutoff(now))
}

// SweepBefore deletes every archive last modified strictly before cutoff.
// The first failed delete aborts the sweep.
func (s *Sweeper) SweepBefore(ctx context.Context, catalog *Catalog, cutoff time.Time) (int, error) {
	return s.Delete(ctx, s.Expired(catalog, cutoff))
}

// Delete removes records in order and returns how many were deleted before
// the first failure.
func (s *Sweeper) Delete(ctx context.Context, records []BackupRecord) (int, error) {
	deleted := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := s.store.Delete(ctx, r.Key); err != nil {
			return deleted, &StoreError{Op: "delete", Key: r.Key, Err: err}
		}
		deleted++
		s.logger.Info("expired backup deleted", "key", r.Key, "last_modified", r.LastModified.UTC().Format(time.RFC3339))
	}
	return deleted, nil
}

// Expired returns the records a sweep at cutoff would delete, oldest first.
func (s *Sweeper) Expired(catalog *Catalog, cutoff time.Time) []BackupRecord {
	all := catalog.All()

	liveDays := map[string]bool{}
	if s.policy.Strict {
		for _, r := range all {
			if r.Kind == KindIncremental && !r.LastModified.Before(cutoff) {
				liveDays[r.Day()] = true
			}
		}
	}

	var expired []BackupRecord
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if !r.LastModified.Before(cutoff) {
			continue
		}
		if r.Kind == KindFull && liveDays[r.Day()] {
			s.logger.Warn("keeping expired full backup with live incrementals", "key", r.Key)
			continue
		}
		expired = append(expired, r)
	}
	return expired
}
