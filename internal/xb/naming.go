package xb

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Kind distinguishes full backups from incrementals.
type Kind int

const (
	KindFull Kind = iota + 1
	KindIncremental
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

const (
	fullPrefix        = "full_backup_"
	incrementalPrefix = "inc_backup_"

	// Full keys have day granularity, incremental keys second granularity.
	// Both are rendered in UTC.
	fullLayout        = "20060102"
	incrementalLayout = "20060102150405"

	// DefaultArchiveExt is the archive extension used when none is configured.
	DefaultArchiveExt = "tar.gz"
)

// NormalizeExt strips a leading dot so ".tar.gz" and "tar.gz" are equivalent.
func NormalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return DefaultArchiveExt
	}
	return ext
}

// DayOf returns the UTC calendar day of t as YYYYMMDD.
func DayOf(t time.Time) string {
	return t.UTC().Format(fullLayout)
}

// DirName returns the key stem for a backup of the given kind, which is also
// the name of its local working directory. Two full backups on the same UTC
// day share a name.
func DirName(kind Kind, t time.Time) string {
	t = t.UTC()
	if kind == KindFull {
		return fullPrefix + t.Format(fullLayout)
	}
	return incrementalPrefix + t.Format(incrementalLayout)
}

// KeyFor encodes kind and timestamp as an Archive Store key.
func KeyFor(kind Kind, t time.Time, ext string) string {
	return DirName(kind, t) + "." + NormalizeExt(ext)
}

// FullKey returns full_backup_YYYYMMDD.<ext>.
func FullKey(t time.Time, ext string) string { return KeyFor(KindFull, t, ext) }

// IncrementalKey returns inc_backup_YYYYMMDDHHmmss.<ext>.
func IncrementalKey(t time.Time, ext string) string { return KeyFor(KindIncremental, t, ext) }

// HasArchiveExt reports whether key ends in the archive extension. Keys that
// don't are unrelated objects and are left out of the catalog.
func HasArchiveExt(key, ext string) bool {
	return strings.HasSuffix(path.Base(key), "."+NormalizeExt(ext))
}

// ParseKey decodes a store key back into kind and timestamp. Only the base
// name is considered, so keys below a prefix decode the same way. Full
// backups decode to midnight UTC of their day.
func ParseKey(key, ext string) (Kind, time.Time, error) {
	ext = NormalizeExt(ext)
	name := path.Base(key)
	if !strings.HasSuffix(name, "."+ext) {
		return 0, time.Time{}, &MalformedKeyError{Key: key, Reason: fmt.Sprintf("missing .%s extension", ext)}
	}
	stem := strings.TrimSuffix(name, "."+ext)

	switch {
	case strings.HasPrefix(stem, fullPrefix):
		t, err := parseDigits(strings.TrimPrefix(stem, fullPrefix), fullLayout)
		if err != nil {
			return 0, time.Time{}, &MalformedKeyError{Key: key, Reason: err.Error()}
		}
		return KindFull, t, nil
	case strings.HasPrefix(stem, incrementalPrefix):
		t, err := parseDigits(strings.TrimPrefix(stem, incrementalPrefix), incrementalLayout)
		if err != nil {
			return 0, time.Time{}, &MalformedKeyError{Key: key, Reason: err.Error()}
		}
		return KindIncremental, t, nil
	default:
		return 0, time.Time{}, &MalformedKeyError{Key: key, Reason: "unknown prefix"}
	}
}

func parseDigits(s, layout string) (time.Time, error) {
	if len(s) != len(layout) {
		return time.Time{}, fmt.Errorf("timestamp %q: want %d digits", s, len(layout))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("timestamp %q: non-digit %q", s, r)
		}
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}
