package xb

import (
	"errors"
	"sort"
	"time"
)

// DefaultListingSize bounds the catalog view shown to an operator.
const DefaultListingSize = 20

// BackupRecord is the identity of one stored archive. Kind and Timestamp are
// derived from Key; Size and LastModified come from the store.
type BackupRecord struct {
	Key          string
	Kind         Kind
	Timestamp    time.Time
	Size         int64
	LastModified time.Time
}

// Day returns the UTC calendar day the backup belongs to.
func (r BackupRecord) Day() string { return DayOf(r.Timestamp) }

// Catalog is the set of known backups, newest first.
type Catalog struct {
	records []BackupRecord
}

// NewCatalog builds a catalog from a store listing. Objects without the
// archive extension are ignored; objects with the extension that fail to
// parse are logged and skipped. Duplicate keys keep their first occurrence.
func NewCatalog(objects []ObjectInfo, ext string, logger Logger) *Catalog {
	if logger == nil {
		logger = NewNopLogger()
	}
	seen := make(map[string]bool, len(objects))
	records := make([]BackupRecord, 0, len(objects))
	for _, obj := range objects {
		if !HasArchiveExt(obj.Key, ext) || seen[obj.Key] {
			continue
		}
		kind, ts, err := ParseKey(obj.Key, ext)
		if err != nil {
			var mk *MalformedKeyError
			if errors.As(err, &mk) {
				logger.Warn("skipping malformed catalog entry", "key", obj.Key, "reason", mk.Reason)
				continue
			}
			logger.Warn("skipping catalog entry", "key", obj.Key, "error", err)
			continue
		}
		seen[obj.Key] = true
		records = append(records, BackupRecord{
			Key:          obj.Key,
			Kind:         kind,
			Timestamp:    ts,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].Key < records[j].Key
	})
	return &Catalog{records: records}
}

// Len returns the number of records.
func (c *Catalog) Len() int { return len(c.records) }

// All returns every record, newest first.
func (c *Catalog) All() []BackupRecord {
	return append([]BackupRecord(nil), c.records...)
}

// Recent returns at most n records, newest first.
func (c *Catalog) Recent(n int) []BackupRecord {
	if n <= 0 || n > len(c.records) {
		n = len(c.records)
	}
	return append([]BackupRecord(nil), c.records[:n]...)
}

// Find looks up a record by its exact store key.
func (c *Catalog) Find(key string) (BackupRecord, bool) {
	for _, r := range c.records {
		if r.Key == key {
			return r, true
		}
	}
	return BackupRecord{}, false
}

// FullForDay returns the full backup whose key encodes day (YYYYMMDD).
func (c *Catalog) FullForDay(day string) (BackupRecord, bool) {
	for _, r := range c.records {
		if r.Kind == KindFull && r.Day() == day {
			return r, true
		}
	}
	return BackupRecord{}, false
}
