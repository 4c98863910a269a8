package xb

import (
	"fmt"
	"sort"
)

// Chain is the ordered set of archives needed to restore one backup: a full
// backup followed by zero or more same-day incrementals, oldest first. The
// last element is the selected target.
type Chain []BackupRecord

// Full returns the base of the chain.
func (c Chain) Full() BackupRecord { return c[0] }

// Incrementals returns everything after the full backup.
func (c Chain) Incrementals() []BackupRecord { return c[1:] }

// Target returns the backup the chain restores.
func (c Chain) Target() BackupRecord { return c[len(c)-1] }

// TotalSize sums the stored sizes of every archive in the chain.
func (c Chain) TotalSize() int64 {
	var total int64
	for _, r := range c {
		total += r.Size
	}
	return total
}

// ResolveChain computes the archives required to restore target. It performs
// no I/O. An incremental target without a full backup on the same UTC day
// yields *MissingBaseBackupError.
func ResolveChain(catalog *Catalog, target BackupRecord) (Chain, error) {
	if target.Kind == KindFull {
		return Chain{target}, nil
	}
	if target.Kind != KindIncremental {
		return nil, fmt.Errorf("backup %s has unknown kind", target.Key)
	}

	day := target.Day()
	full, ok := catalog.FullForDay(day)
	if !ok {
		return nil, &MissingBaseBackupError{Day: day}
	}

	var incs []BackupRecord
	for _, r := range catalog.records {
		if r.Kind != KindIncremental || r.Day() != day {
			continue
		}
		if r.Timestamp.Before(full.Timestamp) || r.Timestamp.After(target.Timestamp) {
			continue
		}
		incs = append(incs, r)
	}
	sort.SliceStable(incs, func(i, j int) bool {
		if !incs[i].Timestamp.Equal(incs[j].Timestamp) {
			return incs[i].Timestamp.Before(incs[j].Timestamp)
		}
		return incs[i].Key < incs[j].Key
	})

	chain := append(Chain{full}, incs...)
	if chain.Target().Key != target.Key {
		// Equal-second incrementals can sort after the target; cut there.
		idx := -1
		for i, r := range chain {
			if r.Key == target.Key {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("resolving chain for %s: target missing from catalog", target.Key)
		}
		chain = chain[:idx+1]
	}
	return chain, nil
}
