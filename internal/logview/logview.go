package logview

import (
	"sort"
	"sync"
	"time"

	"github.com/rainpipe/pdfwatch/internal/model"
)

type entryKey struct {
	timestamp string
	stage     string
	message   string
}

func keyOf(e model.LogEntry) entryKey {
	return entryKey{timestamp: e.Timestamp, stage: e.Stage, message: e.Message}
}

type timedEntry struct {
	entry model.LogEntry
	t     time.Time
}

// Order returns the entries deduplicated and sorted newest first.
// Missing or unparsable timestamps sort as the epoch. Entries with the same
// time keep their input order, the first occurrence of a duplicate wins.
func Order(entries []model.LogEntry) []model.LogEntry {
	seen := make(map[entryKey]struct{}, len(entries))
	timed := make([]timedEntry, 0, len(entries))
	for _, e := range entries {
		k := keyOf(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		timed = append(timed, timedEntry{entry: e, t: e.Time()})
	}

	return sortTimed(timed)
}

func sortTimed(timed []timedEntry) []model.LogEntry {
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].t.After(timed[j].t) })

	res := make([]model.LogEntry, 0, len(timed))
	for _, te := range timed {
		res = append(res, te.entry)
	}
	return res
}

// Aggregator accumulates the log entries of a job across snapshots. Entries
// resent by the server are ignored. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	seen    map[entryKey]struct{}
	entries []timedEntry
}

// NewAggregator returns a new empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: map[entryKey]struct{}{}}
}

// Add merges the entries and returns how many of them were new.
func (a *Aggregator) Add(entries []model.LogEntry) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, e := range entries {
		k := keyOf(e)
		if _, ok := a.seen[k]; ok {
			continue
		}
		a.seen[k] = struct{}{}
		a.entries = append(a.entries, timedEntry{entry: e, t: e.Time()})
		added++
	}
	return added
}

// Entries returns all the merged entries newest first.
func (a *Aggregator) Entries() []model.LogEntry {
	a.mu.Lock()
	timed := make([]timedEntry, len(a.entries))
	copy(timed, a.entries)
	a.mu.Unlock()

	return sortTimed(timed)
}

// Len returns the number of unique entries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.entries)
}

// Reset drops all the entries.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seen = map[entryKey]struct{}{}
	a.entries = nil
}
