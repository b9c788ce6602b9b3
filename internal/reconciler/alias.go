// ABOUTME: Bounded, time-evicting table mapping placeholder ids to durable ids
// ABOUTME: Misses after the grace period are expected and resolve to nothing

package reconciler

import (
	"time"
)

const (
	// aliasGrace is how long a placeholder id keeps resolving after its
	// event was committed. Frames older than this are stale enough to
	// drop.
	aliasGrace = 30 * time.Second

	// aliasCap bounds the table; the oldest entry is evicted when full.
	aliasCap = 128
)

type aliasEntry struct {
	placeholder string
	durable     string
	expires     time.Time
}

// aliasTable maps placeholder ids to durable ids for a bounded time.
// Not safe for concurrent use; the owning reconciler serializes access.
type aliasTable struct {
	now     func() time.Time
	entries []aliasEntry
}

func newAliasTable(now func() time.Time) *aliasTable {
	if now == nil {
		now = time.Now
	}
	return &aliasTable{now: now}
}

// Add records a mapping. Expired entries are purged first; if the table
// is still full the oldest mapping is evicted.
func (t *aliasTable) Add(placeholder, durable string) {
	t.purge()
	if len(t.entries) >= aliasCap {
		t.entries = t.entries[1:]
	}
	t.entries = append(t.entries, aliasEntry{
		placeholder: placeholder,
		durable:     durable,
		expires:     t.now().Add(aliasGrace),
	})
}

// Resolve returns the durable id for a placeholder, ok=false when the
// mapping never existed or has expired.
func (t *aliasTable) Resolve(placeholder string) (string, bool) {
	now := t.now()
	for _, e := range t.entries {
		if e.placeholder == placeholder && now.Before(e.expires) {
			return e.durable, true
		}
	}
	return "", false
}

func (t *aliasTable) purge() {
	now := t.now()
	kept := t.entries[:0]
	for _, e := range t.entries {
		if now.Before(e.expires) {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}
