package sluggable

import (
	"strings"
)

type ledgerKey struct {
	model string
	field string
}

type ledgerEntry struct {
	scope string
	slug  string
}

// Ledger remembers the slugs assigned to records inserted during the current commit
// cycle, so that siblings which are not yet persisted are seen as collisions.
// It is not safe for concurrent use; a commit cycle runs on one goroutine.
type Ledger struct {
	entries map[ledgerKey][]ledgerEntry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: map[ledgerKey][]ledgerEntry{}}
}

// Reset forgets every recorded slug.
func (l *Ledger) Reset() {
	l.entries = map[ledgerKey][]ledgerEntry{}
}

// Record adds slug to the slugs assigned for model.field within scope.
func (l *Ledger) Record(model, field, scope, slug string) {
	key := ledgerKey{model: model, field: field}
	l.entries[key] = append(l.entries[key], ledgerEntry{scope: scope, slug: slug})
}

// Similar returns the slugs recorded for model.field within scope that start with prefix,
// in the order they were recorded.
func (l *Ledger) Similar(model, field, scope, prefix string) []string {
	var similar []string
	for _, e := range l.entries[ledgerKey{model: model, field: field}] {
		if e.scope == scope && strings.HasPrefix(e.slug, prefix) {
			similar = append(similar, e.slug)
		}
	}
	return similar
}

// Len returns the number of recorded slugs.
func (l *Ledger) Len() int {
	n := 0
	for _, entries := range l.entries {
		n += len(entries)
	}
	return n
}
