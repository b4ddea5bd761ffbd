package sluggable

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"gorm-sluggable/pkg/repositories"
	"gorm-sluggable/pkg/transliterate"
)

// Sentinel is assigned to identifier slug fields of records about to be persisted, until
// the real slug is generated.
const Sentinel = "__id__"

// Change is the old and new value of a field in the current commit cycle.
type Change struct {
	Old any
	New any
}

// ChangeSet maps Go field names to their changes. New records report every column.
type ChangeSet map[string]Change

// Has reports whether the named field changed.
func (c ChangeSet) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// ObjectManager is the change tracking of the unit of work driving a commit cycle.
type ObjectManager interface {
	ChangeSet(record any) ChangeSet
	IsNew(record any) bool
	// RecomputeChangeSet is called after the listener wrote a field of record.
	RecomputeChangeSet(record any)
}

// Host is the unit of work committing records.
type Host interface {
	ObjectManager
	ScheduledInserts() []any
	ScheduledUpdates() []any
	ScheduledDeletes() []any
}

// Repositories are the persistence collaborators of a commit cycle.
type Repositories struct {
	Slugs   repositories.SlugRepository
	History repositories.HistoryRepository
}

// Listener generates the slugs of the records of a commit cycle.
// A listener serves one commit cycle at a time.
type Listener struct {
	registry atomic.Pointer[Registry]
	logger   *logrus.Logger
	metrics  *Metrics
	locale   language.Tag
	now      func() time.Time

	mu             sync.RWMutex
	transliterator Transliterator
	managed        map[string]bool

	ledger *Ledger
}

// Option configures a Listener.
type Option func(*Listener)

// WithLocale selects the language of the default transliterator and of case folding.
func WithLocale(tag language.Tag) Option {
	return func(l *Listener) {
		l.locale = tag
		l.transliterator = Transliterator(transliterate.New(tag))
	}
}

// WithTransliterator replaces the default transliterator.
func WithTransliterator(t Transliterator) Option {
	return func(l *Listener) {
		l.transliterator = t
	}
}

// WithMetrics enables counters.
func WithMetrics(m *Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithClock sets the clock used to timestamp history entries.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// NewListener creates a listener for the record types of reg.
func NewListener(reg *Registry, logger *logrus.Logger, opts ...Option) *Listener {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Listener{
		logger:         logger,
		locale:         language.Und,
		now:            time.Now,
		transliterator: Transliterator(transliterate.Default()),
		managed:        map[string]bool{},
		ledger:         NewLedger(),
	}
	l.registry.Store(reg)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the configuration in use.
func (l *Listener) Registry() *Registry {
	return l.registry.Load()
}

// SetRegistry swaps the configuration; the next commit cycle uses it.
func (l *Listener) SetRegistry(reg *Registry) {
	l.registry.Store(reg)
}

// SetTransliterator registers the transliterator used for every slug field.
func (l *Listener) SetTransliterator(t Transliterator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transliterator = t
}

// Transliterator returns the registered transliterator.
func (l *Listener) Transliterator() Transliterator {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transliterator
}

// AddManagedFilter puts the named query filter in the given state while slugs are
// generated. Its previous state is restored afterwards.
func (l *Listener) AddManagedFilter(name string, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.managed[name] = enabled
}

// RemoveManagedFilter stops managing the named filter.
func (l *Listener) RemoveManagedFilter(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.managed, name)
}

// OnBeforeCommit starts a commit cycle.
func (l *Listener) OnBeforeCommit() {
	l.ledger.Reset()
}

// OnAfterCommit ends a commit cycle, whether it succeeded or not.
func (l *Listener) OnAfterCommit() {
	l.ledger.Reset()
}

// OnRecordAboutToPersist marks the unset identifier slugs of a new record with the
// sentinel so that it can be told apart from persisted rows. A manually assigned
// identifier is kept: overwriting it would discard the caller's key before the flush
// gets to urlize and disambiguate it like any other manual slug.
func (l *Listener) OnRecordAboutToPersist(ctx context.Context, record any) {
	meta, ok := l.Registry().Lookup(record)
	if !ok {
		return
	}
	for _, field := range meta.Slugs {
		if !field.Identifier {
			continue
		}
		if current, _ := slugValue(ctx, field.Field, record); current == "" {
			sentinel := Sentinel
			setSlugValue(ctx, field.Field, record, &sentinel)
		}
	}
}

// OnFlush generates the slugs of the scheduled inserts, then of the scheduled updates,
// then removes the slug history of the scheduled deletes.
func (l *Listener) OnFlush(ctx context.Context, host Host, repos Repositories) error {
	reg := l.Registry()
	if reg == nil {
		return nil
	}

	handled := map[any]struct{}{}
	for _, record := range host.ScheduledInserts() {
		meta, ok := reg.Lookup(record)
		if !ok {
			continue
		}
		handled[record] = struct{}{}
		if err := l.generateRecord(ctx, reg, host, repos, meta, record, true); err != nil {
			return err
		}
	}

	for _, record := range host.ScheduledUpdates() {
		if _, ok := handled[record]; ok {
			continue
		}
		meta, ok := reg.Lookup(record)
		if !ok {
			continue
		}
		if err := l.generateRecord(ctx, reg, host, repos, meta, record, false); err != nil {
			return err
		}
	}

	for _, record := range host.ScheduledDeletes() {
		meta, ok := reg.Lookup(record)
		if !ok || !meta.History {
			continue
		}
		if err := l.removeHistory(ctx, repos, meta, record); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) generateRecord(ctx context.Context, reg *Registry, host ObjectManager, repos Repositories, meta *RecordMeta, record any, isInsert bool) error {
	restore, err := l.suspendFilters(repos)
	if err != nil {
		return err
	}
	defer restore()

	return l.generate(ctx, reg, host, repos, meta, record, isInsert)
}

// suspendFilters applies the managed filter states and returns the function restoring
// the previous ones.
func (l *Listener) suspendFilters(repos Repositories) (func(), error) {
	l.mu.RLock()
	managed := make(map[string]bool, len(l.managed))
	for name, enabled := range l.managed {
		managed[name] = enabled
	}
	l.mu.RUnlock()

	if len(managed) == 0 {
		return func() {}, nil
	}

	aware, ok := repos.Slugs.(repositories.FilterAware)
	if !ok || aware.Filters() == nil {
		return nil, &CollaboratorError{Capability: "managed query filters"}
	}
	filters := aware.Filters()

	names := make([]string, 0, len(managed))
	for name := range managed {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := map[string]bool{}
	restore := func() {
		for name, enabled := range saved {
			var err error
			if enabled {
				err = filters.Enable(name)
			} else {
				err = filters.Disable(name)
			}
			if err != nil {
				l.logger.WithError(err).WithField("filter", name).Error("failed to restore query filter")
			}
		}
	}

	for _, name := range names {
		previous := filters.IsEnabled(name)
		if previous == managed[name] {
			continue
		}
		var err error
		if managed[name] {
			err = filters.Enable(name)
		} else {
			err = filters.Disable(name)
		}
		if err != nil {
			restore()
			return nil, fmt.Errorf("failed to set query filter %s: %w", name, err)
		}
		saved[name] = previous
	}
	return restore, nil
}
