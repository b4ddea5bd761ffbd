package repositories

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// SoftDeleteFilter hides soft-deleted rows from slug queries while enabled.
const SoftDeleteFilter = "soft-delete"

// FilterController toggles named query filters.
type FilterController interface {
	IsEnabled(name string) bool
	Enable(name string) error
	Disable(name string) error
}

// FilterAware is implemented by repositories whose queries honor a filter collection.
type FilterAware interface {
	Filters() FilterController
}

// FilterCollection holds named query filters shared by the repositories of a session.
// The soft-delete filter is built in; other filters are gorm scopes.
type FilterCollection struct {
	mu      sync.RWMutex
	enabled map[string]bool
	scopes  map[string]func(*gorm.DB) *gorm.DB
}

// NewFilterCollection creates a collection with the soft-delete filter enabled.
func NewFilterCollection() *FilterCollection {
	return &FilterCollection{
		enabled: map[string]bool{SoftDeleteFilter: true},
		scopes:  map[string]func(*gorm.DB) *gorm.DB{SoftDeleteFilter: nil},
	}
}

// Register adds a named scope filter.
func (f *FilterCollection) Register(name string, scope func(*gorm.DB) *gorm.DB, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes[name] = scope
	f.enabled[name] = enabled
}

// IsEnabled reports whether the named filter is registered and enabled.
func (f *FilterCollection) IsEnabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled[name]
}

// Enable enables a registered filter.
func (f *FilterCollection) Enable(name string) error {
	return f.set(name, true)
}

// Disable disables a registered filter.
func (f *FilterCollection) Disable(name string) error {
	return f.set(name, false)
}

func (f *FilterCollection) set(name string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scopes[name]; !ok {
		return fmt.Errorf("filter %q is not registered", name)
	}
	f.enabled[name] = enabled
	return nil
}

// Apply returns db with every enabled filter applied. A disabled soft-delete filter
// makes the query unscoped.
func (f *FilterCollection) Apply(db *gorm.DB) *gorm.DB {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.enabled[SoftDeleteFilter] {
		db = db.Unscoped()
	}

	names := make([]string, 0, len(f.scopes))
	for name, scope := range f.scopes {
		if scope != nil && f.enabled[name] {
			names = append(names, name)
		}
	}
	// deterministic SQL
	sort.Strings(names)
	for _, name := range names {
		db = db.Scopes(f.scopes[name])
	}
	return db
}
