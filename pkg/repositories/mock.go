package repositories

import (
	"context"
	"strings"

	"gorm-sluggable/pkg/types"
)

// MockSlugRepository is a mock implementation of SlugRepository for testing.
type MockSlugRepository struct {
	// Slugs are the persisted slugs returned by FindSimilarSlugs when they match the prefix.
	Slugs         []string
	FindError     error
	RewriteError  error
	FindFn        func(types.SimilarSlugQuery)
	FilterControl FilterController
	// Captured data for assertions
	Queries         []types.SimilarSlugQuery
	Rewrites        []types.PrefixRewrite
	OwnedRewrites   []types.PrefixRewrite
	FilterSnapshots []bool
}

// MockFilterAwareSlugRepository is a MockSlugRepository that exposes a filter collection.
type MockFilterAwareSlugRepository struct {
	*MockSlugRepository
}

// MockHistoryRepository is a mock implementation of HistoryRepository for testing.
type MockHistoryRepository struct {
	Entries     []types.SlugHistory
	FindError   error
	UpsertError error
	DeleteError error
	// Captured data for assertions
	Upserted []types.SlugHistory
	Deleted  []struct {
		Table       string
		ObjectClass string
		ObjectID    string
	}
	nextID uint
}

func (m *MockSlugRepository) FindSimilarSlugs(ctx context.Context, query types.SimilarSlugQuery) ([]string, error) {
	m.Queries = append(m.Queries, query)
	if m.FilterControl != nil {
		m.FilterSnapshots = append(m.FilterSnapshots, m.FilterControl.IsEnabled(SoftDeleteFilter))
	}
	if m.FindFn != nil {
		m.FindFn(query)
	}
	if m.FindError != nil {
		return nil, m.FindError
	}
	var similar []string
	for _, slug := range m.Slugs {
		if strings.HasPrefix(slug, query.Prefix) {
			similar = append(similar, slug)
		}
	}
	return similar, nil
}

func (m *MockSlugRepository) RewriteSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error {
	m.Rewrites = append(m.Rewrites, rewrite)
	return m.RewriteError
}

func (m *MockSlugRepository) RewriteOwnedSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error {
	m.OwnedRewrites = append(m.OwnedRewrites, rewrite)
	return m.RewriteError
}

// Filters returns the configured filter controller.
func (m *MockFilterAwareSlugRepository) Filters() FilterController {
	return m.FilterControl
}

func (m *MockHistoryRepository) FindHistoryEntry(ctx context.Context, table, objectClass, field, slug string) (*types.SlugHistory, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	for i := range m.Entries {
		e := m.Entries[i]
		if e.ObjectClass == objectClass && e.Field == field && e.Slug == slug {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MockHistoryRepository) UpsertHistoryEntry(ctx context.Context, table string, entry *types.SlugHistory) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	if entry.ID == 0 {
		for _, e := range m.Entries {
			if e.ID > m.nextID {
				m.nextID = e.ID
			}
		}
		m.nextID++
		entry.ID = m.nextID
		m.Entries = append(m.Entries, *entry)
	} else {
		for i := range m.Entries {
			if m.Entries[i].ID == entry.ID {
				m.Entries[i] = *entry
			}
		}
	}
	m.Upserted = append(m.Upserted, *entry)
	return nil
}

func (m *MockHistoryRepository) DeleteHistoryEntriesFor(ctx context.Context, table, objectClass, objectID string) error {
	m.Deleted = append(m.Deleted, struct {
		Table       string
		ObjectClass string
		ObjectID    string
	}{table, objectClass, objectID})
	if m.DeleteError != nil {
		return m.DeleteError
	}
	kept := m.Entries[:0]
	for _, e := range m.Entries {
		if e.ObjectClass != objectClass || e.ObjectID != objectID {
			kept = append(kept, e)
		}
	}
	m.Entries = kept
	return nil
}

func (m *MockHistoryRepository) GetHistoryFor(ctx context.Context, table, objectClass, objectID string) ([]types.SlugHistory, error) {
	var entries []types.SlugHistory
	for _, e := range m.Entries {
		if e.ObjectClass == objectClass && e.ObjectID == objectID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
