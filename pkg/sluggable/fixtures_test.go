package sluggable

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"gorm-sluggable/pkg/repositories"
	"gorm-sluggable/pkg/types"
)

type Article struct {
	ID      uint `gorm:"primarykey"`
	Title   string
	Code    string
	Slug    string `gorm:"size:64"`
	Draft   bool
	Created time.Time
}

type Page struct {
	ID    uint `gorm:"primarykey"`
	Title string
	Slug  *string `gorm:"size:32"`
}

type Short struct {
	ID    uint `gorm:"primarykey"`
	Title string
	Slug  string `gorm:"size:10"`
}

type Tiny struct {
	ID    uint `gorm:"primarykey"`
	Title string
	Slug  string `gorm:"size:2"`
}

type Tenanted struct {
	ID       uint `gorm:"primarykey"`
	TenantID uint
	Title    string
	Slug     string
}

type Code struct {
	Slug  string `gorm:"primarykey;size:32"`
	Title string
}

type Composite struct {
	A     uint `gorm:"primaryKey"`
	B     uint `gorm:"primaryKey"`
	Title string
	Slug  string
}

type Category struct {
	ID    uint `gorm:"primarykey"`
	Title string
	Slug  string
}

type Post struct {
	ID         uint `gorm:"primarykey"`
	Title      string
	CategoryID *uint
	Category   *Category
	Slug       string
}

type Node struct {
	ID       uint `gorm:"primarykey"`
	Title    string
	ParentID *uint
	Parent   *Node
	Slug     string
}

var testModels = []any{
	&Article{}, &Page{}, &Short{}, &Tiny{}, &Tenanted{}, &Code{}, &Composite{}, &Category{}, &Post{}, &Node{},
}

func slugConfig(model, slug string, fields ...string) types.ModelConfig {
	return types.ModelConfig{
		Model: model,
		Slugs: []types.SlugConfig{{Slug: slug, Fields: fields}},
	}
}

func newTestRegistry(t *testing.T, models ...types.ModelConfig) *Registry {
	t.Helper()
	reg, err := NewRegistry(nil, nil, &types.Config{Models: models}, testModels...)
	require.NoError(t, err)
	return reg
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func uintPtr(v uint) *uint {
	return &v
}

func strPtr(s string) *string {
	return &s
}

// fakeHost is a unit of work whose change sets are set by the test. New records without
// an explicit change set report every field as changed.
type fakeHost struct {
	changes    map[any]ChangeSet
	news       map[any]bool
	inserts    []any
	updates    []any
	deletes    []any
	recomputed []any
}

func newFakeHost() *fakeHost {
	return &fakeHost{changes: map[any]ChangeSet{}, news: map[any]bool{}}
}

func (h *fakeHost) insert(records ...any) *fakeHost {
	for _, r := range records {
		h.news[r] = true
		h.inserts = append(h.inserts, r)
	}
	return h
}

func (h *fakeHost) update(record any, changes ChangeSet) *fakeHost {
	h.changes[record] = changes
	h.updates = append(h.updates, record)
	return h
}

func (h *fakeHost) remove(records ...any) *fakeHost {
	h.deletes = append(h.deletes, records...)
	return h
}

func (h *fakeHost) ChangeSet(record any) ChangeSet {
	if c, ok := h.changes[record]; ok {
		return c
	}
	if !h.news[record] {
		return ChangeSet{}
	}
	changes := ChangeSet{}
	rv := reflect.ValueOf(record).Elem()
	for i := 0; i < rv.NumField(); i++ {
		changes[rv.Type().Field(i).Name] = Change{New: rv.Field(i).Interface()}
	}
	return changes
}

func (h *fakeHost) IsNew(record any) bool {
	return h.news[record]
}

func (h *fakeHost) RecomputeChangeSet(record any) {
	h.recomputed = append(h.recomputed, record)
}

func (h *fakeHost) ScheduledInserts() []any { return h.inserts }
func (h *fakeHost) ScheduledUpdates() []any { return h.updates }
func (h *fakeHost) ScheduledDeletes() []any { return h.deletes }

func mockRepos(slugs ...string) (Repositories, *repositories.MockSlugRepository, *repositories.MockHistoryRepository) {
	slugRepo := &repositories.MockSlugRepository{Slugs: slugs}
	historyRepo := &repositories.MockHistoryRepository{}
	return Repositories{Slugs: slugRepo, History: historyRepo}, slugRepo, historyRepo
}

// flush runs one commit cycle of the listener over host.
func flush(t *testing.T, l *Listener, host *fakeHost, repos Repositories) error {
	t.Helper()
	l.OnBeforeCommit()
	defer l.OnAfterCommit()
	return l.OnFlush(context.Background(), host, repos)
}
