// Package session is a small unit of work over gorm. Records are persisted, attached or
// removed in memory and written in one transaction by Flush, which first lets the slug
// listener generate the slugs of every pending record.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"gorm-sluggable/pkg/repositories"
	"gorm-sluggable/pkg/sluggable"
)

type state int

const (
	stateNew state = iota
	stateManaged
	stateRemoved
)

type entry struct {
	record   any
	schema   *schema.Schema
	state    state
	snapshot map[string]any
}

// Session tracks records and writes their changes on Flush. It is not safe for
// concurrent use.
type Session struct {
	db       *gorm.DB
	listener *sluggable.Listener
	filters  *repositories.FilterCollection
	logger   *logrus.Logger
	cache    *sync.Map

	entries []*entry
	index   map[any]*entry
}

// New creates a session writing to db. The filter collection is shared by the slug
// queries of every flush and may be nil.
func New(db *gorm.DB, listener *sluggable.Listener, filters *repositories.FilterCollection, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		db:       db,
		listener: listener,
		filters:  filters,
		logger:   logger,
		cache:    &sync.Map{},
		index:    map[any]*entry{},
	}
}

func (s *Session) parse(record any) (*schema.Schema, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("session: record must be a non-nil pointer to a struct, got %T", record)
	}
	return schema.Parse(record, s.cache, s.db.NamingStrategy)
}

// Persist schedules a new record for insertion.
func (s *Session) Persist(ctx context.Context, record any) error {
	if e, ok := s.index[record]; ok {
		if e.state == stateRemoved {
			e.state = stateManaged
		}
		return nil
	}
	sch, err := s.parse(record)
	if err != nil {
		return err
	}
	s.track(&entry{record: record, schema: sch, state: stateNew})
	s.listener.OnRecordAboutToPersist(ctx, record)
	return nil
}

// Attach tracks a record loaded from the database. Changes made to it afterwards are
// written on Flush.
func (s *Session) Attach(record any) error {
	if _, ok := s.index[record]; ok {
		return nil
	}
	sch, err := s.parse(record)
	if err != nil {
		return err
	}
	e := &entry{record: record, schema: sch, state: stateManaged}
	e.snapshot = s.snapshot(context.Background(), e)
	s.track(e)
	return nil
}

// Find loads the first record matching conds into dest and attaches it.
func (s *Session) Find(ctx context.Context, dest any, conds ...any) error {
	if err := s.db.WithContext(ctx).First(dest, conds...).Error; err != nil {
		return err
	}
	return s.Attach(dest)
}

// FindBySlug loads the record whose slug field currently holds slug into dest. When no
// record does and the record type keeps slug history, the record that used to have the
// slug is loaded instead. It returns gorm.ErrRecordNotFound when neither exists.
func (s *Session) FindBySlug(ctx context.Context, dest any, field, slug string) error {
	meta, ok := s.listener.Registry().Lookup(dest)
	if !ok {
		return fmt.Errorf("session: %T has no slug configuration", dest)
	}
	var slugField *sluggable.SlugField
	for _, f := range meta.Slugs {
		if f.Name() == field {
			slugField = f
		}
	}
	if slugField == nil {
		return fmt.Errorf("session: %s has no slug field %s", meta.Name, field)
	}

	err := s.Find(ctx, dest, clause.Eq{Column: clause.Column{Name: slugField.Field.DBName}, Value: slug})
	if !errors.Is(err, gorm.ErrRecordNotFound) || !meta.History {
		return err
	}

	id, err := sluggable.FindByHistoricalSlug(ctx, repositories.NewGORMHistoryRepository(s.db), meta, field, slug)
	if err != nil {
		return err
	}
	if id == "" {
		return gorm.ErrRecordNotFound
	}
	return s.Find(ctx, dest, clause.Eq{Column: clause.Column{Name: meta.PrimaryField().DBName}, Value: id})
}

// Remove schedules a record for deletion. A record that was never flushed is forgotten.
func (s *Session) Remove(record any) error {
	e, ok := s.index[record]
	if !ok {
		if err := s.Attach(record); err != nil {
			return err
		}
		e = s.index[record]
	}
	if e.state == stateNew {
		s.untrack(e)
		return nil
	}
	e.state = stateRemoved
	return nil
}

// Contains reports whether the record is tracked and not removed.
func (s *Session) Contains(record any) bool {
	e, ok := s.index[record]
	return ok && e.state != stateRemoved
}

func (s *Session) track(e *entry) {
	s.entries = append(s.entries, e)
	s.index[e.record] = e
}

func (s *Session) untrack(e *entry) {
	delete(s.index, e.record)
	for i, other := range s.entries {
		if other == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// snapshot copies the column values of the record.
func (s *Session) snapshot(ctx context.Context, e *entry) map[string]any {
	values := make(map[string]any, len(e.schema.Fields))
	for _, field := range e.schema.Fields {
		if field.DBName == "" {
			continue
		}
		values[field.Name] = sluggable.FieldValue(ctx, field, e.record)
	}
	return values
}

// changeSet compares the record with its snapshot. New records report every column.
func (s *Session) changeSet(ctx context.Context, e *entry) sluggable.ChangeSet {
	changes := sluggable.ChangeSet{}
	for _, field := range e.schema.Fields {
		if field.DBName == "" {
			continue
		}
		current := sluggable.FieldValue(ctx, field, e.record)
		if e.state == stateNew {
			changes[field.Name] = sluggable.Change{New: current}
			continue
		}
		if old := e.snapshot[field.Name]; !reflect.DeepEqual(old, current) {
			changes[field.Name] = sluggable.Change{Old: old, New: current}
		}
	}
	return changes
}
