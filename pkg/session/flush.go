package session

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gorm-sluggable/pkg/repositories"
	"gorm-sluggable/pkg/sluggable"
)

// unitOfWork is the view of one flush handed to the slug listener.
type unitOfWork struct {
	ctx     context.Context
	session *Session
	changes map[any]sluggable.ChangeSet

	inserts []any
	updates []any
	deletes []any
}

func (u *unitOfWork) ChangeSet(record any) sluggable.ChangeSet {
	if changes, ok := u.changes[record]; ok {
		return changes
	}
	e, ok := u.session.index[record]
	if !ok {
		return nil
	}
	changes := u.session.changeSet(u.ctx, e)
	u.changes[record] = changes
	return changes
}

func (u *unitOfWork) IsNew(record any) bool {
	e, ok := u.session.index[record]
	return ok && e.state == stateNew
}

func (u *unitOfWork) RecomputeChangeSet(record any) {
	delete(u.changes, record)
}

func (u *unitOfWork) ScheduledInserts() []any { return u.inserts }
func (u *unitOfWork) ScheduledUpdates() []any { return u.updates }
func (u *unitOfWork) ScheduledDeletes() []any { return u.deletes }

// Flush writes every pending change in one transaction. Slugs are generated before
// anything is written; a generation error rolls the whole flush back.
func (s *Session) Flush(ctx context.Context) error {
	s.listener.OnBeforeCommit()
	defer s.listener.OnAfterCommit()

	u := &unitOfWork{ctx: ctx, session: s, changes: map[any]sluggable.ChangeSet{}}
	for _, e := range s.entries {
		switch e.state {
		case stateNew:
			u.inserts = append(u.inserts, e.record)
		case stateRemoved:
			u.deletes = append(u.deletes, e.record)
		case stateManaged:
			if len(u.ChangeSet(e.record)) > 0 {
				u.updates = append(u.updates, e.record)
			}
		}
	}
	if len(u.inserts)+len(u.updates)+len(u.deletes) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := sluggable.Repositories{
			Slugs:   repositories.NewGORMSlugRepository(tx, s.filters),
			History: repositories.NewGORMHistoryRepository(tx),
		}
		if err := s.listener.OnFlush(ctx, u, repos); err != nil {
			return err
		}
		return s.write(ctx, tx, u)
	})
	if err != nil {
		return err
	}

	for _, record := range u.deletes {
		s.untrack(s.index[record])
	}
	for _, e := range s.entries {
		e.state = stateManaged
		e.snapshot = s.snapshot(ctx, e)
	}

	s.logger.WithFields(logrus.Fields{
		"inserts": len(u.inserts),
		"updates": len(u.updates),
		"deletes": len(u.deletes),
	}).Debug("Flushed session")
	return nil
}

func (s *Session) write(ctx context.Context, tx *gorm.DB, u *unitOfWork) error {
	for _, record := range u.inserts {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to insert %T: %w", record, err)
		}
	}

	for _, record := range u.updates {
		e := s.index[record]
		changes := s.changeSet(ctx, e)
		if len(changes) == 0 {
			continue
		}
		columns := make(map[string]any, len(changes))
		for name, change := range changes {
			columns[e.schema.FieldsByName[name].DBName] = change.New
		}

		// keyed by the primary key the row had when it was loaded
		model := reflect.New(e.schema.ModelType).Interface()
		db := tx.Model(model)
		for _, pk := range e.schema.PrimaryFields {
			db = db.Where(clause.Eq{Column: clause.Column{Name: pk.DBName}, Value: e.snapshot[pk.Name]})
		}
		if err := db.Updates(columns).Error; err != nil {
			return fmt.Errorf("failed to update %T: %w", record, err)
		}
	}

	for _, record := range u.deletes {
		if err := tx.Delete(record).Error; err != nil {
			return fmt.Errorf("failed to delete %T: %w", record, err)
		}
	}
	return nil
}
