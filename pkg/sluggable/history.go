package sluggable

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gorm-sluggable/pkg/repositories"
	"gorm-sluggable/pkg/types"
)

// recordHistory stores the slug the record had before this cycle. An entry that already
// holds the same slug for the record type and field is taken over by the record.
func (l *Listener) recordHistory(g *Generation, record any) error {
	if g.Repos.History == nil {
		return &CollaboratorError{Capability: "slug history"}
	}
	meta, field := g.Meta, g.Field
	objectID := IdentityString(g.Ctx, meta, record)

	entry, err := g.Repos.History.FindHistoryEntry(g.Ctx, meta.HistoryTable, meta.Name, field.Name(), g.PreviousSlug)
	if err != nil {
		return fmt.Errorf("failed to look up slug history of %s.%s: %w", meta.Name, field.Name(), err)
	}
	if entry == nil {
		entry = &types.SlugHistory{
			ObjectClass: meta.Name,
			Field:       field.Name(),
			Slug:        g.PreviousSlug,
		}
	}
	entry.ObjectID = objectID
	entry.CreatedAt = l.now()

	if err := g.Repos.History.UpsertHistoryEntry(g.Ctx, meta.HistoryTable, entry); err != nil {
		return fmt.Errorf("failed to store slug history of %s.%s: %w", meta.Name, field.Name(), err)
	}
	l.metrics.history(meta.Name, field.Name())
	l.logger.WithFields(logrus.Fields{
		"model":     meta.Name,
		"field":     field.Name(),
		"object_id": objectID,
		"slug":      g.PreviousSlug,
	}).Debug("recorded superseded slug")
	return nil
}

// removeHistory deletes every history entry of a deleted record.
func (l *Listener) removeHistory(ctx context.Context, repos Repositories, meta *RecordMeta, record any) error {
	if repos.History == nil {
		return &CollaboratorError{Capability: "slug history"}
	}
	objectID := IdentityString(ctx, meta, record)
	if err := repos.History.DeleteHistoryEntriesFor(ctx, meta.HistoryTable, meta.Name, objectID); err != nil {
		return fmt.Errorf("failed to delete slug history of %s %s: %w", meta.Name, objectID, err)
	}
	return nil
}

// FindByHistoricalSlug returns the identifier of the record that used to have slug in
// field, or "" when no such record is known.
func FindByHistoricalSlug(ctx context.Context, history repositories.HistoryRepository, meta *RecordMeta, field, slug string) (string, error) {
	if !meta.History {
		return "", configErr(meta.Name, field, "slug history is not enabled")
	}
	entry, err := history.FindHistoryEntry(ctx, meta.HistoryTable, meta.Name, field, slug)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", nil
	}
	return entry.ObjectID, nil
}
