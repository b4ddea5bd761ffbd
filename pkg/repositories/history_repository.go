package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gorm-sluggable/pkg/types"
)

// HistoryRepository defines the interface for slug history database operations.
// An empty table name selects types.DefaultHistoryTable.
type HistoryRepository interface {
	FindHistoryEntry(ctx context.Context, table, objectClass, field, slug string) (*types.SlugHistory, error)
	UpsertHistoryEntry(ctx context.Context, table string, entry *types.SlugHistory) error
	DeleteHistoryEntriesFor(ctx context.Context, table, objectClass, objectID string) error
	GetHistoryFor(ctx context.Context, table, objectClass, objectID string) ([]types.SlugHistory, error)
}

// gormHistoryRepository is a GORM implementation of HistoryRepository.
type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGORMHistoryRepository creates a new GORM-based HistoryRepository.
func NewGORMHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

func (r *gormHistoryRepository) table(ctx context.Context, table string) *gorm.DB {
	if table == "" {
		table = types.DefaultHistoryTable
	}
	return r.db.WithContext(ctx).Table(table)
}

// FindHistoryEntry retrieves the entry recording slug for the class and field.
// Returns nil if no entry exists.
func (r *gormHistoryRepository) FindHistoryEntry(ctx context.Context, table, objectClass, field, slug string) (*types.SlugHistory, error) {
	var entry types.SlugHistory
	err := r.table(ctx, table).
		Where("object_class = ? AND field = ? AND slug = ?", objectClass, field, slug).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertHistoryEntry creates the entry, or updates it when it already has an ID.
func (r *gormHistoryRepository) UpsertHistoryEntry(ctx context.Context, table string, entry *types.SlugHistory) error {
	if entry.ID == 0 {
		return r.table(ctx, table).Create(entry).Error
	}
	return r.table(ctx, table).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"object_id":  entry.ObjectID,
			"created_at": entry.CreatedAt,
		}).Error
}

// DeleteHistoryEntriesFor deletes every history entry of a record.
func (r *gormHistoryRepository) DeleteHistoryEntriesFor(ctx context.Context, table, objectClass, objectID string) error {
	return r.table(ctx, table).
		Where("object_class = ? AND object_id = ?", objectClass, objectID).
		Delete(&types.SlugHistory{}).Error
}

// GetHistoryFor retrieves the history entries of a record, oldest first.
func (r *gormHistoryRepository) GetHistoryFor(ctx context.Context, table, objectClass, objectID string) ([]types.SlugHistory, error) {
	var entries []types.SlugHistory
	err := r.table(ctx, table).
		Where("object_class = ? AND object_id = ?", objectClass, objectID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// MigrateHistoryTable creates or updates a slug history table and its indexes.
// Index names carry the table name so that several history tables can coexist.
func MigrateHistoryTable(ctx context.Context, db *gorm.DB, table string) error {
	if table == "" {
		table = types.DefaultHistoryTable
	}
	db = db.WithContext(ctx)
	if err := db.Table(table).AutoMigrate(&types.SlugHistory{}); err != nil {
		return err
	}

	indexes := []struct {
		name    string
		columns []string
	}{
		{name: "lookup", columns: []string{"object_class", "field", "slug"}},
		{name: "owner", columns: []string{"object_class", "object_id"}},
	}
	for _, idx := range indexes {
		columns := make([]any, 0, len(idx.columns))
		placeholders := make([]string, 0, len(idx.columns))
		for _, c := range idx.columns {
			columns = append(columns, clause.Column{Name: c})
			placeholders = append(placeholders, "?")
		}
		sql := "CREATE INDEX IF NOT EXISTS ? ON ? (" + strings.Join(placeholders, ", ") + ")"
		vars := append([]any{clause.Column{Name: "idx_" + table + "_" + idx.name}, clause.Table{Name: table}}, columns...)
		if err := db.Exec(sql, vars...).Error; err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", idx.name, table, err)
		}
	}
	return nil
}
