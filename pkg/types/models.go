package types

import (
	"time"
)

// DefaultHistoryTable is the table holding slug history entries unless a model overrides it.
const DefaultHistoryTable = "slug_histories"

// SlugHistory records a slug value that a record used to have.
// There is at most one entry per (object_class, field, slug); reusing a superseded
// slug elsewhere redefines the entry instead of adding a second one.
// Indexes are created per table by repositories.MigrateHistoryTable.
type SlugHistory struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	ObjectClass string    `json:"object_class" gorm:"column:object_class;size:191;not null"`
	ObjectID    string    `json:"object_id" gorm:"column:object_id;size:64;not null"`
	Field       string    `json:"field" gorm:"column:field;size:191;not null"`
	Slug        string    `json:"slug" gorm:"column:slug;size:255;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;not null"`
}

// TableName implements gorm's tabler.
func (SlugHistory) TableName() string {
	return DefaultHistoryTable
}
