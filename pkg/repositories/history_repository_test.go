package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-sluggable/pkg/testhelper"
	"gorm-sluggable/pkg/types"
)

func TestMigrateHistoryTable(t *testing.T) {
	db := testhelper.NewTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"", "article_slugs"} {
		require.NoError(t, MigrateHistoryTable(ctx, db, table))
		// migrating twice is harmless
		require.NoError(t, MigrateHistoryTable(ctx, db, table))
	}

	migrator := db.Migrator()
	assert.True(t, migrator.HasTable(types.DefaultHistoryTable))
	assert.True(t, migrator.HasTable("article_slugs"))
	assert.True(t, migrator.HasIndex(types.DefaultHistoryTable, "idx_slug_histories_lookup"))
	assert.True(t, migrator.HasIndex(types.DefaultHistoryTable, "idx_slug_histories_owner"))
	assert.True(t, migrator.HasIndex("article_slugs", "idx_article_slugs_lookup"))
	assert.True(t, migrator.HasIndex("article_slugs", "idx_article_slugs_owner"))
}

func TestGORMHistoryRepository(t *testing.T) {
	db := testhelper.NewTestDB(t)
	ctx := context.Background()
	const table = "article_slugs"
	require.NoError(t, MigrateHistoryTable(ctx, db, table))
	require.NoError(t, MigrateHistoryTable(ctx, db, ""))
	repo := NewGORMHistoryRepository(db)

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	entry, err := repo.FindHistoryEntry(ctx, table, "Article", "Slug", "old")
	require.NoError(t, err)
	require.Nil(t, entry)

	old := &types.SlugHistory{ObjectClass: "Article", ObjectID: "1", Field: "Slug", Slug: "old", CreatedAt: first}
	older := &types.SlugHistory{ObjectClass: "Article", ObjectID: "1", Field: "Slug", Slug: "older", CreatedAt: second}
	require.NoError(t, repo.UpsertHistoryEntry(ctx, table, old))
	require.NoError(t, repo.UpsertHistoryEntry(ctx, table, older))
	require.NotZero(t, old.ID)

	// entries of other tables stay apart
	require.NoError(t, repo.UpsertHistoryEntry(ctx, "", &types.SlugHistory{ObjectClass: "Article", ObjectID: "1", Field: "Slug", Slug: "elsewhere", CreatedAt: first}))

	entries, err := repo.GetHistoryFor(ctx, table, "Article", "1")
	require.NoError(t, err)
	var slugs []string
	for _, e := range entries {
		slugs = append(slugs, e.Slug)
	}
	assert.Equal(t, []string{"old", "older"}, slugs)

	// the slug is taken over by another record
	found, err := repo.FindHistoryEntry(ctx, table, "Article", "Slug", "old")
	require.NoError(t, err)
	require.NotNil(t, found)
	found.ObjectID = "2"
	found.CreatedAt = second
	require.NoError(t, repo.UpsertHistoryEntry(ctx, table, found))

	found, err = repo.FindHistoryEntry(ctx, table, "Article", "Slug", "old")
	require.NoError(t, err)
	want := &types.SlugHistory{ID: old.ID, ObjectClass: "Article", ObjectID: "2", Field: "Slug", Slug: "old", CreatedAt: second}
	if diff := cmp.Diff(want, found); diff != "" {
		t.Errorf("Entry mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.DeleteHistoryEntriesFor(ctx, table, "Article", "1"))
	entries, err = repo.GetHistoryFor(ctx, table, "Article", "1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = repo.GetHistoryFor(ctx, table, "Article", "2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = repo.GetHistoryFor(ctx, "", "Article", "1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
