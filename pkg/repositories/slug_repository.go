package repositories

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gorm-sluggable/pkg/types"
)

// SlugRepository defines the interface for the slug queries the generator depends on.
type SlugRepository interface {
	FindSimilarSlugs(ctx context.Context, query types.SimilarSlugQuery) ([]string, error)
	RewriteSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error
	RewriteOwnedSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error
}

// ErrMissingOwner is returned by RewriteOwnedSlugPrefix when no owner condition is given.
var ErrMissingOwner = errors.New("owned slug rewrite requires an owner condition")

// gormSlugRepository is a GORM implementation of SlugRepository.
type gormSlugRepository struct {
	db      *gorm.DB
	filters *FilterCollection
}

// NewGORMSlugRepository creates a new GORM-based SlugRepository.
// The filter collection may be nil, in which case gorm's default scoping applies.
func NewGORMSlugRepository(db *gorm.DB, filters *FilterCollection) SlugRepository {
	return &gormSlugRepository{db: db, filters: filters}
}

// Filters exposes the filter collection the repository queries honor.
func (r *gormSlugRepository) Filters() FilterController {
	if r.filters == nil {
		return nil
	}
	return r.filters
}

// scoped returns a session bound to ctx with the filters applied.
func (r *gormSlugRepository) scoped(ctx context.Context, model any) *gorm.DB {
	db := r.db.WithContext(ctx).Model(model)
	if r.filters != nil {
		db = r.filters.Apply(db)
	}
	return db
}

// FindSimilarSlugs returns every slug of the model starting with the query prefix,
// restricted to the query groups and excluding the record itself.
func (r *gormSlugRepository) FindSimilarSlugs(ctx context.Context, query types.SimilarSlugQuery) ([]string, error) {
	db := r.scoped(ctx, query.Model).
		Where(clause.Expr{SQL: "? LIKE ? ESCAPE '\\'", Vars: []any{clause.Column{Name: query.Column}, escapeLike(query.Prefix) + "%"}})
	db = whereConditions(db, query.Groups)

	if len(query.Exclude) > 0 {
		exclude := make([]clause.Expression, 0, len(query.Exclude))
		for _, cond := range query.Exclude {
			exclude = append(exclude, clause.Eq{Column: clause.Column{Name: cond.Column}, Value: cond.Value})
		}
		db = db.Not(clause.And(exclude...))
	}

	var slugs []string
	err := db.Where(clause.Neq{Column: clause.Column{Name: query.Column}, Value: nil}).
		Pluck(query.Column, &slugs).Error
	return slugs, err
}

// RewriteSlugPrefix replaces the target prefix of every slug in the group scope.
func (r *gormSlugRepository) RewriteSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error {
	db := r.scoped(ctx, rewrite.Model)
	db = whereConditions(db, rewrite.Groups)
	return r.rewrite(db, rewrite)
}

// RewriteOwnedSlugPrefix replaces the target prefix of the slugs of the rows referencing
// the owner record.
func (r *gormSlugRepository) RewriteOwnedSlugPrefix(ctx context.Context, rewrite types.PrefixRewrite) error {
	if len(rewrite.Owner) == 0 {
		return ErrMissingOwner
	}
	db := r.scoped(ctx, rewrite.Model)
	db = whereConditions(db, rewrite.Owner)
	db = whereConditions(db, rewrite.Groups)
	return r.rewrite(db, rewrite)
}

func (r *gormSlugRepository) rewrite(db *gorm.DB, rewrite types.PrefixRewrite) error {
	column := clause.Column{Name: rewrite.Column}
	return db.
		Where(clause.Expr{SQL: "? LIKE ? ESCAPE '\\'", Vars: []any{column, escapeLike(rewrite.Target) + "%"}}).
		UpdateColumn(rewrite.Column, gorm.Expr("CAST(? AS TEXT) || SUBSTR(?, ?)", rewrite.Replacement, column, utf8.RuneCountInString(rewrite.Target)+1)).
		Error
}

// whereConditions adds an equality (or IS NULL) condition per entry.
func whereConditions(db *gorm.DB, conds []types.Condition) *gorm.DB {
	for _, cond := range conds {
		db = db.Where(clause.Eq{Column: clause.Column{Name: cond.Column}, Value: cond.Value})
	}
	return db
}

// escapeLike escapes the LIKE wildcards of s using a backslash escape character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
