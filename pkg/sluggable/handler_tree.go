package sluggable

import (
	"gorm.io/gorm/schema"

	"gorm-sluggable/pkg/types"
)

// TreeHandlerName identifies the tree slug handler in configuration.
const TreeHandlerName = "tree"

// OptParentRelationField names the self-referencing parent association of a tree.
const OptParentRelationField = "parent_relation_field"

// treeFactory builds handlers for self-referencing trees: a node's slug is prefixed with
// its parent's slug, and renaming a node renames the slugs of all its descendants.
type treeFactory struct{}

func (treeFactory) Validate(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) error {
	parent := opts.Get(OptParentRelationField, "Parent")
	rel, ok := meta.Schema.Relationships.Relations[parent]
	if !ok || rel.Type != schema.BelongsTo || rel.FieldSchema.ModelType != meta.Schema.ModelType {
		return configErr(meta.Name, field.Name(), "tree handler: %s must be a belongs-to association to %s", parent, meta.Name)
	}
	return nil
}

func (treeFactory) New(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) (Handler, error) {
	relative, err := newRelativeHandler(meta.Schema, opts.Get(OptParentRelationField, "Parent"), field.Name(), opts)
	if err != nil {
		return nil, err
	}
	return &treeHandler{relativeHandler: relative}, nil
}

type treeHandler struct {
	*relativeHandler
}

// OnCompletion moves the descendants of a renamed node under its new slug.
func (h *treeHandler) OnCompletion(g *Generation, record any, slug *string, historyEnabled bool) error {
	if g.IsInsert || g.PreviousSlug == "" || slug == nil || *slug == "" || *slug == g.PreviousSlug {
		return nil
	}
	return g.Repos.Slugs.RewriteSlugPrefix(g.Ctx, types.PrefixRewrite{
		Model:       g.Meta.NewModel(),
		Column:      g.Field.Field.DBName,
		Target:      g.PreviousSlug + h.separator,
		Replacement: *slug + h.separator,
		Groups:      groupConditions(g.Ctx, g.Field, record),
	})
}
