package sluggable

import (
	"fmt"

	"gorm.io/gorm/schema"

	"gorm-sluggable/pkg/types"
)

// InversedRelativeHandlerName identifies the inversed relative handler in configuration.
const InversedRelativeHandlerName = "inversed_relative"

// Inversed relative handler options.
const (
	OptRelationModel    = "relation_model"
	OptMappedBy         = "mapped_by"
	OptInverseSlugField = "inverse_slug_field"
)

// inversedRelativeFactory builds handlers for the owning side of a relative slug: when
// the owner's slug changes, the slugs of the records that prefix it are rewritten.
type inversedRelativeFactory struct{}

func (inversedRelativeFactory) Validate(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) error {
	_, _, err := resolveInverse(reg, meta, opts)
	if err != nil {
		return configErr(meta.Name, field.Name(), "inversed relative handler: %v", err)
	}
	return nil
}

func (inversedRelativeFactory) New(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) (Handler, error) {
	related, rel, err := resolveInverse(reg, meta, opts)
	if err != nil {
		return nil, err
	}
	slugField := relatedSlugField(related, opts.Get(OptInverseSlugField, "Slug"))
	return &inversedRelativeHandler{
		related:   related,
		relation:  rel,
		slugField: slugField,
		separator: opts.Get(OptSeparator, relativeSeparatorOf(slugField, rel.Name)),
	}, nil
}

// resolveInverse finds the related record type and its belongs-to association pointing
// back at meta.
func resolveInverse(reg *Registry, meta *RecordMeta, opts types.HandlerOptions) (*RecordMeta, *schema.Relationship, error) {
	model := opts.Get(OptRelationModel, "")
	mappedBy := opts.Get(OptMappedBy, "")
	if model == "" || mappedBy == "" {
		return nil, nil, fmt.Errorf("options %s and %s are required", OptRelationModel, OptMappedBy)
	}
	related, ok := reg.Meta(model)
	if !ok {
		return nil, nil, fmt.Errorf("related model %s has no slug configuration", model)
	}
	rel, ok := related.Schema.Relationships.Relations[mappedBy]
	if !ok || rel.Type != schema.BelongsTo {
		return nil, nil, fmt.Errorf("%s.%s must be a belongs-to association", model, mappedBy)
	}
	if rel.FieldSchema.ModelType != meta.Schema.ModelType {
		return nil, nil, fmt.Errorf("%s.%s does not reference %s", model, mappedBy, meta.Name)
	}
	slugName := opts.Get(OptInverseSlugField, "Slug")
	if relatedSlugField(related, slugName) == nil {
		return nil, nil, fmt.Errorf("%s has no slug field %s", model, slugName)
	}
	return related, rel, nil
}

func relatedSlugField(meta *RecordMeta, name string) *SlugField {
	for _, f := range meta.Slugs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// relativeSeparatorOf returns the separator of the relative handler of field that follows
// relation, or the default.
func relativeSeparatorOf(field *SlugField, relation string) string {
	for _, hc := range field.Config.Handlers {
		if hc.Name != RelativeHandlerName {
			continue
		}
		if hc.Options.Get(OptRelationField, "") == relation {
			return hc.Options.Get(OptSeparator, DefaultRelativeSeparator)
		}
	}
	return DefaultRelativeSeparator
}

type inversedRelativeHandler struct {
	related   *RecordMeta
	relation  *schema.Relationship
	slugField *SlugField
	separator string
}

func (h *inversedRelativeHandler) OnChangeDecision(g *Generation, record any, slug *string, needToChange *bool) error {
	return nil
}

func (h *inversedRelativeHandler) OnPostBuild(g *Generation, record any, slug *string) error {
	return nil
}

// OnCompletion rewrites the slug prefix of every related record owned by record.
func (h *inversedRelativeHandler) OnCompletion(g *Generation, record any, slug *string, historyEnabled bool) error {
	if g.IsInsert || g.PreviousSlug == "" || slug == nil || *slug == "" || *slug == g.PreviousSlug {
		return nil
	}

	owner := make([]types.Condition, 0, len(h.relation.References))
	for _, ref := range h.relation.References {
		if ref.PrimaryKey == nil || ref.ForeignKey == nil {
			continue
		}
		owner = append(owner, types.Condition{
			Column: ref.ForeignKey.DBName,
			Value:  FieldValue(g.Ctx, ref.PrimaryKey, record),
		})
	}

	return g.Repos.Slugs.RewriteOwnedSlugPrefix(g.Ctx, types.PrefixRewrite{
		Model:       h.related.NewModel(),
		Column:      h.slugField.Field.DBName,
		Target:      g.PreviousSlug + h.separator,
		Replacement: *slug + h.separator,
		Owner:       owner,
	})
}

func (h *inversedRelativeHandler) HandlesUrlization() bool {
	return false
}
