package sluggable

import (
	"strconv"
	"strings"

	"gorm.io/gorm/schema"

	"gorm-sluggable/pkg/types"
)

// RelativeHandlerName identifies the relative slug handler in configuration.
const RelativeHandlerName = "relative"

// DefaultRelativeSeparator joins the related slug and the record's own slug.
const DefaultRelativeSeparator = "/"

// Relative handler options.
const (
	OptRelationField     = "relation_field"
	OptRelationSlugField = "relation_slug_field"
	OptSeparator         = "separator"
	OptUrilize           = "urilize"
)

// relativeFactory builds handlers prefixing a slug with the slug of a related record,
// reached through a dotted path of belongs-to or has-one associations.
type relativeFactory struct{}

func (relativeFactory) Validate(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) error {
	path := opts.Get(OptRelationField, "")
	if path == "" {
		return configErr(meta.Name, field.Name(), "relative handler requires option %s", OptRelationField)
	}
	target, err := resolveRelationPath(meta.Schema, path)
	if err != nil {
		return configErr(meta.Name, field.Name(), "relative handler: %v", err)
	}
	slugField := opts.Get(OptRelationSlugField, "Slug")
	if f := target.FieldsByName[slugField]; f == nil || !isStringField(f) {
		return configErr(meta.Name, field.Name(), "relative handler: %s has no string field %s", target.Name, slugField)
	}
	if v, ok := opts[OptUrilize]; ok && v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			return configErr(meta.Name, field.Name(), "relative handler: option %s: %v", OptUrilize, err)
		}
	}
	return nil
}

func (relativeFactory) New(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) (Handler, error) {
	return newRelativeHandler(meta.Schema, opts.Get(OptRelationField, ""), opts.Get(OptRelationSlugField, "Slug"), opts)
}

// relativeHandler prefixes the slug with the slug of a related record.
type relativeHandler struct {
	hops      []*schema.Relationship
	slugField string
	separator string
	urilize   bool
}

func newRelativeHandler(sch *schema.Schema, path, slugField string, opts types.HandlerOptions) (*relativeHandler, error) {
	h := &relativeHandler{
		slugField: slugField,
		separator: opts.Get(OptSeparator, DefaultRelativeSeparator),
	}
	if v := opts.Get(OptUrilize, ""); v != "" {
		urilize, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		h.urilize = urilize
	}
	for _, name := range strings.Split(path, ".") {
		rel := sch.Relationships.Relations[name]
		h.hops = append(h.hops, rel)
		sch = rel.FieldSchema
	}
	return h, nil
}

// resolveRelationPath walks a dotted association path and returns the schema it ends on.
func resolveRelationPath(sch *schema.Schema, path string) (*schema.Schema, error) {
	for _, name := range strings.Split(path, ".") {
		rel, ok := sch.Relationships.Relations[name]
		if !ok {
			return nil, &relationError{model: sch.Name, name: name, reason: "is not an association"}
		}
		if rel.Type != schema.BelongsTo && rel.Type != schema.HasOne {
			return nil, &relationError{model: sch.Name, name: name, reason: "must be a belongs-to or has-one association"}
		}
		sch = rel.FieldSchema
	}
	return sch, nil
}

type relationError struct {
	model, name, reason string
}

func (e *relationError) Error() string {
	return e.model + "." + e.name + " " + e.reason
}

// OnChangeDecision forces regeneration on update when any association along the path
// was repointed.
func (h *relativeHandler) OnChangeDecision(g *Generation, record any, slug *string, needToChange *bool) error {
	if g.IsInsert || *needToChange {
		return nil
	}
	if h.pathChanged(g, record) {
		*needToChange = true
	}
	return nil
}

func (h *relativeHandler) pathChanged(g *Generation, record any) bool {
	current := record
	for _, rel := range h.hops {
		changes := g.Changes(current)
		if _, ok := changes[rel.Name]; ok {
			return true
		}
		next, ok := relatedRecord(current, rel.Name)
		for _, ref := range rel.References {
			if ref.ForeignKey == nil {
				continue
			}
			// belongs-to keys live on the owner, has-one keys on the related record
			if ref.ForeignKey.Schema == rel.Schema {
				if _, changed := changes[ref.ForeignKey.Name]; changed {
					return true
				}
			} else if ok {
				if _, changed := g.Changes(next)[ref.ForeignKey.Name]; changed {
					return true
				}
			}
		}
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// related follows the association path from record.
func (h *relativeHandler) related(record any) (any, bool) {
	current := record
	for _, rel := range h.hops {
		next, ok := relatedRecord(current, rel.Name)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// OnPostBuild substitutes a transliterator that prepends the related slug to the
// urlized text and restores the original one once it has run.
func (h *relativeHandler) OnPostBuild(g *Generation, record any, slug *string) error {
	original := g.Transliterator()
	g.SetTransliterator(func(text, separator string, rec any) string {
		defer g.SetTransliterator(original)
		return h.compose(g, original, text, separator, rec)
	})
	return nil
}

func (h *relativeHandler) compose(g *Generation, original Transliterator, text, separator string, record any) string {
	result := g.Urlize(original(text, separator, record))

	related, ok := h.related(record)
	if !ok {
		return result
	}
	value, _ := PropertyValue(related, h.slugField)
	prefix := stringify(value, g.Field.Config.DateFormat)
	if prefix == "" {
		return result
	}
	if h.urilize {
		prefix = g.Urlize(original(prefix, separator, record))
	}
	if result == "" {
		return prefix
	}
	return prefix + h.separator + result
}

func (h *relativeHandler) OnCompletion(g *Generation, record any, slug *string, historyEnabled bool) error {
	return nil
}

func (h *relativeHandler) HandlesUrlization() bool {
	return true
}
