package sluggable

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"gorm-sluggable/pkg/types"
	"gorm-sluggable/pkg/utils"
)

// generate updates every slug field of record.
func (l *Listener) generate(ctx context.Context, reg *Registry, host ObjectManager, repos Repositories, meta *RecordMeta, record any, isInsert bool) error {
	for _, field := range meta.Slugs {
		g := &Generation{
			Ctx:            ctx,
			Registry:       reg,
			Meta:           meta,
			Field:          field,
			Host:           host,
			Repos:          repos,
			IsInsert:       isInsert,
			transliterator: l.Transliterator(),
		}
		if err := l.generateField(g, record); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) generateField(g *Generation, record any) error {
	ctx, field, cfg := g.Ctx, g.Field, g.Field.Config
	changes := g.Changes(record)
	slugChange, slugChanged := changes[field.Name()]
	current, isNull := slugValue(ctx, field.Field, record)

	if !cfg.IsUpdatable() && !g.IsInsert && !slugChanged && current != Sentinel {
		return nil
	}

	g.PreviousSlug = current
	if slugChanged {
		g.PreviousSlug = stringify(deref(reflect.ValueOf(slugChange.Old)), cfg.DateFormat)
	}
	if g.PreviousSlug == Sentinel {
		g.PreviousSlug = ""
	}

	needToChange := false
	slug := current
	if isNull || current == "" || current == Sentinel || !slugChanged {
		parts := make([]string, 0, len(field.Sources))
		for _, source := range field.Sources {
			if changes.Has(source.Name) || slugChanged {
				needToChange = true
			}
			parts = append(parts, stringify(FieldValue(ctx, source, record), cfg.DateFormat))
		}
		slug = strings.TrimSpace(strings.Join(parts, " "))
	} else {
		// set by hand
		needToChange = true
	}

	for _, h := range field.Handlers {
		if err := h.OnChangeDecision(g, record, &slug, &needToChange); err != nil {
			return err
		}
	}
	if !needToChange {
		return nil
	}

	if strings.TrimSpace(slug) == "" && !field.Nullable {
		return &ValidationError{Model: g.Meta.Name, Field: field.Name(), Reason: "no non-empty source field value to build the slug from"}
	}

	for _, h := range field.Handlers {
		if err := h.OnPostBuild(g, record, &slug); err != nil {
			return err
		}
	}

	urlized := false
	for _, h := range field.Handlers {
		if h.HandlesUrlization() {
			urlized = true
		}
	}
	slug = g.Transliterator()(slug, cfg.Separator, record)
	if !urlized {
		slug = g.Urlize(slug)
	}

	slug = l.finish(slug, cfg, field.MaxLength)
	if slug == "" && !field.Nullable {
		return &ValidationError{Model: g.Meta.Name, Field: field.Name(), Reason: "source field values produce an empty slug"}
	}

	var final *string
	if slug != "" || !field.Nullable {
		final = &slug
	}

	if final != nil && cfg.IsUnique() {
		unique, err := newResolver(g, l.ledger, record).resolve(slug)
		if err != nil {
			return err
		}
		if unique != slug {
			l.metrics.collision(g.Meta.Name, field.Name())
			l.logger.WithFields(logrus.Fields{
				"model":     g.Meta.Name,
				"field":     field.Name(),
				"candidate": slug,
				"slug":      unique,
			}).Debug("disambiguated slug")
		}
		slug = unique
	}

	for _, h := range field.Handlers {
		if err := h.OnCompletion(g, record, &slug, g.Meta.History); err != nil {
			return err
		}
	}

	setSlugValue(ctx, field.Field, record, final)
	if g.Host != nil {
		g.Host.RecomputeChangeSet(record)
	}
	if final != nil {
		l.ledger.Record(g.Meta.Name, field.Name(), scopeKey(groupConditions(ctx, field, record)), slug)
	}
	l.metrics.generated(g.Meta.Name, field.Name())

	if g.Meta.History && !g.IsInsert && g.PreviousSlug != "" && (final == nil || *final != g.PreviousSlug) {
		return l.recordHistory(g, record)
	}
	return nil
}

// finish adds the prefix and suffix, applies the style and truncates to maxLength.
func (l *Listener) finish(slug string, cfg types.SlugConfig, maxLength int) string {
	slug = cfg.Prefix + slug + cfg.Suffix

	switch cfg.Style {
	case types.StyleCamel:
		slug = camelize(slug, cfg.Separator)
	case types.StyleLower, "":
		slug = cases.Lower(l.locale).String(slug)
	case types.StyleUpper:
		slug = cases.Upper(l.locale).String(slug)
	}

	if maxLength > 0 && utf8.RuneCountInString(slug) > maxLength {
		slug = truncate(slug, maxLength)
	}
	return slug
}

// camelize upper-cases the first letter and every ASCII letter following the separator.
func camelize(s, sep string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := true
	for i := 0; i < len(s); {
		if sep != "" && strings.HasPrefix(s[i:], sep) {
			b.WriteString(sep)
			i += len(sep)
			upperNext = true
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if upperNext && r < utf8.RuneSelf && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
		}
		upperNext = false
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// Compose runs text through the slug pipeline of cfg without uniqueness resolution or
// handlers. It is meant for previews.
func (l *Listener) Compose(text string, cfg types.SlugConfig, maxLength int) (string, error) {
	cfg = cfg.WithDefaults()
	if !cfg.Style.IsValid() {
		return "", fmt.Errorf("unknown style %q", cfg.Style)
	}
	if _, err := utils.CompileAllowed(cfg.Allowed); err != nil {
		return "", err
	}
	slug := l.Transliterator()(strings.TrimSpace(text), cfg.Separator, nil)
	slug = utils.Urlize(slug, cfg.Separator, cfg.Allowed)
	return l.finish(slug, cfg, maxLength), nil
}
