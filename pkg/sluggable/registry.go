package sluggable

import (
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm/schema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"gorm-sluggable/pkg/types"
	"gorm-sluggable/pkg/utils"
)

// RecordMeta is the resolved slug configuration of one record type.
type RecordMeta struct {
	// Name is the Go struct name, used as the record type identity.
	Name         string
	Schema       *schema.Schema
	Slugs        []*SlugField
	History      bool
	HistoryTable string
}

// SlugField is the resolved configuration of one slug field.
type SlugField struct {
	Config     types.SlugConfig
	Field      *schema.Field
	Sources    []*schema.Field
	Groups     []*schema.Field
	MaxLength  int
	Nullable   bool
	Identifier bool
	Handlers   []Handler
}

// Name returns the Go name of the slug field.
func (f *SlugField) Name() string {
	return f.Field.Name
}

// PrimaryField returns the single primary key field, or nil for composite or missing keys.
func (m *RecordMeta) PrimaryField() *schema.Field {
	if len(m.Schema.PrimaryFields) != 1 {
		return nil
	}
	return m.Schema.PrimaryFields[0]
}

// NewModel returns a pointer to a new zero value of the record type.
func (m *RecordMeta) NewModel() any {
	return reflect.New(m.Schema.ModelType).Interface()
}

// Registry is the immutable slug configuration of every sluggable record type.
type Registry struct {
	byType   map[reflect.Type]*RecordMeta
	byName   map[string]*RecordMeta
	handlers *HandlerRegistry
}

// NewRegistry resolves cfg against the gorm schemas of models. Every model named in cfg
// must be among models; models without configuration are ignored. All configuration
// problems are reported at once.
func NewRegistry(namer schema.Namer, handlers *HandlerRegistry, cfg *types.Config, models ...any) (*Registry, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	if handlers == nil {
		handlers = DefaultHandlers()
	}
	reg := &Registry{
		byType:   map[reflect.Type]*RecordMeta{},
		byName:   map[string]*RecordMeta{},
		handlers: handlers,
	}

	var errs []error
	cache := &sync.Map{}
	parsed := map[string]*schema.Schema{}
	for _, model := range models {
		sch, err := schema.Parse(model, cache, namer)
		if err != nil {
			errs = append(errs, configErr(fmt.Sprintf("%T", model), "", "failed to parse model: %v", err))
			continue
		}
		parsed[sch.Name] = sch
	}

	for i := range cfg.Models {
		modelCfg := &cfg.Models[i]
		sch, ok := parsed[modelCfg.Model]
		if !ok {
			errs = append(errs, configErr(modelCfg.Model, "", "model is not registered"))
			continue
		}
		meta, metaErrs := buildMeta(sch, modelCfg)
		errs = append(errs, metaErrs...)
		if meta != nil {
			reg.byType[sch.ModelType] = meta
			reg.byName[meta.Name] = meta
		}
	}

	// Handlers are resolved last so that they can validate against other record types.
	for _, meta := range reg.Metas() {
		modelCfg := cfg.GetModel(meta.Name)
		for _, field := range meta.Slugs {
			slugCfg := modelCfg.GetSlug(field.Name())
			for _, hc := range slugCfg.Handlers {
				h, err := reg.buildHandler(meta, field, hc)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				field.Handlers = append(field.Handlers, h)
			}
		}
	}

	if len(errs) > 0 {
		return nil, utilerrors.NewAggregate(errs)
	}
	return reg, nil
}

func (r *Registry) buildHandler(meta *RecordMeta, field *SlugField, hc types.HandlerConfig) (Handler, error) {
	factory, ok := r.handlers.Get(hc.Name)
	if !ok {
		return nil, configErr(meta.Name, field.Name(), "unknown slug handler %q", hc.Name)
	}
	if err := factory.Validate(r, meta, field, hc.Options); err != nil {
		return nil, err
	}
	h, err := factory.New(r, meta, field, hc.Options)
	if err != nil {
		return nil, configErr(meta.Name, field.Name(), "handler %q: %v", hc.Name, err)
	}
	return h, nil
}

func buildMeta(sch *schema.Schema, cfg *types.ModelConfig) (*RecordMeta, []error) {
	var errs []error
	meta := &RecordMeta{
		Name:         sch.Name,
		Schema:       sch,
		History:      cfg.History,
		HistoryTable: cfg.HistoryTable,
	}

	if len(cfg.Slugs) == 0 {
		errs = append(errs, configErr(sch.Name, "", "no slug fields configured"))
	}
	if cfg.History && meta.PrimaryField() == nil {
		errs = append(errs, configErr(sch.Name, "", "slug history requires a single-column primary key"))
	}

	seen := sets.New[string]()
	for _, slugCfg := range cfg.Slugs {
		if seen.Has(slugCfg.Slug) {
			errs = append(errs, configErr(sch.Name, slugCfg.Slug, "slug field configured more than once"))
			continue
		}
		seen.Insert(slugCfg.Slug)

		field, fieldErrs := buildSlugField(sch, slugCfg.WithDefaults())
		errs = append(errs, fieldErrs...)
		if field != nil {
			meta.Slugs = append(meta.Slugs, field)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return meta, nil
}

func buildSlugField(sch *schema.Schema, cfg types.SlugConfig) (*SlugField, []error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, configErr(sch.Name, cfg.Slug, format, args...))
	}

	field := sch.FieldsByName[cfg.Slug]
	if field == nil || field.DBName == "" {
		fail("slug field does not exist")
		return nil, errs
	}
	if !isStringField(field) {
		fail("slug field must be a string or *string, got %s", field.FieldType)
	}

	sf := &SlugField{
		Config:     cfg,
		Field:      field,
		MaxLength:  field.Size,
		Nullable:   field.FieldType.Kind() == reflect.Ptr && !field.NotNull,
		Identifier: field.PrimaryKey,
	}

	if cfg.MaxLength > 0 {
		if field.Size > 0 && cfg.MaxLength > field.Size {
			fail("max length %d exceeds the column size %d", cfg.MaxLength, field.Size)
		}
		sf.MaxLength = cfg.MaxLength
	}

	if len(cfg.Fields) == 0 {
		fail("at least one source field is required")
	}
	for _, name := range cfg.Fields {
		source := sch.FieldsByName[name]
		if source == nil || source.DBName == "" {
			fail("source field %s does not exist", name)
			continue
		}
		switch source.DataType {
		case schema.String, schema.Int, schema.Uint, schema.Time:
		default:
			fail("source field %s must be a text, integer or time field, got %s", name, source.DataType)
			continue
		}
		sf.Sources = append(sf.Sources, source)
	}

	for _, name := range cfg.UniqueGroups {
		group := sch.FieldsByName[name]
		if group == nil || group.DBName == "" {
			fail("unique group field %s does not exist", name)
			continue
		}
		sf.Groups = append(sf.Groups, group)
	}

	if sf.Identifier && !cfg.IsUnique() {
		fail("a slug used as identifier must be unique")
	}
	if !cfg.Style.IsValid() {
		fail("unknown style %q", cfg.Style)
	}
	if _, err := utils.CompileAllowed(cfg.Allowed); err != nil {
		fail("%v", err)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return sf, nil
}

func isStringField(field *schema.Field) bool {
	t := field.FieldType
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

// Lookup returns the metadata of the record's type.
func (r *Registry) Lookup(record any) (*RecordMeta, bool) {
	t := reflect.TypeOf(record)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	meta, ok := r.byType[t]
	return meta, ok
}

// Meta returns the metadata of the named record type.
func (r *Registry) Meta(name string) (*RecordMeta, bool) {
	meta, ok := r.byName[name]
	return meta, ok
}

// Metas returns the metadata of every sluggable record type.
func (r *Registry) Metas() []*RecordMeta {
	metas := make([]*RecordMeta, 0, len(r.byName))
	for _, name := range sets.List(sets.KeySet(r.byName)) {
		metas = append(metas, r.byName[name])
	}
	return metas
}
