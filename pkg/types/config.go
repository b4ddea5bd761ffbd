package types

// Style is the case/format transform applied to a generated slug.
type Style string

const (
	StyleNone  Style = "none"
	StyleLower Style = "lower"
	StyleUpper Style = "upper"
	StyleCamel Style = "camel"
)

// IsValid reports whether the style is one of the known styles. The empty style is
// valid and means StyleLower.
func (s Style) IsValid() bool {
	switch s {
	case "", StyleNone, StyleLower, StyleUpper, StyleCamel:
		return true
	default:
		return false
	}
}

const (
	// DefaultSeparator joins slug tokens when a slug config does not set one.
	DefaultSeparator = "-"
	// DefaultAllowed is the character class body of characters kept by urlization.
	DefaultAllowed = "a-zA-Z0-9"
	// DefaultDateFormat formats time.Time source fields.
	DefaultDateFormat = "2006-01-02"
)

// Config contains the slug configuration for every sluggable model.
type Config struct {
	Models []ModelConfig `json:"models" yaml:"models"`
}

// GetModel returns the configuration of the named model, or nil.
func (c *Config) GetModel(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].Model == name {
			return &c.Models[i]
		}
	}
	return nil
}

// ModelConfig is the slug configuration of one record type.
type ModelConfig struct {
	// Model is the Go struct name of the record type.
	Model string       `json:"model" yaml:"model"`
	Slugs []SlugConfig `json:"slugs" yaml:"slugs"`
	// History enables tracking of superseded slug values.
	History bool `json:"history,omitempty" yaml:"history,omitempty"`
	// HistoryTable overrides the table used for history entries of this model.
	HistoryTable string `json:"history_table,omitempty" yaml:"history_table,omitempty"`
}

// GetSlug returns the configuration of the given slug field, or nil.
func (m *ModelConfig) GetSlug(field string) *SlugConfig {
	for i := range m.Slugs {
		if m.Slugs[i].Slug == field {
			return &m.Slugs[i]
		}
	}
	return nil
}

// SlugConfig describes how one slug field is built from the source fields of its record.
type SlugConfig struct {
	Slug         string          `json:"slug" yaml:"slug"`
	Fields       []string        `json:"fields" yaml:"fields"`
	Separator    string          `json:"separator,omitempty" yaml:"separator,omitempty"`
	Allowed      string          `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Style        Style           `json:"style,omitempty" yaml:"style,omitempty"`
	Updatable    *bool           `json:"updatable,omitempty" yaml:"updatable,omitempty"`
	Unique       *bool           `json:"unique,omitempty" yaml:"unique,omitempty"`
	UniqueGroups []string        `json:"unique_groups,omitempty" yaml:"unique_groups,omitempty"`
	MaxLength    int             `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Prefix       string          `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix       string          `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	DateFormat   string          `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	Handlers     []HandlerConfig `json:"handlers,omitempty" yaml:"handlers,omitempty"`
}

// WithDefaults returns a copy of the config with every unset option filled in.
func (c SlugConfig) WithDefaults() SlugConfig {
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.Allowed == "" {
		c.Allowed = DefaultAllowed
	}
	if c.Style == "" {
		c.Style = StyleLower
	}
	if c.Updatable == nil {
		c.Updatable = Bool(true)
	}
	if c.Unique == nil {
		c.Unique = Bool(true)
	}
	if c.DateFormat == "" {
		c.DateFormat = DefaultDateFormat
	}
	return c
}

// IsUpdatable reports whether a generated slug may be overwritten on update.
func (c *SlugConfig) IsUpdatable() bool {
	return c.Updatable == nil || *c.Updatable
}

// IsUnique reports whether the slug must be unique within its scope.
func (c *SlugConfig) IsUnique() bool {
	return c.Unique == nil || *c.Unique
}

// HandlerConfig attaches a slug handler, identified by its registered name, to a slug field.
type HandlerConfig struct {
	Name    string         `json:"name" yaml:"name"`
	Options HandlerOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// HandlerOptions are the raw options of a handler.
type HandlerOptions map[string]string

// Get returns the option value or def when it is unset.
func (o HandlerOptions) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
