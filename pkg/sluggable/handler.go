package sluggable

import (
	"context"
	"sync"

	"gorm-sluggable/pkg/types"
	"gorm-sluggable/pkg/utils"
)

// Transliterator converts text to ASCII-safe text. It receives the separator of the slug
// field and the record being slugged.
type Transliterator func(text, separator string, record any) string

// Handler alters how a slug field is composed. The generator calls the hooks of every
// handler attached to the field, in configuration order.
type Handler interface {
	// OnChangeDecision may force regeneration by setting *needToChange.
	OnChangeDecision(g *Generation, record any, slug *string, needToChange *bool) error
	// OnPostBuild may rewrite the raw candidate and substitute the transliterator of
	// this field run.
	OnPostBuild(g *Generation, record any, slug *string) error
	// OnCompletion is called with the final slug, after truncation and uniqueness.
	OnCompletion(g *Generation, record any, slug *string, historyEnabled bool) error
	// HandlesUrlization reports that the handler's transliterator already urlizes.
	HandlesUrlization() bool
}

// HandlerFactory validates handler options against the record metadata when the
// registry is built, and constructs the handler instance cached for the slug field.
// New is only called after Validate succeeded.
type HandlerFactory interface {
	Validate(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) error
	New(reg *Registry, meta *RecordMeta, field *SlugField, opts types.HandlerOptions) (Handler, error)
}

// HandlerRegistry maps handler names to factories.
type HandlerRegistry struct {
	mu        sync.RWMutex
	factories map[string]HandlerFactory
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{factories: map[string]HandlerFactory{}}
}

// DefaultHandlers returns a registry with the built-in handlers.
func DefaultHandlers() *HandlerRegistry {
	r := NewHandlerRegistry()
	r.Register(RelativeHandlerName, relativeFactory{})
	r.Register(InversedRelativeHandlerName, inversedRelativeFactory{})
	r.Register(TreeHandlerName, treeFactory{})
	return r
}

// Register adds or replaces a handler factory.
func (r *HandlerRegistry) Register(name string, factory HandlerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns the named factory.
func (r *HandlerRegistry) Get(name string) (HandlerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Generation is the state of one slug field being generated for one record.
// Handlers receive it in every hook.
type Generation struct {
	Ctx      context.Context
	Registry *Registry
	Meta     *RecordMeta
	Field    *SlugField
	Host     ObjectManager
	Repos    Repositories
	IsInsert bool
	// PreviousSlug is the slug value before this cycle.
	PreviousSlug string

	transliterator Transliterator
}

// Transliterator returns the transliterator active for this field run.
func (g *Generation) Transliterator() Transliterator {
	return g.transliterator
}

// SetTransliterator substitutes the transliterator for the rest of this field run.
func (g *Generation) SetTransliterator(t Transliterator) {
	g.transliterator = t
}

// Urlize urlizes text with the separator and character set of the slug field.
func (g *Generation) Urlize(text string) string {
	return utils.Urlize(text, g.Field.Config.Separator, g.Field.Config.Allowed)
}

// Changes returns the host change set of record.
func (g *Generation) Changes(record any) ChangeSet {
	if g.Host == nil {
		return nil
	}
	return g.Host.ChangeSet(record)
}
