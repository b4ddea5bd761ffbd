package sluggable

import (
	"fmt"
)

// ConfigurationError reports a malformed slug or handler configuration, found while
// building the registry.
type ConfigurationError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid slug configuration for model %s: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("invalid slug configuration for %s.%s: %s", e.Model, e.Field, e.Reason)
}

// ValidationError reports a slug that cannot be generated for a record. It aborts the
// whole commit cycle.
type ValidationError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unable to generate slug %s.%s: %s", e.Model, e.Field, e.Reason)
}

// CollaboratorError reports a persistence collaborator lacking a capability the
// configuration requires.
type CollaboratorError struct {
	Capability string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("persistence layer does not support %s", e.Capability)
}

func configErr(model, field, format string, args ...any) error {
	return &ConfigurationError{Model: model, Field: field, Reason: fmt.Sprintf(format, args...)}
}
