package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"gorm-sluggable/pkg/types"
)

// LoadConfig reads and validates a slug configuration file.
func LoadConfig(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML slug configuration and validates its shape. Unknown keys
// are rejected. Checks against the models themselves happen when the registry is built.
func ParseConfig(data []byte) (*types.Config, error) {
	var cfg types.Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every structural problem of cfg at once.
func Validate(cfg *types.Config) error {
	var errs []error
	models := sets.New[string]()
	for i, model := range cfg.Models {
		if model.Model == "" {
			errs = append(errs, fmt.Errorf("models[%d]: model name is required", i))
			continue
		}
		if models.Has(model.Model) {
			errs = append(errs, fmt.Errorf("model %s: configured more than once", model.Model))
		}
		models.Insert(model.Model)

		if len(model.Slugs) == 0 {
			errs = append(errs, fmt.Errorf("model %s: at least one slug is required", model.Model))
		}
		for j, slug := range model.Slugs {
			errs = append(errs, validateSlug(model.Model, j, slug)...)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func validateSlug(model string, idx int, slug types.SlugConfig) []error {
	var errs []error
	name := slug.Slug
	if name == "" {
		name = fmt.Sprintf("slugs[%d]", idx)
		errs = append(errs, fmt.Errorf("model %s: %s: slug field is required", model, name))
	}
	if len(slug.Fields) == 0 {
		errs = append(errs, fmt.Errorf("model %s: %s: at least one source field is required", model, name))
	}
	if !slug.Style.IsValid() {
		errs = append(errs, fmt.Errorf("model %s: %s: unknown style %q", model, name, slug.Style))
	}
	if slug.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("model %s: %s: max_length must not be negative", model, name))
	}
	for k, handler := range slug.Handlers {
		if handler.Name == "" {
			errs = append(errs, fmt.Errorf("model %s: %s: handlers[%d]: name is required", model, name, k))
		}
	}
	return errs
}
