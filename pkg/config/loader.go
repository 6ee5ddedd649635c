package config

import (
	"bytes"
	"fmt"

	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/yaml"
)

// Validator validates decoded configuration data.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*Loader)

// WithValidator replaces the schema validator.
func WithValidator(v Validator) LoaderOpt {
	return func(l *Loader) {
		l.validator = v
	}
}

// Loader validates and decodes a configuration file.
type Loader struct {
	validator Validator
	yamlError *yaml.ErrorWrapper
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] from byte data.
func NewLoaderFromBytes(data []byte, opts ...LoaderOpt) *Loader {
	l := &Loader{
		data:      data,
		yamlError: yaml.NewErrorWrapper(yaml.WithSource(data)),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// NewLoaderFromFile creates a [Loader] from a file path.
func NewLoaderFromFile(path string, opts ...LoaderOpt) (*Loader, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return NewLoaderFromBytes(data, opts...), nil
}

// Validate validates the configuration data against the schema.
func (l *Loader) Validate() error {
	validator := l.validator
	if validator == nil {
		v, err := DefaultValidator()
		if err != nil {
			return err
		}

		validator = v
	}

	var anyConfig any

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(&anyConfig)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	err = validator.Validate(anyConfig)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	return nil
}

// Load decodes the configuration and applies defaults. Call [Loader.Validate]
// first.
func (l *Loader) Load() (*Config, error) {
	c := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(c)
	if err != nil {
		return nil, l.yamlError.Wrap(err)
	}

	c.EnsureDefaults()

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Load reads, validates and decodes the configuration file at path. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	if !fsutil.Exists(path) {
		return NewConfig(), nil
	}

	l, err := NewLoaderFromFile(path)
	if err != nil {
		return nil, err
	}

	err = l.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return l.Load()
}
