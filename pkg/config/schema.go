package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/pity-fox/cleantools/pkg/yaml"
)

//go:generate go run ../../internal/schemagen -o config.v1.json

// SchemaURL identifies the configuration schema.
const SchemaURL = "https://raw.githubusercontent.com/pity-fox/cleantools/refs/heads/main/pkg/config/config.v1.json"

var defaultValidator = sync.OnceValues(func() (*yaml.Validator, error) {
	data, err := Schema()
	if err != nil {
		return nil, err
	}

	return yaml.NewValidator(SchemaURL, data)
})

// Schema returns the JSON schema of [Config].
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	jss := r.Reflect(&Config{})
	jss.ID = SchemaURL
	jss.Title = "cleantools configuration"

	data, err := json.MarshalIndent(jss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}

// DefaultValidator returns the validator for [Schema].
func DefaultValidator() (*yaml.Validator, error) {
	v, err := defaultValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}

	return v, nil
}
