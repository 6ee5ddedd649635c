package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates decoded YAML against a JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var doc any

	err := json.Unmarshal(schemaData, &doc)
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	err = compiler.AddResource(url, doc)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// Validate validates data. Schema violations are returned as an [*Error]
// whose Path points at the most specific failing location.
func (v *Validator) Validate(data any) error {
	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &Error{
		Err:  validationErr,
		Path: pathFromLocation(deepestLocation(validationErr)),
	}
}

// deepestLocation returns the longest instance location among err and all
// of its causes.
func deepestLocation(err *jsonschema.ValidationError) []string {
	deepest := err.InstanceLocation

	for _, cause := range err.Causes {
		if loc := deepestLocation(cause); len(loc) > len(deepest) {
			deepest = loc
		}
	}

	return deepest
}

// pathFromLocation converts a JSON pointer, split into tokens, to a
// [yaml.Path]. Numeric tokens are treated as sequence indexes.
func pathFromLocation(location []string) *yaml.Path {
	pb := NewPathBuilder().Root()

	for _, part := range location {
		if idx, err := strconv.ParseUint(part, 10, 32); err == nil {
			pb = pb.Index(uint(idx))

			continue
		}

		pb = pb.Child(part)
	}

	return pb.Build()
}
