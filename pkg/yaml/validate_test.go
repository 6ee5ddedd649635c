package yaml_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/yaml"
)

const testSchema = `{
	"type": "object",
	"properties": {
		"kind": {"const": "Configuration"},
		"rulesDir": {"type": "string"},
		"command": {
			"type": "object",
			"properties": {
				"shell": {"type": "boolean"},
				"env": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"name": {"type": "string"},
							"value": {"type": "string"}
						},
						"required": ["name"],
						"additionalProperties": false
					}
				}
			},
			"additionalProperties": false
		}
	},
	"required": ["kind"],
	"additionalProperties": false
}`

func decode(t *testing.T, src string) any {
	t.Helper()

	var v any
	require.NoError(t, yaml.NewDecoder(bytes.NewReader([]byte(src))).Decode(&v))

	return v
}

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		schema  string
		wantErr string
	}{
		"valid schema": {
			schema: testSchema,
		},
		"invalid json": {
			schema:  `{"type": `,
			wantErr: "unmarshal schema",
		},
		"invalid schema": {
			schema:  `{"type": 42}`,
			wantErr: "compile schema",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v, err := yaml.NewValidator("mem://test.json", []byte(tc.schema))
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				assert.Nil(t, v)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}

func TestValidatorValidate(t *testing.T) {
	t.Parallel()

	v, err := yaml.NewValidator("mem://test.json", []byte(testSchema))
	require.NoError(t, err)

	tcs := map[string]struct {
		src      string
		wantPath string
	}{
		"valid": {
			src: "kind: Configuration\nrulesDir: rules\ncommand:\n  shell: true\n  env:\n    - name: A\n      value: b\n",
		},
		"missing required at root": {
			src:      "rulesDir: rules\n",
			wantPath: "$",
		},
		"wrong constant": {
			src:      "kind: Rule\n",
			wantPath: "$.kind",
		},
		"wrong type nested": {
			src:      "kind: Configuration\ncommand:\n  shell: often\n",
			wantPath: "$.command.shell",
		},
		"sequence item": {
			src:      "kind: Configuration\ncommand:\n  env:\n    - name: A\n    - value: b\n",
			wantPath: "$.command.env[1]",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := v.Validate(decode(t, tc.src))
			if tc.wantPath == "" {
				require.NoError(t, err)

				return
			}

			var yamlErr *yaml.Error
			require.ErrorAs(t, err, &yamlErr)
			require.NotNil(t, yamlErr.Path)
			assert.Equal(t, tc.wantPath, yamlErr.Path.String())
		})
	}
}
