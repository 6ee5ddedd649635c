package yaml_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/yaml"
)

const errorSource = `apiVersion: cleantools.pity-fox.dev/v1
kind: Configuration
command:
  shell: often
  timeout: 30s
`

func TestErrorString(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  yaml.Error
		want string
	}{
		"no cause": {
			err:  yaml.Error{},
			want: "",
		},
		"no position": {
			err:  yaml.Error{Err: errors.New("boom")},
			want: "boom",
		},
		"path without source": {
			err: yaml.Error{
				Err:  errors.New("boom"),
				Path: yaml.NewPathBuilder().Root().Child("command").Child("shell").Build(),
			},
			want: "error at $.command.shell: boom",
		},
		"path resolved against source": {
			err: yaml.Error{
				Err:    errors.New("boom"),
				Path:   yaml.NewPathBuilder().Root().Child("command").Child("shell").Build(),
				Source: []byte(errorSource),
			},
			want: "[4:3] boom",
		},
		"top-level key": {
			err: yaml.Error{
				Err:    errors.New("boom"),
				Path:   yaml.NewPathBuilder().Root().Child("kind").Build(),
				Source: []byte(errorSource),
			},
			want: "[2:1] boom",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	w := yaml.NewErrorWrapper(yaml.WithSource([]byte(errorSource)))

	require.NoError(t, w.Wrap(nil))

	plain := errors.New("plain")
	assert.Same(t, plain, w.Wrap(plain))

	cause := errors.New("boom")
	wrapped := w.Wrap(&yaml.Error{
		Err:  cause,
		Path: yaml.NewPathBuilder().Root().Child("command").Child("shell").Build(),
	})

	require.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "[4:3] boom", wrapped.Error())
}

func TestDecoderError(t *testing.T) {
	t.Parallel()

	var v any

	err := yaml.NewDecoder(bytes.NewReader([]byte("a: [1, 2\n"))).Decode(&v)
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.NotNil(t, yamlErr.Token)
}

func TestEncoder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]any{"env": []string{"A", "B"}}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "env:\n  - A\n  - B\n", buf.String())
}
