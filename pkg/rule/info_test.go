package rule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/rule"
)

func TestInfoMarshalText(t *testing.T) {
	t.Parallel()

	info := &rule.Info{
		Name:        "Temp Cleanup",
		Version:     "1.0",
		Author:      "A****",
		Description: "Removes temp files",
		RandomKey:   "0123456789abcdef",
	}

	b, err := info.MarshalText()
	require.NoError(t, err)

	want := "Name\n{\n    Temp Cleanup\n}\n" +
		"version\n{\n    1.0\n}\n" +
		"Auther\n{\n    A****\n}\n" +
		"information\n{\n    Removes temp files\n}\n" +
		"random_key\n{\n    0123456789abcdef\n}\n"
	assert.Equal(t, want, string(b))

	got, err := rule.ParseInfo(b)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestInfoMarshalTextPlain(t *testing.T) {
	t.Parallel()

	b, err := (&rule.Info{Name: "n", Version: "1", Author: "a", Description: "line one\nline two"}).MarshalText()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "random_key")

	got, err := rule.ParseInfo(b)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got.Description)
	assert.Empty(t, got.RandomKey)
}

func TestParseInfo(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		want    *rule.Info
		input   string
		wantErr bool
	}{
		"defaults for missing blocks": {
			input: "Name\n{\n    Only Name\n}\n",
			want: &rule.Info{
				Name:        "Only Name",
				Version:     "1.0",
				Author:      "Unknown",
				Description: "none",
			},
		},
		"empty file": {
			input: "",
			want: &rule.Info{
				Name:        "Unknown",
				Version:     "1.0",
				Author:      "Unknown",
				Description: "none",
			},
		},
		"crlf line endings and unknown keys": {
			input: "Name\r\n{\r\n    Win\r\n}\r\nextra\r\n{\r\n  ignored\r\n}\r\nAuther\r\n{\r\n  Bob\r\n}\r\n",
			want: &rule.Info{
				Name:        "Win",
				Version:     "1.0",
				Author:      "Bob",
				Description: "none",
			},
		},
		"blank lines between blocks": {
			input: "\nName\n{\n  x\n}\n\n\nversion\n{\n  2.0\n}\n",
			want: &rule.Info{
				Name:        "x",
				Version:     "2.0",
				Author:      "Unknown",
				Description: "none",
			},
		},
		"unclosed block": {
			input:   "Name\n{\n  x\n",
			wantErr: true,
		},
		"brace without key": {
			input:   "{\n  x\n}\n",
			wantErr: true,
		},
		"stray closing brace": {
			input:   "Name\n{\n x\n}\n}\n",
			wantErr: true,
		},
		"value outside block": {
			input:   "Name\nvalue\n{\n}\n",
			wantErr: true,
		},
		"nested block": {
			input:   "Name\n{\n{\n}\n}\n",
			wantErr: true,
		},
		"trailing key": {
			input:   "Name\n{\n x\n}\nversion\n",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := rule.ParseInfo([]byte(tc.input))
			if tc.wantErr {
				require.ErrorIs(t, err, rule.ErrParse)

				var perr *rule.ParseError
				require.ErrorAs(t, err, &perr)
				assert.Positive(t, perr.Line)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
