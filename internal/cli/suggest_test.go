package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	t.Parallel()

	names := []string{"Temp Cleanup", "Browser Cache", "Logs", "Thumbnails"}

	tcs := map[string]struct {
		name string
		want []string
	}{
		"subsequence": {name: "tmp", want: []string{`"Temp Cleanup"`}},
		"no match":    {name: "zzz", want: []string{}},
		"prefix":      {name: "Brow", want: []string{`"Browser Cache"`}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, suggest(tc.name, names))
		})
	}
}
