package cli

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptHighlighter(t *testing.T) {
	t.Parallel()

	src := "# temp\ncl /tmp/cache\nsystem echo done\n"

	tcs := map[string]struct {
		profile   termenv.Profile
		wantColor bool
	}{
		"ascii":      {profile: termenv.Ascii, wantColor: false},
		"true color": {profile: termenv.TrueColor, wantColor: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := newScriptHighlighter(tc.profile).Highlight(src)
			require.NoError(t, err)

			if tc.wantColor {
				assert.Contains(t, got, "\x1b[")
				assert.Contains(t, got, "/tmp/cache")
			} else {
				assert.Equal(t, src, got)
			}
		})
	}
}
