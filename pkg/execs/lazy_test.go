package execs_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/execs"
)

func TestLazyRegexp(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		pattern string
		name    string
		wantErr bool
		wantNil bool
		wantHit bool
	}{
		"matching name": {
			pattern: "^CLEAN_",
			name:    "CLEAN_MODE",
			wantHit: true,
		},
		"other name": {
			pattern: "^CLEAN_",
			name:    "HOME",
		},
		"empty pattern": {
			pattern: "",
			name:    "CLEAN_MODE",
			wantNil: true,
		},
		"invalid pattern": {
			pattern: "[",
			name:    "[",
			wantErr: true,
			wantNil: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			lr := execs.NewLazyRegexp(tc.pattern)

			var wg sync.WaitGroup
			for range 8 {
				wg.Go(func() {
					lr.MatchString(tc.name)
				})
			}
			wg.Wait()

			assert.Equal(t, tc.wantHit, lr.MatchString(tc.name))

			re, err := lr.Get()
			if tc.wantErr {
				require.ErrorContains(t, err, "compile passthrough pattern")
			} else {
				require.NoError(t, err)
			}

			if tc.wantNil {
				assert.Nil(t, re)
			} else {
				assert.NotNil(t, re)
			}
		})
	}
}
