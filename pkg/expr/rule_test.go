package expr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/expr"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/status"
)

func TestRuleFilterMatch(t *testing.T) {
	t.Parallel()

	existing := filepath.Join(t.TempDir(), "cache.log")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	b := &rule.Bundle{
		Name:      "Temp Cleanup",
		Version:   "1.0",
		Author:    "A****",
		Encrypted: true,
		Status:    status.CannotVerify,
		Script: "# temp files\n" +
			"cl " + existing + "\n" +
			"cl /var/tmp/cache\n" +
			"system echo done\n",
	}

	tcs := map[string]struct {
		expression string
		want       bool
	}{
		"name":             {expression: `name == "Temp Cleanup"`, want: true},
		"status":           {expression: `status == "valid"`, want: false},
		"denied":           {expression: `encrypted && !allowed`, want: true},
		"target count":     {expression: `targets.size() == 2`, want: true},
		"commands":         {expression: `commands.exists(c, c.startsWith("echo"))`, want: true},
		"path base":        {expression: `targets.exists(t, pathBase(t) == "cache")`, want: true},
		"path dir":         {expression: `targets.all(t, pathDir(t) == "/var/tmp")`, want: false},
		"path ext":         {expression: `targets.exists(t, pathExt(t) == ".log")`, want: true},
		"path exists":      {expression: `targets.filter(t, pathExists(t)).size() == 1`, want: true},
		"string extension": {expression: `author.lowerAscii().startsWith("a")`, want: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, err := expr.NewRuleFilter(tc.expression)
			require.NoError(t, err)

			got, err := f.Match(b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRuleFilterErrors(t *testing.T) {
	t.Parallel()

	_, err := expr.NewRuleFilter(`unknown == 1`)
	require.Error(t, err)

	f, err := expr.NewRuleFilter(`name`)
	require.NoError(t, err)

	_, err = f.Match(&rule.Bundle{Name: "x"})
	require.ErrorIs(t, err, expr.ErrNotBool)
}

func TestRuleFilterFilter(t *testing.T) {
	t.Parallel()

	rules := map[string]*rule.Bundle{
		"a": {Name: "a", Status: status.Valid, Encrypted: true},
		"b": {Name: "b", Status: status.Tampered, Encrypted: true},
		"c": {Name: "c", Status: status.PlainUnencrypted},
	}

	f, err := expr.NewRuleFilter(`allowed`)
	require.NoError(t, err)

	got, err := f.Filter(rules)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "c")
}
