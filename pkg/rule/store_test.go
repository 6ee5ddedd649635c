package rule_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/status"
)

func newStore(t *testing.T, opts ...rule.StoreOpt) (*rule.Store, *messages.Recorder) {
	t.Helper()

	rec := &messages.Recorder{}
	opts = append([]rule.StoreOpt{
		rule.WithSink(rec),
		rule.WithRandomKey(func() string { return "00112233445566778899aabbccddeeff" }),
	}, opts...)

	return rule.NewStore(t.TempDir(), opts...), rec
}

func encryptedBundle() rule.Bundle {
	return rule.Bundle{
		Name:        "Temp Cleanup",
		Version:     "1.0",
		Author:      "Alice",
		Description: "Removes temp files",
		Script:      "cl /tmp/a.txt\n",
		Encrypted:   true,
	}
}

func TestStoreSavePlain(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	dir, err := store.Save(ctx, rule.Bundle{
		Name:   "Browser Cache",
		Author: "Bob",
		Script: "# comment\ncl /tmp/cache\n",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "Browser_Cache"), dir)

	assert.FileExists(t, filepath.Join(dir, manifest.InfoFileName))
	assert.FileExists(t, filepath.Join(dir, manifest.RuleFileName))
	assert.NoFileExists(t, filepath.Join(dir, manifest.IntegrityFileName))

	rules, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, rules, "Browser Cache")

	b := rules["Browser Cache"]
	assert.Equal(t, status.PlainUnencrypted, b.Status)
	assert.False(t, b.Encrypted)
	assert.Equal(t, "Bob", b.Author)
	assert.Equal(t, rule.DefaultVersion, b.Version)
	assert.Equal(t, "# comment\ncl /tmp/cache\n", b.Script)
	assert.Equal(t, dir, b.Dir)
}

func TestStoreSaveEncrypted(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, rec := newStore(t)

	dir, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, manifest.IntegrityFileName))

	// The original author is never written to disk.
	for _, name := range []string{manifest.InfoFileName, manifest.RuleFileName, manifest.IntegrityFileName} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "Alice", name)
	}

	info, err := os.ReadFile(filepath.Join(dir, manifest.InfoFileName))
	require.NoError(t, err)
	assert.Contains(t, string(info), "A****")
	assert.Contains(t, string(info), "random_key\n{\n    00112233445566778899aabbccddeeff\n}\n")

	// The manifest is sealed with the original author.
	res := manifest.Verify(dir, "Alice")
	assert.Equal(t, status.Valid, res.Status)

	rules, err := store.Load(ctx)
	require.NoError(t, err)

	b := rules["Temp Cleanup"]
	require.NotNil(t, b)
	assert.True(t, b.Encrypted)
	assert.Equal(t, "A****", b.Author)
	assert.Equal(t, status.Valid, b.Status, b.StatusMessage)
	assert.Empty(t, rec.Messages())
}

func TestStoreLoadWithoutClaimCannotVerify(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	_, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)

	// A second store over the same directory has no author claim.
	rec := &messages.Recorder{}
	fresh := rule.NewStore(store.Root(), rule.WithSink(rec))

	rules, err := fresh.Load(ctx)
	require.NoError(t, err)

	b := rules["Temp Cleanup"]
	require.NotNil(t, b)
	assert.Equal(t, status.CannotVerify, b.Status)
	assert.Equal(t, "cannot verify: the author name is masked", b.StatusMessage)
	assert.False(t, policy.Allow(b.Status))

	require.Len(t, rec.Lines(), 1)
	assert.Contains(t, rec.Messages()[0], "Temp_Cleanup")

	// Supplying the original author restores verification.
	fresh.Keyring().SetAuthor("Temp Cleanup", "Alice")

	b, err = fresh.Get(ctx, "Temp Cleanup")
	require.NoError(t, err)
	assert.Equal(t, status.Valid, b.Status)
}

func TestStoreMaskedClaimNeverVerifies(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	// The manifest is sealed with "B*b" and the files are untouched, so
	// decryption would succeed. The redaction marker forces CannotVerify.
	b := encryptedBundle()
	b.Author = "B*b"

	dir, err := store.Save(ctx, b)
	require.NoError(t, err)
	require.Equal(t, status.Valid, manifest.Verify(dir, "B*b").Status)

	got, err := store.Get(ctx, b.Name)
	require.NoError(t, err)
	assert.Equal(t, status.CannotVerify, got.Status)
}

func TestStoreLoadTampered(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, rec := newStore(t)

	dir, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, manifest.RuleFileName), []byte("cl /tmp/a.txt\n  \n"), 0o600)
	require.NoError(t, err)

	rules, err := store.Load(ctx)
	require.NoError(t, err)

	b := rules["Temp Cleanup"]
	require.NotNil(t, b)
	assert.Equal(t, status.Tampered, b.Status)
	assert.Equal(t, "rule.clean has been tampered with", b.StatusMessage)
	assert.Equal(t, policy.ReasonTampered, policy.Decide(b.Status).Reason)

	require.Len(t, rec.Lines(), 1)
	assert.Contains(t, rec.Messages()[0], "tampering detected")
}

func TestStoreLoadClaimWithoutManifest(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	dir, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, manifest.IntegrityFileName)))

	b, err := store.Get(ctx, "Temp Cleanup")
	require.NoError(t, err)
	assert.True(t, b.Encrypted, "random_key block still claims encryption")
	assert.Equal(t, status.VerificationError, b.Status)
	assert.Equal(t, "missing required files", b.StatusMessage)
}

func TestStoreLoadLegacyMarker(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	dir := filepath.Join(store.Root(), "Legacy")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	info := "Name\n{\n    Legacy\n}\nversion\n{\n    1.0\n}\n" +
		"Auther\n{\n    A**** - 此文件为加密文件\n}\ninformation\n{\n    none\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.InfoFileName), []byte(info), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.RuleFileName), []byte("cl /tmp\n"), 0o600))

	b, err := store.Get(ctx, "Legacy")
	require.NoError(t, err)
	assert.True(t, b.Encrypted)
	assert.Equal(t, "A****", b.Author)
	assert.Equal(t, status.CannotVerify, b.Status)
}

func TestStoreLoadMalformedInfo(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, rec := newStore(t)

	_, err := store.Save(ctx, rule.Bundle{Name: "Good", Script: "cl /tmp\n"})
	require.NoError(t, err)

	dir := filepath.Join(store.Root(), "Broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.InfoFileName), []byte("Name\n{\n  x\n"), 0o600))

	// Directories without an info file and stray files are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "README"), []byte("x"), 0o600))

	rules, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, status.PlainUnencrypted, rules["Good"].Status)
	assert.Equal(t, status.VerificationError, rules["Broken"].Status)
	assert.False(t, policy.Allow(rules["Broken"].Status))

	require.Len(t, rec.Lines(), 1)
	assert.True(t, strings.HasPrefix(rec.Messages()[0], "Failed to load rule Broken"))
}

func TestStoreLoadMissingRoot(t *testing.T) {
	t.Parallel()

	store := rule.NewStore(filepath.Join(t.TempDir(), "does-not-exist"))

	rules, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestStoreResaveAsPlain(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	dir, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)

	b := encryptedBundle()
	b.Encrypted = false

	_, err = store.Save(ctx, b)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, manifest.IntegrityFileName))

	got, err := store.Get(ctx, b.Name)
	require.NoError(t, err)
	assert.Equal(t, status.PlainUnencrypted, got.Status)
	assert.Equal(t, "Alice", got.Author)

	_, ok := store.Keyring().Author(b.Name)
	assert.False(t, ok)
}

func TestStoreSaveInvalid(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		bundle rule.Bundle
	}{
		"empty name": {
			bundle: rule.Bundle{Name: ""},
		},
		"path separator": {
			bundle: rule.Bundle{Name: "a/b"},
		},
		"closing brace line in description": {
			bundle: rule.Bundle{Name: "Brace", Description: "step one\n}\nstep two"},
		},
		"opening brace line in description": {
			bundle: rule.Bundle{Name: "Brace", Description: "step one\n  {  \nstep two"},
		},
		"brace version": {
			bundle: rule.Bundle{Name: "Brace", Version: "}"},
		},
		"multi-line author": {
			bundle: rule.Bundle{Name: "Brace", Author: "Bob\nEve"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, _ := newStore(t)

			_, err := store.Save(t.Context(), tc.bundle)
			require.ErrorIs(t, err, rule.ErrInvalidBundle)

			rules, err := store.Load(t.Context())
			require.NoError(t, err)
			assert.Empty(t, rules, "a rejected bundle must not be written")
		})
	}
}

func TestStoreRoundTripPlainText(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		description string
	}{
		"inline braces": {
			description: "removes {tmp} and }cache{ dirs",
		},
		"random_key word": {
			description: "removes random_key caches",
		},
		"legacy marker word outside author": {
			description: "此文件为加密文件",
		},
		"multi-line": {
			description: "step one\nstep two",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			store, _ := newStore(t)

			_, err := store.Save(ctx, rule.Bundle{
				Name:        "Plain Text",
				Author:      "Bob",
				Description: tc.description,
				Script:      "cl /tmp/x\n",
			})
			require.NoError(t, err)

			b, err := rule.NewStore(store.Root()).Get(ctx, "Plain Text")
			require.NoError(t, err)
			assert.Equal(t, "Plain Text", b.Name)
			assert.Equal(t, "Bob", b.Author)
			assert.Equal(t, tc.description, b.Description)
			assert.False(t, b.Encrypted)
			assert.Equal(t, status.PlainUnencrypted, b.Status)
		})
	}
}

func TestStoreSaveIOFailure(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("not a directory"), 0o600))

	store := rule.NewStore(root)

	_, err := store.Save(t.Context(), rule.Bundle{Name: "x"})
	require.ErrorIs(t, err, rule.ErrIO)
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := newStore(t)

	dir, err := store.Save(ctx, encryptedBundle())
	require.NoError(t, err)

	ok, err := store.Delete("Temp Cleanup")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoDirExists(t, dir)

	ok, err = store.Delete("Temp Cleanup")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "Temp Cleanup")
	require.ErrorIs(t, err, rule.ErrNotFound)
}

func TestStoreSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.Save(ctx, rule.Bundle{Name: "Plain", Script: "cl /tmp\n"})
	require.NoError(t, err)

	_, err = store.Save(ctx, encryptedBundle())
	require.NoError(t, err)

	masked := encryptedBundle()
	masked.Name = "Masked"
	masked.Author = "Z*"

	_, err = store.Save(ctx, masked)
	require.NoError(t, err)

	tampered := encryptedBundle()
	tampered.Name = "Tampered"

	dir, err := store.Save(ctx, tampered)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.RuleFileName), []byte("system rm -rf /\n"), 0o600))

	sum, err := store.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.Secure())
	assert.Equal(t, 1, sum.Counts[status.PlainUnencrypted])
	assert.Equal(t, 1, sum.Counts[status.CannotVerify])
	assert.Equal(t, 1, sum.Counts[status.Tampered])

	require.Len(t, sum.Blocked, 2)
	assert.Equal(t, "Masked", sum.Blocked[0].Name)
	assert.Equal(t, policy.ReasonCannotVerify, sum.Blocked[0].Reason)
	assert.Equal(t, "Tampered", sum.Blocked[1].Name)
	assert.Equal(t, policy.ReasonTampered, sum.Blocked[1].Reason)
}

func TestMemoryKeyring(t *testing.T) {
	t.Parallel()

	k := rule.NewMemoryKeyring()

	_, ok := k.Author("Temp Cleanup")
	assert.False(t, ok)

	k.SetAuthor("Temp Cleanup", "Alice")

	a, ok := k.Author("Temp_Cleanup")
	assert.True(t, ok)
	assert.Equal(t, "Alice", a)

	k.Forget("Temp Cleanup")

	_, ok = k.Author("Temp Cleanup")
	assert.False(t, ok)
}
