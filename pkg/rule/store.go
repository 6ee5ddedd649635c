package rule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/log"
	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/status"
)

// Store persists rules under a root directory.
type Store struct {
	catalog   messages.Catalog
	sink      messages.Sink
	keyring   Keyring
	randomKey func() string
	root      string
	locks     keyedMutex
}

// StoreOpt configures a [Store].
type StoreOpt func(*Store)

// WithSink sets the sink receiving security warnings and load failures.
func WithSink(sink messages.Sink) StoreOpt {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithCatalog sets the catalog used to format messages.
func WithCatalog(c messages.Catalog) StoreOpt {
	return func(s *Store) {
		s.catalog = c
	}
}

// WithKeyring sets the keyring holding original author claims.
func WithKeyring(k Keyring) StoreOpt {
	return func(s *Store) {
		s.keyring = k
	}
}

// WithRandomKey overrides the generator for the decorative random_key block.
func WithRandomKey(f func() string) StoreOpt {
	return func(s *Store) {
		s.randomKey = f
	}
}

// NewStore creates a [Store] rooted at root.
func NewStore(root string, opts ...StoreOpt) *Store {
	s := &Store{
		root:      root,
		catalog:   messages.Default,
		sink:      messages.Discard,
		keyring:   NewMemoryKeyring(),
		randomKey: newRandomKey,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Keyring returns the store's keyring.
func (s *Store) Keyring() Keyring {
	return s.keyring
}

func newRandomKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Save writes the bundle to disk and returns the rule directory.
//
// When b.Encrypted is set, the stored author is masked, a random_key block
// is added, and the companion files are sealed into an integrity file using
// the original author. The original author is remembered in the keyring.
func (s *Store) Save(ctx context.Context, b Bundle) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}

	b.EnsureDefaults()

	key := Key(b.Name)
	dir := filepath.Join(s.root, key)

	logger := log.WithContext(ctx).With(
		slog.String("rule", b.Name),
		slog.String("path", dir),
		slog.Bool("encrypted", b.Encrypted),
	)

	unlock := s.locks.lock(key)
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create rule directory: %w", ErrIO, err)
	}

	info := &Info{
		Name:        b.Name,
		Version:     b.Version,
		Author:      b.Author,
		Description: b.Description,
	}
	if b.Encrypted {
		info.Author = Mask(b.Author)
		info.RandomKey = s.randomKey()
	}

	infoData, err := info.MarshalText()
	if err != nil {
		return "", fmt.Errorf("encode info file: %w", err)
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(dir, manifest.InfoFileName), infoData, 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := fsutil.WriteFileAtomic(filepath.Join(dir, manifest.RuleFileName), []byte(b.Script), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}

	if !b.Encrypted {
		err := os.Remove(filepath.Join(dir, manifest.IntegrityFileName))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: remove stale integrity file: %w", ErrIO, err)
		}

		s.keyring.Forget(key)
		logger.DebugContext(ctx, "saved rule")

		return dir, nil
	}

	if _, err := manifest.Write(dir, b.Author); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}

	s.keyring.SetAuthor(key, b.Author)
	logger.DebugContext(ctx, "saved sealed rule")

	return dir, nil
}

// Load scans the store root and returns every rule keyed by name, each
// classified into a [status.Status]. A rule that cannot be read is still
// returned, with [status.VerificationError]. A missing root yields an empty
// map.
func (s *Store) Load(ctx context.Context) (map[string]*Bundle, error) {
	rules := map[string]*Bundle{}

	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read rules directory: %w", ErrIO, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		b, ok := s.loadDir(ctx, e.Name())
		if !ok {
			continue
		}

		if prev, dup := rules[b.Name]; dup {
			log.WithContext(ctx).WarnContext(ctx, "duplicate rule name",
				slog.String("rule", b.Name),
				slog.String("path", b.Dir),
				slog.String("shadowed", prev.Dir),
			)
		}

		rules[b.Name] = b
	}

	return rules, nil
}

// Get loads a single rule by name.
func (s *Store) Get(ctx context.Context, name string) (*Bundle, error) {
	key := Key(name)
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	b, ok := s.loadDir(ctx, key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return b, nil
}

// Delete removes the rule directory. It returns false if the rule does not
// exist.
func (s *Store) Delete(name string) (bool, error) {
	key := Key(name)
	if !validKey(key) {
		return false, nil
	}

	unlock := s.locks.lock(key)
	defer unlock()

	dir := filepath.Join(s.root, key)

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !info.IsDir() {
		return false, nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("%w: delete rule: %w", ErrIO, err)
	}

	s.keyring.Forget(key)

	return true, nil
}

// loadDir reads one rule directory. It returns false when the directory
// holds no info file.
func (s *Store) loadDir(ctx context.Context, key string) (*Bundle, bool) {
	dir := filepath.Join(s.root, key)
	infoPath := filepath.Join(dir, manifest.InfoFileName)

	if !fsutil.Exists(infoPath) {
		return nil, false
	}

	logger := log.WithContext(ctx).With(slog.String("path", dir))

	fail := func(err error) (*Bundle, bool) {
		logger.WarnContext(ctx, "load rule", slog.Any("err", err))
		s.emit(slog.LevelError, messages.RuleLoadFailed, key, err)

		return &Bundle{
			Name:          key,
			Version:       DefaultVersion,
			Author:        unknownValue,
			Dir:           dir,
			Status:        status.VerificationError,
			StatusMessage: s.catalog.Sprintf(messages.IntegrityIOError, err),
		}, true
	}

	raw, err := fsutil.ReadFile(infoPath)
	if err != nil {
		return fail(err)
	}

	info, err := ParseInfo(raw)
	if err != nil {
		return fail(err)
	}

	script, err := fsutil.ReadFile(filepath.Join(dir, manifest.RuleFileName))
	scriptExists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fail(err)
	}

	b := &Bundle{
		Name:        info.Name,
		Version:     info.Version,
		Author:      stripLegacyMarker(info.Author),
		Description: info.Description,
		Script:      string(script),
		Dir:         dir,
		Status:      status.PlainUnencrypted,
	}

	manifestExists := fsutil.Exists(filepath.Join(dir, manifest.IntegrityFileName))
	if claimsEncryption(info, manifestExists) {
		b.Encrypted = true
		s.classify(key, b, content{script: script, info: raw, scriptExists: scriptExists})
	}

	logger.DebugContext(ctx, "loaded rule",
		slog.String("rule", b.Name),
		slog.String("status", b.Status.String()),
	)

	return b, true
}

// content holds the companion file bytes read by loadDir.
type content struct {
	script       []byte
	info         []byte
	scriptExists bool
}

// classify assigns the status of an encrypted rule. A masked claim is never
// decrypted. The record is checked against the bytes in c, which are the
// bytes b carries.
func (s *Store) classify(key string, b *Bundle, c content) {
	claim, ok := s.keyring.Author(key)
	if !ok {
		claim = b.Author
	}

	if IsMasked(claim) {
		b.Status = status.CannotVerify
		b.StatusMessage = s.catalog.Sprintf(messages.IntegrityRedacted)
		s.emit(slog.LevelWarn, messages.SecurityUnverified, key)

		return
	}

	var res manifest.Result
	if c.scriptExists {
		res = manifest.VerifyData(b.Dir, claim, c.script, c.info)
	} else {
		res = manifest.Verify(b.Dir, claim)
	}

	b.Status = res.Status
	b.StatusMessage = res.Message(s.catalog)

	switch res.Status {
	case status.Tampered:
		s.emit(slog.LevelWarn, messages.SecurityTampered, key, b.StatusMessage)
	case status.VerificationError:
		s.emit(slog.LevelWarn, messages.SecurityVerifyError, key, b.StatusMessage)
	}
}

func (s *Store) emit(level slog.Level, key messages.Key, args ...any) {
	s.sink.Emit(level, s.catalog.Sprintf(key, args...))
}
