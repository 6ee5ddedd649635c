package rule

import "sync"

// Keyring holds original author names supplied by the caller, keyed by rule
// key. A claim from the keyring is tried before the stored (masked) author
// when verifying an encrypted rule.
type Keyring interface {
	Author(key string) (string, bool)
	SetAuthor(key, author string)
	Forget(key string)
}

// MemoryKeyring is an in-memory [Keyring]. Its contents are never persisted.
type MemoryKeyring struct {
	authors map[string]string
	mu      sync.RWMutex
}

// NewMemoryKeyring creates an empty [MemoryKeyring].
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{authors: map[string]string{}}
}

// Author implements [Keyring].
func (k *MemoryKeyring) Author(key string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	a, ok := k.authors[Key(key)]

	return a, ok
}

// SetAuthor implements [Keyring].
func (k *MemoryKeyring) SetAuthor(key, author string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.authors[Key(key)] = author
}

// Forget implements [Keyring].
func (k *MemoryKeyring) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.authors, Key(key))
}

// keyedMutex serializes mutations of a single rule directory.
type keyedMutex struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()

	return l.Unlock
}
