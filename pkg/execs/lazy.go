package execs

import (
	"fmt"
	"regexp"
	"sync"
)

// LazyRegexp compiles an environment variable name pattern on first use.
// Configuration can hold many passthrough patterns that a run never needs,
// so none of them is compiled at load time. It is safe for concurrent use.
type LazyRegexp struct {
	err     error
	regex   *regexp.Regexp
	pattern string
	once    sync.Once
}

// NewLazyRegexp creates a [LazyRegexp] for pattern.
func NewLazyRegexp(pattern string) *LazyRegexp {
	return &LazyRegexp{pattern: pattern}
}

// Get returns the compiled pattern. An empty pattern yields nil and no
// error. The result of the first call is cached.
func (lr *LazyRegexp) Get() (*regexp.Regexp, error) {
	lr.once.Do(func() {
		if lr.pattern == "" {
			return
		}

		lr.regex, lr.err = regexp.Compile(lr.pattern)
		if lr.err != nil {
			lr.err = fmt.Errorf("compile passthrough pattern %q: %w", lr.pattern, lr.err)
		}
	})

	return lr.regex, lr.err
}

// MatchString reports whether name matches the pattern. An empty or invalid
// pattern matches nothing.
func (lr *LazyRegexp) MatchString(name string) bool {
	re, err := lr.Get()
	if err != nil || re == nil {
		return false
	}

	return re.MatchString(name)
}
