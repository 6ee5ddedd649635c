package execs

import (
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"
)

// essentialVars are always passed through from the caller environment.
var essentialVars = []string{
	"PATH", "HOME", "USER", "TERM", "LANG", "TMPDIR",
	// Windows.
	"SystemRoot", "SystemDrive", "ComSpec", "PATHEXT", "TEMP", "TMP", "USERPROFILE", "windir",
}

// CallerRef references environment variables of the calling process.
type CallerRef struct {
	regex *LazyRegexp

	// Pattern is a regex matching environment variable names.
	Pattern string `json:"pattern,omitempty" jsonschema:"title=Pattern,format=regex"`
	// Name is a single environment variable name.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
}

// Compile compiles the pattern, if any.
func (c *CallerRef) Compile() error {
	if c.Pattern == "" {
		return nil
	}

	if c.regex == nil {
		c.regex = NewLazyRegexp(c.Pattern)
	}

	_, err := c.regex.Get()

	return err
}

func (c *CallerRef) matches(key string) bool {
	return c.regex != nil && c.regex.MatchString(key)
}

// EnvVar sets one environment variable for executed commands.
type EnvVar struct {
	// Name is the environment variable name.
	Name string `json:"name" jsonschema:"title=Name"`
	// Value is the environment variable value.
	Value string `json:"value,omitempty" jsonschema:"title=Value"`
}

// Environment builds the environment of executed commands: the essential
// caller variables, plus variables inherited through Passthrough, plus Env.
type Environment struct {
	base map[string]string
	// Passthrough inherits matching variables from the caller.
	Passthrough []CallerRef `json:"passthrough,omitempty" jsonschema:"title=Passthrough"`
	// Env sets static variables.
	Env []EnvVar `json:"env,omitempty" jsonschema:"title=Environment Variables"`
}

// NewEnvironment creates an [Environment] over a base environment, usually
// [os.Environ].
func NewEnvironment(baseEnv []string) *Environment {
	e := &Environment{}
	e.SetBaseEnv(baseEnv)

	return e
}

// SetBaseEnv replaces the caller environment.
func (e *Environment) SetBaseEnv(baseEnv []string) {
	e.base = make(map[string]string, len(baseEnv))
	for _, kv := range baseEnv {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			e.base[key] = value
		}
	}
}

// Compile compiles all passthrough patterns.
func (e *Environment) Compile() error {
	for i := range e.Passthrough {
		if err := e.Passthrough[i].Compile(); err != nil {
			return fmt.Errorf("passthrough[%d]: %w", i, err)
		}
	}

	return nil
}

// Environ returns the environment in "KEY=value" form, sorted by key.
func (e *Environment) Environ() []string {
	env := map[string]string{}

	for key, value := range e.base {
		if isEssential(key) {
			env[key] = value
		}
	}

	for i := range e.Passthrough {
		ref := &e.Passthrough[i]
		for key, value := range e.base {
			if ref.matches(key) {
				env[key] = value
			}
		}

		if value, ok := e.base[ref.Name]; ok && ref.Name != "" {
			env[ref.Name] = value
		}
	}

	for _, v := range e.Env {
		if v.Name != "" {
			env[v.Name] = v.Value
		}
	}

	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}

	sort.Strings(out)

	return out
}

func isEssential(key string) bool {
	if runtime.GOOS == "windows" {
		return slices.ContainsFunc(essentialVars, func(v string) bool {
			return strings.EqualFold(v, key)
		})
	}

	return slices.Contains(essentialVars, key)
}
