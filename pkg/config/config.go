package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/pity-fox/cleantools/pkg/execs"
	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/yaml"
)

const (
	// APIVersion is the current configuration API version.
	APIVersion = "cleantools.pity-fox.dev/v1"
	// Kind is the kind of the configuration file.
	Kind = "Configuration"

	// FileName is the name of the configuration file.
	FileName = "config.yaml"
	// DefaultRulesDir is the rule store directory name, relative to the
	// configuration directory.
	DefaultRulesDir = "rules"
	// DefaultLanguage is the language of user-facing messages.
	DefaultLanguage = "en"
)

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ErrInvalid is returned by [Config.Validate].
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the cleantools configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Command configures the execution of "system" lines.
	Command *CommandConfig `json:"command,omitempty" jsonschema:"title=Command"`
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// RulesDir is the rule store directory. Relative paths are resolved
	// against the directory of the configuration file.
	RulesDir string `json:"rulesDir,omitempty" jsonschema:"title=Rules Directory"`
	// Language selects the language of user-facing messages, as a BCP 47
	// tag. English and Simplified Chinese are available.
	Language string `json:"language,omitempty" jsonschema:"title=Language,example=en,example=zh-Hans"`
}

// CommandConfig configures the execution of "system" lines.
type CommandConfig struct {
	// Shell runs commands through the system shell. When false, command
	// lines are split into words and shell operators are rejected.
	Shell *bool `json:"shell,omitempty" jsonschema:"title=Shell"`
	// Timeout bounds every command, as a Go duration string.
	Timeout string `json:"timeout,omitempty" jsonschema:"title=Timeout,example=30s"`
	// Passthrough lists caller environment variables that commands inherit.
	Passthrough []execs.CallerRef `json:"passthrough,omitempty" jsonschema:"title=Passthrough"`
	// Env sets static environment variables for commands.
	Env []execs.EnvVar `json:"env,omitempty" jsonschema:"title=Environment Variables"`
}

// NewConfig creates a new [Config] with default values.
func NewConfig() *Config {
	c := &Config{
		APIVersion: APIVersion,
		Kind:       Kind,
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes empty fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.RulesDir == "" {
		c.RulesDir = DefaultRulesDir
	}

	if c.Language == "" {
		c.Language = DefaultLanguage
	}

	if c.Command == nil {
		c.Command = &CommandConfig{}
	}

	c.Command.EnsureDefaults()
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	if c.Command == nil {
		return nil
	}

	return c.Command.Validate()
}

// JSONSchemaExtend adds apiVersion and kind constraints.
func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	for prop, value := range map[string]string{"apiVersion": APIVersion, "kind": Kind} {
		s, ok := jss.Properties.Get(prop)
		if !ok {
			panic(prop + " property not found in schema")
		}

		s.Const = value
		_, _ = jss.Properties.Set(prop, s)
	}
}

// ResolveRulesDir returns RulesDir, made absolute relative to the directory
// of the configuration file at path.
func (c *Config) ResolveRulesDir(path string) string {
	if filepath.IsAbs(c.RulesDir) {
		return c.RulesDir
	}

	return filepath.Join(filepath.Dir(path), c.RulesDir)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b := &bytes.Buffer{}

	enc := yaml.NewEncoder(b)

	err := enc.Encode(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b.Bytes(), nil
}

// EnsureDefaults initializes empty fields to their default values.
func (c *CommandConfig) EnsureDefaults() {
	if c.Shell == nil {
		shell := true
		c.Shell = &shell
	}

	if c.Timeout == "" {
		c.Timeout = execs.DefaultTimeout.String()
	}
}

// Validate checks the timeout and compiles passthrough patterns.
func (c *CommandConfig) Validate() error {
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("%w: command.timeout: %w", ErrInvalid, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: command.timeout: must be positive", ErrInvalid)
		}
	}

	for i := range c.Passthrough {
		if err := c.Passthrough[i].Compile(); err != nil {
			return fmt.Errorf("%w: command.passthrough[%d]: %w", ErrInvalid, i, err)
		}
	}

	return nil
}

// GetTimeout returns the parsed timeout, or [execs.DefaultTimeout].
func (c *CommandConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return execs.DefaultTimeout
	}

	return d
}

// Mode returns the [execs.Mode] selected by Shell.
func (c *CommandConfig) Mode() execs.Mode {
	if c.Shell != nil && !*c.Shell {
		return execs.ModeArgv
	}

	return execs.ModeShell
}

// Environment builds the command environment over baseEnv.
func (c *CommandConfig) Environment(baseEnv []string) (*execs.Environment, error) {
	env := execs.NewEnvironment(baseEnv)
	env.Passthrough = c.Passthrough
	env.Env = c.Env

	if err := env.Compile(); err != nil {
		return nil, fmt.Errorf("%w: command: %w", ErrInvalid, err)
	}

	return env, nil
}

// GetPath returns the path to the configuration file.
func GetPath() string {
	return fsutil.GetConfigPath(FileName)
}

// WriteDefaultConfig writes the embedded default configuration to path. An
// existing file is kept unless force is set, in which case it is renamed to a
// timestamped backup first.
func WriteDefaultConfig(path string, force bool) error {
	configExists := false

	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		switch {
		case err == nil && pathInfo.Mode().IsRegular():
			configExists = true
		case pathInfo.IsDir():
			return fmt.Errorf("%s: path is a directory", path)
		default:
			return fmt.Errorf("%s: unknown file state", path)
		}
	}

	if configExists && !force {
		slog.Debug("configuration file already exists, skipping write", slog.String("path", path))

		return nil
	}

	if configExists {
		backupFile := fmt.Sprintf("%s.%d.old", filepath.Base(path), time.Now().UnixNano())
		backupPath := filepath.Join(filepath.Dir(path), backupFile)
		slog.Info("backing up existing config file", slog.String("path", backupPath))

		err = os.Rename(path, backupPath)
		if err != nil {
			return fmt.Errorf("rename existing config file to backup: %w", err)
		}
	}

	slog.Info("write default configuration", slog.String("path", path))

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	err = fsutil.WriteFileAtomic(path, defaultConfigYAML, 0o600)
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
