// Package cli implements the cleantools command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/config"
	"github.com/pity-fox/cleantools/pkg/log"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/tracing"
)

const (
	cmdName = "cleantools"
	cmdDesc = `Manage and run signed file-cleaning rules.`

	cmdExamples = `  # List rules and their security status:
  cleantools list

  # Save an encrypted rule from a script file:
  cleantools save --name "Temp Cleanup" --author Alice --script-file ./rule.clean --encrypt

  # Verify and run it, supplying the original author:
  cleantools run "Temp Cleanup" --author Alice

  # Show what a rule would do without doing it:
  cleantools run "Temp Cleanup" --author Alice --dry-run`
)

type RootArgs struct {
	LogLevel   string
	LogFormat  string
	ConfigPath string
	RulesDir   string
	Language   string

	TraceEndpoint string
	TraceInsecure bool

	shutdownTracing tracing.ShutdownFunc
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "warn", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.ConfigPath, "config", "", "Path to the cleantools configuration file")
	cmd.PersistentFlags().
		StringVar(&ra.RulesDir, "rules-dir", "", "Rule store directory, overrides the configuration")
	cmd.PersistentFlags().
		StringVar(&ra.Language, "language", "", "Message language, overrides the configuration")

	cmd.PersistentFlags().
		StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP/gRPC endpoint receiving command traces, disabled when empty")
	cmd.PersistentFlags().
		BoolVar(&ra.TraceInsecure, "trace-insecure", false, "Connect to the trace endpoint without TLS")

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("language",
		cobra.FixedCompletions([]string{"en", "zh-Hans"}, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml"))
	must(cmd.MarkPersistentFlagDirname("rules-dir"))
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		Example:           cmdExamples,
		PersistentPreRunE:  setup(args),
		PersistentPostRunE: teardown(args),
		SilenceUsage:      true,
	}

	args.AddFlags(cmd)

	cmd.AddCommand(
		NewListCmd(args),
		NewShowCmd(args),
		NewSaveCmd(args),
		NewRunCmd(args),
		NewVerifyCmd(args),
		NewDeleteCmd(args),
		NewConfigCmd(args),
		NewMCPCmd(args),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		ra.shutdownTracing, err = tracing.Setup(cmd.Context(), ra.TraceEndpoint, ra.TraceInsecure)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}

		return nil
	}
}

func teardown(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ra.shutdownTracing == nil {
			return nil
		}

		if err := ra.shutdownTracing(cmd.Context()); err != nil {
			return fmt.Errorf("shutdown tracing: %w", err)
		}

		return nil
	}
}

// app holds what every subcommand needs, built from the configuration and
// the persistent flags.
type app struct {
	cfg        *config.Config
	catalog    messages.Catalog
	keyring    *rule.MemoryKeyring
	store      *rule.Store
	configPath string
}

func (ra *RootArgs) configPath() string {
	if ra.ConfigPath != "" {
		return ra.ConfigPath
	}

	return config.GetPath()
}

func (ra *RootArgs) open() (*app, error) {
	path := ra.configPath()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	lang := cfg.Language
	if ra.Language != "" {
		lang = ra.Language
	}

	rulesDir := cfg.ResolveRulesDir(path)
	if ra.RulesDir != "" {
		rulesDir = ra.RulesDir
	}

	slog.Debug("opened configuration",
		slog.String("path", path),
		slog.String("rules", rulesDir),
		slog.String("language", lang),
	)

	catalog := messages.NewPrinterFromString(lang)
	keyring := rule.NewMemoryKeyring()

	return &app{
		cfg:        cfg,
		catalog:    catalog,
		keyring:    keyring,
		configPath: path,
		store: rule.NewStore(rulesDir,
			rule.WithCatalog(catalog),
			rule.WithKeyring(keyring),
			rule.WithSink(messages.NewLogSink(slog.Default())),
		),
	}, nil
}

// ruleNames completes the first argument with the names of stored rules.
func ruleNames(ra *RootArgs) func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		a, err := ra.open()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		rules, err := a.store.Load(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		names := make([]cobra.Completion, 0, len(rules))
		for name, b := range rules {
			names = append(names, cobra.CompletionWithDesc(name, b.Description))
		}

		slices.Sort(names)

		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func stdinIsTerminal() bool {
	return isTerminal(os.Stdin)
}
