package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/execs"
	"github.com/pity-fox/cleantools/pkg/script"
)

// ErrRunFailed is returned when some lines of a rule script failed.
var ErrRunFailed = errors.New("rule finished with failures")

type RunArgs struct {
	*RootArgs

	Author string
	DryRun bool
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.Author, "author", "", "Original author of an encrypted rule, used to verify it")
	cmd.Flags().BoolVar(&ra.DryRun, "dry-run", false, "Verify the rule and print its lines without running them")
}

func NewRunCmd(root *RootArgs) *cobra.Command {
	ra := &RunArgs{RootArgs: root}

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Verify a rule and execute its script",
		Long: `Verify a rule and execute its script.

Encrypted rules store a masked author and cannot be verified unless the
original author is passed with --author. Rules that are tampered with, or
cannot be verified, are never executed.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: ruleNames(root),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ra.open()
			if err != nil {
				return err
			}

			if ra.Author != "" {
				a.keyring.SetAuthor(args[0], ra.Author)
			}

			ctx := cmd.Context()

			b, err := a.getRule(ctx, args[0])
			if err != nil {
				return err
			}

			env, err := a.cfg.Command.Environment(os.Environ())
			if err != nil {
				return fmt.Errorf("invalid config %q: %w", a.configPath, err)
			}

			executor := execs.NewExecutor(
				execs.WithMode(a.cfg.Command.Mode()),
				execs.WithEnvironment(env),
			)

			in := script.NewInterpreter(script.FSCleaner{}, executor,
				script.WithSink(newOutputSink(cmd.OutOrStdout())),
				script.WithCatalog(a.catalog),
				script.WithTimeout(a.cfg.Command.GetTimeout()),
				script.WithDryRun(ra.DryRun),
			)

			report, err := in.RunRule(ctx, b)
			if err != nil {
				return err //nolint:wrapcheck // Already names the rule.
			}

			slog.Debug("rule finished",
				slog.String("rule", b.Name),
				slog.Int("lines", len(report.Outcomes)),
				slog.Int("failed", report.Failed()),
			)

			if !report.Succeeded {
				return fmt.Errorf("%w: %d of %d lines failed", ErrRunFailed, report.Failed(), len(report.Outcomes))
			}

			return nil
		},
	}
	ra.AddFlags(cmd)

	return cmd
}
