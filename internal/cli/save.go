package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/rule"
)

type SaveArgs struct {
	*RootArgs

	Name        string
	Author      string
	Version     string
	Description string
	Script      string
	ScriptFile  string
	Encrypt     bool
}

func (sa *SaveArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.Name, "name", "", "Rule name")
	cmd.Flags().StringVar(&sa.Author, "author", "", "Rule author, the sealing password of encrypted rules")
	cmd.Flags().StringVar(&sa.Version, "version", rule.DefaultVersion, "Rule version")
	cmd.Flags().StringVar(&sa.Description, "description", "", "Rule description")
	cmd.Flags().StringVar(&sa.Script, "script", "", "Rule script text")
	cmd.Flags().StringVarP(&sa.ScriptFile, "script-file", "f", "", `Rule script file, "-" for stdin`)
	cmd.Flags().BoolVar(&sa.Encrypt, "encrypt", false, "Seal the rule with an integrity manifest and mask the author")

	must(cmd.MarkFlagRequired("name"))
	must(cmd.MarkFlagFilename("script-file", "clean"))
	cmd.MarkFlagsMutuallyExclusive("script", "script-file")
	cmd.MarkFlagsOneRequired("script", "script-file")
}

func NewSaveCmd(ra *RootArgs) *cobra.Command {
	sa := &SaveArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace a rule",
		Example: `  # Save a plain rule:
  cleantools save --name "Browser Cache" --author Bob --script "cl ~/.cache/browser"

  # Save an encrypted rule from stdin:
  cat rule.clean | cleantools save --name "Temp Cleanup" --author Alice -f - --encrypt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := sa.readScript(cmd.InOrStdin())
			if err != nil {
				return err
			}

			if sa.Encrypt && sa.Author == "" {
				return errors.New("--author is required with --encrypt")
			}

			a, err := sa.open()
			if err != nil {
				return err
			}

			b := rule.Bundle{
				Name:        sa.Name,
				Version:     sa.Version,
				Author:      sa.Author,
				Description: sa.Description,
				Script:      script,
				Encrypted:   sa.Encrypt,
			}
			if err := b.Validate(); err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			scriptPath := filepath.Join(a.store.Root(), rule.Key(sa.Name), manifest.RuleFileName)

			previous, err := fsutil.ReadFile(scriptPath)
			replaced := err == nil

			dir, err := a.store.Save(cmd.Context(), b)
			if err != nil {
				return err //nolint:wrapcheck // Already names the rule.
			}

			out := cmd.OutOrStdout()

			if replaced && string(previous) != script {
				mustN(fmt.Fprint(out, udiff.Unified(
					"a/"+manifest.RuleFileName, "b/"+manifest.RuleFileName, string(previous), script,
				)))
			}

			mustN(fmt.Fprintf(out, "Saved rule %q to %s\n", sa.Name, dir))

			if sa.Encrypt {
				mustN(fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf(
					"The author is stored as %q. Pass the original author with --author to verify the rule later.",
					rule.Mask(sa.Author),
				))))
			}

			return nil
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

func (sa *SaveArgs) readScript(stdin io.Reader) (string, error) {
	switch sa.ScriptFile {
	case "":
		return sa.Script, nil

	case "-":
		if stdinIsTerminal() {
			slog.Info("reading rule script from the terminal, end with Ctrl-D")
		}

		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}

		return string(data), nil
	}

	data, err := fsutil.ReadFile(sa.ScriptFile)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}

	return string(data), nil
}
