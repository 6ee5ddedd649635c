package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
)

type ShowArgs struct {
	*RootArgs

	Author string
	Output string
	Copy   bool
}

func (sa *ShowArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.Author, "author", "", "Original author of an encrypted rule, used to verify it")
	cmd.Flags().StringVarP(&sa.Output, "output", "o", outputTable, "Output format, one of: [table, json]")
	cmd.Flags().BoolVar(&sa.Copy, "copy", false, "Copy the rule script to the system clipboard")

	must(cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions([]string{outputTable, outputJSON}, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewShowCmd(ra *RootArgs) *cobra.Command {
	sa := &ShowArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:               "show <name>",
		Short:             "Show a rule, its script and its security status",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: ruleNames(ra),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sa.open()
			if err != nil {
				return err
			}

			if sa.Author != "" {
				a.keyring.SetAuthor(args[0], sa.Author)
			}

			b, err := a.getRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if sa.Copy {
				if err := clipboard.WriteAll(b.Script); err != nil {
					return fmt.Errorf("copy script: %w", err)
				}
			}

			return writeRule(cmd.OutOrStdout(), sa.Output, b)
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

// descriptionWidth wraps long descriptions in the field list.
const descriptionWidth = 64

// indent aligns continuation lines with the field values.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", 13))
}

func writeRule(w io.Writer, output string, b *rule.Bundle) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode rule: %w", err)
		}

		return nil

	case outputTable:
		size, modified := scriptStat(b)

		decision := "allowed"
		if d := policy.Decide(b.Status); !d.Allowed {
			decision = "denied (" + d.Reason.String() + ")"
		}

		fields := [][2]string{
			{"Name", b.Name},
			{"Version", b.Version},
			{"Author", b.Author},
			{"Description", indent(wordwrap.String(b.Description, descriptionWidth))},
			{"Encrypted", fmt.Sprint(b.Encrypted)},
			{"Status", statusStyle(b.Status).Render(b.Status.String())},
			{"Details", b.StatusMessage},
			{"Execution", decision},
			{"Script", size + ", modified " + modified},
			{"Path", b.Dir},
		}

		for _, f := range fields {
			if f[1] == "" {
				continue
			}

			mustN(fmt.Fprintf(w, "%s %s\n", headerStyle.Render(fmt.Sprintf("%-12s", f[0]+":")), f[1]))
		}

		mustN(fmt.Fprintln(w))

		script := b.Script
		if writerIsTerminal(w) {
			colored, err := newScriptHighlighter(termenv.ColorProfile()).Highlight(script)
			if err != nil {
				return err
			}

			script = colored
		}

		for line := range strings.Lines(script) {
			mustN(fmt.Fprint(w, "  ", strings.TrimRight(line, "\r\n"), "\n"))
		}

		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownOutput, output)
}
