package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/status"
)

type VerifyArgs struct {
	*RootArgs

	Author     string
	ShowRecord bool
}

func (va *VerifyArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&va.Author, "author", "", "Original author of an encrypted rule, used to verify it")
	cmd.Flags().BoolVar(&va.ShowRecord, "show-record", false, "Print the decrypted integrity record, requires --author")

	cmd.MarkFlagsRequiredTogether("show-record", "author")
}

func NewVerifyCmd(ra *RootArgs) *cobra.Command {
	va := &VerifyArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "verify [name]",
		Short: "Verify the integrity of one rule, or summarize every rule",
		Long: `Verify the integrity of one rule, or summarize every rule.

With a name, the rule is verified and the command fails if the rule would
not be allowed to run. Without a name, every rule is loaded and a summary
of their security status is printed.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: ruleNames(ra),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := va.open()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				sum, err := a.store.Summary(cmd.Context())
				if err != nil {
					return fmt.Errorf("summarize rules: %w", err)
				}

				writeSummary(cmd.OutOrStdout(), sum)

				return nil
			}

			if va.Author != "" {
				a.keyring.SetAuthor(args[0], va.Author)
			}

			b, err := a.getRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
				b.Name, statusStyle(b.Status).Render(b.Status.String())))

			if b.StatusMessage != "" {
				mustN(fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(b.StatusMessage)))
			}

			if va.ShowRecord {
				rec, err := manifest.Inspect(b.Dir, va.Author)
				if err != nil {
					return fmt.Errorf("rule %q: %w", b.Name, err)
				}

				writeRecord(cmd.OutOrStdout(), rec)
			}

			if err := policy.Check(b.Status); err != nil {
				return fmt.Errorf("rule %q: %w", b.Name, err)
			}

			return nil
		},
	}
	va.AddFlags(cmd)

	return cmd
}

func writeSummary(w io.Writer, sum *rule.Summary) {
	mustN(fmt.Fprintf(w, "%s %d rules, %d verified\n",
		headerStyle.Render("Total:"), sum.Total, sum.Secure()))

	for _, s := range status.All {
		n := sum.Counts[s]
		if n == 0 {
			continue
		}

		mustN(fmt.Fprintf(w, "  %-20s %d\n", statusStyle(s).Render(s.String()), n))
	}

	if len(sum.Blocked) == 0 {
		return
	}

	rows := make([][]string, 0, len(sum.Blocked))
	for _, b := range sum.Blocked {
		rows = append(rows, []string{b.Name, b.Status.String(), b.Reason.String(), b.Message})
	}

	mustN(fmt.Fprintln(w))
	mustN(fmt.Fprintln(w, headerStyle.Render("Blocked:")))
	mustN(fmt.Fprintln(w, renderTable(
		[]string{"NAME", "STATUS", "REASON", "DETAILS"},
		rows,
		func(row, col int) (lipgloss.Style, bool) {
			if col != 1 {
				return lipgloss.Style{}, false
			}

			return statusStyle(sum.Blocked[row].Status), true
		},
	)))
}

func writeRecord(w io.Writer, rec *manifest.Record) {
	modified := time.Unix(rec.Timestamp, 0)

	mustN(fmt.Fprintln(w))
	mustN(fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Sealed by:"), rec.Author))
	mustN(fmt.Fprintf(w, "%s %s (%s)\n", headerStyle.Render("Modified: "),
		modified.Format(time.RFC3339), humanize.Time(modified)))

	for _, f := range []manifest.FileRecord{rec.RuleFile, rec.InfoFile} {
		mustN(fmt.Fprintf(w, "  %-16s %10s  %s\n", f.Name, humanize.Bytes(uint64(f.Size)), dimStyle.Render(f.Hash)))
	}
}
