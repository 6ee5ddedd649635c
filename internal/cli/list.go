package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/expr"
	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/rule"
)

const (
	outputTable = "table"
	outputJSON  = "json"

	// watchDebounce coalesces bursts of filesystem events, e.g. the several
	// files written by one save.
	watchDebounce = 250 * time.Millisecond
)

// ErrUnknownOutput is returned for an unsupported --output value.
var ErrUnknownOutput = errors.New("unknown output format")

type ListArgs struct {
	*RootArgs

	Output string
	Filter string
	Watch  bool
}

func (la *ListArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&la.Output, "output", "o", outputTable, "Output format, one of: [table, json]")
	cmd.Flags().BoolVarP(&la.Watch, "watch", "w", false, "Watch the rule store and re-list on changes")
	cmd.Flags().StringVar(&la.Filter, "filter", "", "CEL expression selecting the rules to list")

	must(cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions([]string{outputTable, outputJSON}, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewListCmd(ra *RootArgs) *cobra.Command {
	la := &ListArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rules and their security status",
		Example: `  # Encrypted rules that cannot run:
  cleantools list --filter 'encrypted && !allowed'

  # Rules running commands or cleaning below /tmp:
  cleantools list --filter 'commands.size() > 0 || targets.exists(t, t.startsWith("/tmp"))'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := la.open()
			if err != nil {
				return err
			}

			var filter *expr.RuleFilter
			if la.Filter != "" {
				filter, err = expr.NewRuleFilter(la.Filter)
				if err != nil {
					return fmt.Errorf("invalid filter: %w", err)
				}
			}

			render := func(ctx context.Context) error {
				rules, err := a.store.Load(ctx)
				if err != nil {
					return fmt.Errorf("load rules: %w", err)
				}

				if filter != nil {
					rules, err = filter.Filter(rules)
					if err != nil {
						return err //nolint:wrapcheck // Already names the rule.
					}
				}

				return writeRules(cmd.OutOrStdout(), la.Output, rules)
			}

			if !la.Watch {
				return render(cmd.Context())
			}

			return watchRules(cmd.Context(), a.store.Root(), cmd.OutOrStdout(), render)
		},
	}
	la.AddFlags(cmd)

	return cmd
}

func sortedRules(rules map[string]*rule.Bundle) []*rule.Bundle {
	out := make([]*rule.Bundle, 0, len(rules))
	for _, b := range rules {
		out = append(out, b)
	}

	slices.SortFunc(out, func(a, b *rule.Bundle) int {
		return strings.Compare(a.Name, b.Name)
	})

	return out
}

func writeRules(w io.Writer, output string, rules map[string]*rule.Bundle) error {
	sorted := sortedRules(rules)

	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(sorted); err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}

		return nil

	case outputTable:
		if len(sorted) == 0 {
			mustN(fmt.Fprintln(w, dimStyle.Render("No rules.")))

			return nil
		}

		rows := make([][]string, 0, len(sorted))
		for _, b := range sorted {
			size, modified := scriptStat(b)
			rows = append(rows, []string{b.Name, b.Version, b.Author, b.Status.String(), size, modified})
		}

		mustN(fmt.Fprintln(w, renderTable(
			[]string{"NAME", "VERSION", "AUTHOR", "STATUS", "SCRIPT", "MODIFIED"},
			rows,
			func(row, col int) (lipgloss.Style, bool) {
				if col != 3 {
					return lipgloss.Style{}, false
				}

				return statusStyle(sorted[row].Status), true
			},
		)))

		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownOutput, output)
}

// scriptStat returns the human-readable size and age of a rule's script.
func scriptStat(b *rule.Bundle) (string, string) {
	size := humanize.Bytes(uint64(len(b.Script)))

	fi, err := os.Stat(filepath.Join(b.Dir, manifest.RuleFileName))
	if err != nil {
		return size, "-"
	}

	return size, humanize.Time(fi.ModTime())
}

// watchRules renders once, then again after every burst of changes below
// root, until ctx is done.
func watchRules(ctx context.Context, root string, w io.Writer, render func(context.Context) error) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if err := watcher.Close(); err != nil {
			slog.Debug("close watcher", slog.Any("err", err))
		}
	}()

	if err := watchTree(watcher, root); err != nil {
		return err
	}

	clearScreen := writerIsTerminal(w)

	draw := func() {
		if clearScreen {
			mustN(fmt.Fprint(w, ansi.CursorHomePosition+ansi.EraseEntireScreen))
		}

		if err := render(ctx); err != nil {
			slog.Error("list rules", slog.Any("err", err))
		}
	}

	draw()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			slog.Debug("rule store changed", slog.String("event", event.String()))

			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("watch directory", slog.String("path", event.Name), slog.Any("err", err))
					}
				}
			}

			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watch rules", slog.Any("err", err))

		case <-timer.C:
			draw()
		}
	}
}

// watchTree watches root and its direct subdirectories, one per rule.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read rules directory: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		dir := filepath.Join(root, e.Name())
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return nil
}
