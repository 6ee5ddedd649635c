package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/rule"
)

// ErrAborted is returned when the user declines a confirmation.
var ErrAborted = errors.New("aborted")

type DeleteArgs struct {
	*RootArgs

	Yes bool
}

func (da *DeleteArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&da.Yes, "yes", "y", false, "Delete without asking for confirmation")
}

func NewDeleteCmd(ra *RootArgs) *cobra.Command {
	da := &DeleteArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:               "delete <name>",
		Aliases:           []string{"rm"},
		Short:             "Delete a rule",
		Long:              "Delete a rule. On a terminal, the deletion is confirmed first unless --yes is set.",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: ruleNames(ra),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := da.open()
			if err != nil {
				return err
			}

			if !da.Yes && stdinIsTerminal() && writerIsTerminal(cmd.OutOrStdout()) {
				confirmed := false

				err := huh.NewConfirm().
					Title(fmt.Sprintf("Delete rule %q?", args[0])).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed).
					Run()
				if err != nil {
					return fmt.Errorf("confirm: %w", err)
				}

				if !confirmed {
					return ErrAborted
				}
			}

			deleted, err := a.store.Delete(args[0])
			if err != nil {
				return fmt.Errorf("delete %q: %w", args[0], err)
			}

			if !deleted {
				return a.notFound(cmd.Context(), fmt.Errorf("%w: %q", rule.ErrNotFound, args[0]), args[0])
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %q\n", args[0]))

			return nil
		},
	}
	da.AddFlags(cmd)

	return cmd
}
