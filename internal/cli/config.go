package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/config"
)

type ConfigArgs struct {
	*RootArgs

	Write  bool
	Force  bool
	Schema bool
}

func (ca *ConfigArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&ca.Write, "write", false, "Write the default configuration if none exists")
	cmd.Flags().BoolVar(&ca.Force, "force", false, "With --write, back up and replace an existing configuration")
	cmd.Flags().BoolVar(&ca.Schema, "schema", false, "Print the configuration JSON schema")

	cmd.MarkFlagsMutuallyExclusive("write", "schema")
}

func NewConfigCmd(ra *RootArgs) *cobra.Command {
	ca := &ConfigArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print, write or describe the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			switch {
			case ca.Schema:
				b, err := config.Schema()
				if err != nil {
					return fmt.Errorf("generate schema: %w", err)
				}

				mustN(out.Write(b))
				mustN(fmt.Fprintln(out))

				return nil

			case ca.Write:
				path := ca.configPath()
				if err := config.WriteDefaultConfig(path, ca.Force); err != nil {
					return fmt.Errorf("write config: %w", err)
				}

				mustN(fmt.Fprintln(out, path))

				return nil
			}

			a, err := ca.open()
			if err != nil {
				return err
			}

			b, err := a.cfg.MarshalYAML()
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped.
			}

			mustN(fmt.Fprintf(out, "%s %s\n\n", dimStyle.Render("#"), dimStyle.Render(a.configPath)))
			mustN(out.Write(b))

			return nil
		},
	}
	ca.AddFlags(cmd)

	return cmd
}
