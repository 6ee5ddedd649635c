package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pity-fox/cleantools/pkg/mcp"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/rule"
)

type MCPArgs struct {
	*RootArgs

	Address string
}

func (ma *MCPArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ma.Address, "address", "", "Serve streamable HTTP on this address instead of stdio")
}

func NewMCPCmd(ra *RootArgs) *cobra.Command {
	ma := &MCPArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only rule inspection over the Model Context Protocol",
		Long: `Serve read-only rule inspection over the Model Context Protocol.

The server offers the list_rules, get_rule and verify_rules tools. It never
runs rules. Stdio is used unless --address is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ma.open()
			if err != nil {
				return err
			}

			opts := []mcp.ServerOpt{
				mcp.WithStoreOptions(
					rule.WithCatalog(a.catalog),
					rule.WithSink(messages.NewLogSink(slog.Default())),
				),
			}
			if ma.Address != "" {
				opts = append(opts, mcp.WithAddress(ma.Address))
			}
			if ma.LogLevel == "debug" {
				opts = append(opts, mcp.WithLogWriter(cmd.ErrOrStderr()))
			}

			return mcp.NewServer(a.store.Root(), opts...).Serve(cmd.Context()) //nolint:wrapcheck // Already wrapped.
		},
	}
	ma.AddFlags(cmd)

	return cmd
}
