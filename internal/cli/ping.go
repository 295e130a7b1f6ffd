package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPingCommand creates the ping command.
func NewPingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "ping",
		Short:        "Verify connectivity to the configured database",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			conn, err := opts.dial(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "connecting", err)
			}
			defer conn.Close(ctx)

			if err := conn.Verify(ctx); err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("database %q unreachable at %s", cfg.Database, cfg.URI), err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"uri": cfg.URI, "database": cfg.Database})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connection to database '%s' was successful!\n", cfg.Database)
			return err
		},
	}
}
