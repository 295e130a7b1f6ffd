package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neograph"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sequence.yaml>",
		Short: "Run a path specification and print the materialized graph",
		Long: `Run a YAML path specification against the configured database. Every returned node and
relationship is listed once, identified by its graph_id.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], cmd)
		},
	}
}

func runQuery(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	q, err := loadSequence(path)
	if err != nil {
		return err
	}

	conn, err := opts.dial(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "connecting", err)
	}
	defer conn.Close(ctx)

	pm := neograph.NewPersistenceManager(conn,
		neograph.WithLogger(logger),
		neograph.WithCompiler(opts.compiler(cfg)),
	)
	result, err := pm.SequenceQuery(ctx, q)
	if err != nil {
		return WrapExitError(ExitFailure, "running "+path, err)
	}
	for _, skipped := range result.Diagnostics {
		logger.Warn("neograph.cli.skipped", "err", skipped)
	}

	graph, err := result.Graph()
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), graph)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d node(s), %d relationship(s)\n", len(graph.Nodes), len(graph.Edges))
	for _, n := range graph.Nodes {
		fmt.Fprintf(out, "  (%s %s)\n", n.Labels[0], n.ID)
	}
	for _, e := range graph.Edges {
		arrow := "-"
		if e.Directed {
			arrow = "->"
		}
		fmt.Fprintf(out, "  %s -[%s %s]%s %s\n", e.Source, e.Type, e.ID, arrow, e.Target)
	}
	return nil
}
