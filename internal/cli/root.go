// Package cli implements the neograph command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neograph"
)

// Conn is a database connection the commands run against.
type Conn interface {
	neograph.DBRunner
	Verify(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a connection from a validated configuration.
type Dialer func(cfg *neograph.Config, logger *slog.Logger) (Conn, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Dial opens the database connection; nil means a Neo4jExecutor.
	Dial Dialer
	// Aliases overrides random alias generation.
	Aliases neograph.AliasGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the neograph CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neograph",
		Short: "Typed path queries over Neo4j",
		Long:  "Compile YAML path specifications into Cypher and materialize their results as graph models.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setup loads the configuration and builds the logger. Logs go to errOut so they never corrupt
// JSON output.
func (o *RootOptions) setup(errOut io.Writer) (*neograph.Config, *slog.Logger, error) {
	cfg, err := neograph.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func (o *RootOptions) compiler(cfg *neograph.Config) *neograph.Compiler {
	return neograph.NewCompiler(
		neograph.WithAliasLength(cfg.AliasLength),
		neograph.WithAliasGenerator(o.Aliases),
	)
}

func (o *RootOptions) dial(cfg *neograph.Config, logger *slog.Logger) (Conn, error) {
	if o.Dial != nil {
		return o.Dial(cfg, logger)
	}
	executor, err := neograph.NewNeo4jExecutorFromConfig(cfg, neograph.WithExecutorLogger(logger))
	if err != nil {
		return nil, err
	}
	return executor, nil
}
