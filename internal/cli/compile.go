package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saulfrancisco-ruizacevedo/go-neograph"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Keyword string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <sequence.yaml>",
		Short: "Print the Cypher statement of a path specification",
		Long: `Compile a YAML path specification (nodes and relationships) into a single
Cypher statement without contacting the database.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Keyword, "keyword", "k", neograph.KeywordMatch, "statement keyword (MATCH|OPTIONAL MATCH|MERGE|CREATE)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	cfg, logger, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	q, err := loadSequence(path)
	if err != nil {
		return err
	}

	compiled, err := opts.compiler(cfg).CompileSequence(q, strings.ToUpper(opts.Keyword))
	if err != nil {
		return WrapExitError(ExitCommandError, "compiling "+path, err)
	}
	logger.Debug("neograph.cli.compiled", "path", path, "aliases", len(compiled.Aliases))

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"query":   compiled.Text,
			"aliases": compiled.Aliases,
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), compiled.Text)
	return err
}

func loadSequence(path string) (*neograph.SequenceQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening sequence", err)
	}
	defer f.Close()
	q, err := neograph.LoadSequenceQuery(f)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "reading "+path, err)
	}
	return q, nil
}
