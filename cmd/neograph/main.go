// Command neograph compiles and runs path queries against a Neo4j database.
package main

import (
	"fmt"
	"os"

	"github.com/saulfrancisco-ruizacevedo/go-neograph/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
