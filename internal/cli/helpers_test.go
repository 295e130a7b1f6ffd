package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-neograph"
)

const worksAtSequence = `
nodes:
  - name: Person
    criteria: {name: Alice}
    return: true
  - name: Company
    return: true
relationships:
  - name: WORKS_AT
    to: "->"
    return: true
`

type fakeConn struct {
	queries   []string
	result    *neo4j.EagerResult
	runErr    error
	verifyErr error
	closed    bool
}

func (c *fakeConn) Run(_ context.Context, query string, _ map[string]any) (*neo4j.EagerResult, error) {
	c.queries = append(c.queries, query)
	if c.runErr != nil {
		return nil, c.runErr
	}
	if c.result == nil {
		return &neo4j.EagerResult{}, nil
	}
	return c.result, nil
}

func (c *fakeConn) Verify(context.Context) error { return c.verifyErr }

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

func dialTo(conn *fakeConn) Dialer {
	return func(*neograph.Config, *slog.Logger) (Conn, error) { return conn, nil }
}

func sequentialAliases(aliases ...string) neograph.AliasGenerator {
	i := 0
	return func(int) string {
		a := aliases[min(i, len(aliases)-1)]
		i++
		return a
	}
}

// isolateEnv clears the NEO4J_* variables so the defaults apply.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{neograph.EnvURI, neograph.EnvUsername, neograph.EnvPassword, neograph.EnvDatabase} {
		t.Setenv(env, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with opts and returns stdout and stderr.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	isolateEnv(t)
	cmd := newRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
