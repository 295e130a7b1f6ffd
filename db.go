// Package neograph maps typed Go models onto a Neo4j property graph. It compiles declarative
// criteria and path specifications into Cypher, executes them through the official Neo4j Go
// driver, and materializes the returned nodes and relationships back into de-duplicated models.
package neograph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DBRunner defines the interface for a generic query executor.
// It abstracts the execution of a Cypher query, allowing for different implementations
// or mocking in tests.
type DBRunner interface {
	// Run executes a given Cypher query with parameters and returns a fully-buffered result.
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

//---

// Neo4jExecutor is a concrete implementation of the DBRunner interface that uses the
// official Neo4j Go driver. It manages the driver instance and the target database name.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// ExecutorOption configures a Neo4jExecutor.
type ExecutorOption func(*Neo4jExecutor)

// WithExecutorLogger sets the logger used for per-query debug events.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Neo4jExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer records one client span per query.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Neo4jExecutor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithExecutorMetrics records query counts and durations.
func WithExecutorMetrics(m *Metrics) ExecutorOption {
	return func(e *Neo4jExecutor) {
		e.metrics = m
	}
}

// NewNeo4jExecutor creates and initializes a new Neo4jExecutor.
// It establishes a connection driver with the provided credentials.
//
// Parameters:
//   - uri: The connection URI for the Neo4j instance (e.g., "neo4j://localhost:7687").
//   - username: The username for authentication.
//   - password: The password for authentication.
//   - dbName: The name of the database to connect to (e.g., "neo4j").
//
// Returns:
//
//	A pointer to the newly created Neo4jExecutor or an error if the driver creation fails.
func NewNeo4jExecutor(uri, username, password, dbName string, opts ...ExecutorOption) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	e := &Neo4jExecutor{
		Driver: driver,
		DBName: dbName,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewNeo4jExecutorFromConfig creates an executor from a validated Config.
func NewNeo4jExecutorFromConfig(cfg *Config, opts ...ExecutorOption) (*Neo4jExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewNeo4jExecutor(cfg.URI, cfg.Username, cfg.Password, cfg.Database, opts...)
}

// Verify checks the connectivity to the Neo4j database.
//
// Returns:
//
//	An error if the connection cannot be established.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver and its connection pool.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Run executes a Cypher query using the ExecuteQuery function, which acquires a session,
// runs the query in a managed transaction and releases the session on every exit path.
// This function is suitable for both read and write operations.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - query: The Cypher query string to execute.
//   - params: A map of parameters to be used in the query.
//
// Returns:
//
//	An EagerResult containing all buffered records from the query, or an error if
//	the execution fails.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	operation := statementOf(query)
	ctx, span := e.tracer.Start(ctx, "neograph.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("db.name", e.DBName),
			attribute.String("db.operation", operation),
		),
	)
	defer span.End()

	started := time.Now()
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer, // Buffers all results in memory before returning.
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)
	e.metrics.observeQuery(operation, started, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("neograph.run.failed", "operation", operation, "err", err)
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}

	span.SetAttributes(attribute.Int("db.records", len(result.Records)))
	e.logger.Debug("neograph.run", "operation", operation, "records", len(result.Records),
		"elapsed", time.Since(started))
	return result, nil
}

// statementOf returns the leading clause keyword of a query, used to label spans and metrics.
func statementOf(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	op := strings.ToUpper(fields[0])
	if op == "OPTIONAL" && len(fields) > 1 {
		op += " " + strings.ToUpper(fields[1])
	}
	return op
}
