package neograph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// PersistenceManager is the central orchestrator for the persistence layer.
// It owns the query runner, the model registry, the compiler and the materializer, and provides
// the read and write operations that span entities: node, relationship and path queries, and
// match-before-create writes.
type PersistenceManager struct {
	runner       DBRunner
	registry     *Registry
	compiler     *Compiler
	materializer *Materializer
	logger       *slog.Logger
	metrics      *Metrics
}

// Option configures a PersistenceManager.
type Option func(*PersistenceManager)

// WithRegistry sets the registry used to materialize typed models.
func WithRegistry(r *Registry) Option {
	return func(pm *PersistenceManager) {
		if r != nil {
			pm.registry = r
		}
	}
}

// WithCompiler sets the compiler, e.g. one with a deterministic alias generator.
func WithCompiler(c *Compiler) Option {
	return func(pm *PersistenceManager) {
		if c != nil {
			pm.compiler = c
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(pm *PersistenceManager) {
		if logger != nil {
			pm.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation of conflicts and materialization failures.
func WithMetrics(m *Metrics) Option {
	return func(pm *PersistenceManager) {
		pm.metrics = m
	}
}

// NewPersistenceManager creates a new instance of the PersistenceManager.
//
// Parameters:
//   - runner: An instance of DBRunner, used to execute all Cypher queries.
//   - opts: Options replacing the default registry, compiler, logger or metrics.
//
// Returns:
//
//	A PersistenceManager ready to use; register models before reading typed results.
func NewPersistenceManager(runner DBRunner, opts ...Option) *PersistenceManager {
	pm := &PersistenceManager{
		runner:   runner,
		registry: NewRegistry(),
		compiler: NewCompiler(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(pm)
	}
	pm.materializer = NewMaterializer(pm.registry, pm.logger, pm.metrics)
	return pm
}

// Registry returns the model registry, so callers can register their types.
func (pm *PersistenceManager) Registry() *Registry { return pm.registry }

// Compiler returns the compiler used for every generated statement.
func (pm *PersistenceManager) Compiler() *Compiler { return pm.compiler }

// RegisterModels registers node and relationship model types with the manager's registry.
func (pm *PersistenceManager) RegisterModels(models ...any) error {
	return pm.registry.Register(models...)
}

// RepositoryFor is a generic function that creates and returns a repository
// for a specific node type T, managed by the given PersistenceManager.
func RepositoryFor[T any](pm *PersistenceManager) (*Repository[T], error) {
	return NewRepository[T](pm)
}

func (pm *PersistenceManager) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	pm.logger.Debug("neograph.query", "statement", query, "params", len(params))
	result, err := pm.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &neo4j.EagerResult{}
	}
	return result, nil
}

// FindGraph executes a graph query defined by a gocypher.QueryBuilder and materializes every node
// and relationship it returns.
//
// The caller is responsible for constructing a valid query via the QueryBuilder, including
// a RETURN clause that specifies which nodes and relationships should be included, for example
// `RETURN u, r, p`. Elements returned in several rows appear once in the result.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A pointer to a configured gocypher.QueryBuilder instance that defines the graph to retrieve.
//
// Returns:
//   - A SequenceResult containing the de-duplicated nodes and relationships from the query.
//   - An ErrNotFound error if the query executes successfully but returns zero records.
//   - Any other error encountered during query building or execution.
func (pm *PersistenceManager) FindGraph(ctx context.Context, qb *gocypher.QueryBuilder) (*SequenceResult, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	eagerResult, err := pm.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(eagerResult.Records) == 0 {
		return nil, ErrNotFound
	}
	return pm.materializer.Materialize(eagerResult), nil
}
