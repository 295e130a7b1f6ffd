package neograph

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Repository provides typed CRUD operations for one node type T. *T must embed NodeModel;
// the mapping between fields and node properties comes from `graph` struct tags.
type Repository[T any] struct {
	pm    *PersistenceManager
	meta  *entityMetadata
	typ   reflect.Type
	label string
}

// NewRepository creates a new generic repository for the node type T.
// It parses the struct tags of T to understand its mapping to a Neo4j node.
//
// Parameters:
//   - pm: The PersistenceManager whose runner, compiler and materializer the repository uses.
//
// Returns:
//
//	A new Repository instance, or an error wrapping ErrUnsupportedType if *T is not a node model.
func NewRepository[T any](pm *PersistenceManager) (*Repository[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	meta, err := metadataForType(typ)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindNode {
		return nil, fmt.Errorf("repository for %s: %w", typ, ErrUnsupportedType)
	}
	label := meta.Label
	if l, ok := any(new(T)).(Labeler); ok {
		label = l.GraphLabel()
	}
	return &Repository[T]{pm: pm, meta: meta, typ: typ, label: label}, nil
}

// Label returns the node label the repository reads and writes.
func (r *Repository[T]) Label() string { return r.label }

func (r *Repository[T]) node(entity *T) Node {
	return any(entity).(Node)
}

func (r *Repository[T]) decode(element neo4j.Node) (*T, error) {
	node, err := r.pm.materializer.MaterializeNodeAs(element, r.typ)
	if err != nil {
		return nil, err
	}
	return any(node).(*T), nil
}

// Create inserts entity unless a node with the same required fields exists. See
// PersistenceManager.CreateNode.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: A pointer to the struct instance to create. Missing base defaults are filled in.
//
// Returns:
//
//	The stored entity, a *ConflictError wrapping ErrAlreadyExists if a matching node exists, or
//	another error if the query or mapping fails.
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	created, err := r.pm.CreateNode(ctx, r.node(entity))
	if err != nil {
		return nil, err
	}
	return any(created).(*T), nil
}

// Save creates a new node or updates an existing one.
// It uses a MERGE on the entity's graph_id; every other property is set on the node and
// UpdatedAt is refreshed.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: A pointer to the struct instance to be saved.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	base := r.node(entity).NodeBase()
	base.applyDefaults()
	base.UpdatedAt = time.Now()

	props, err := Fields(entity)
	if err != nil {
		return err
	}
	setProps := make(map[string]interface{}, len(props))
	for prop, value := range props {
		if prop != "graph_id" {
			// The property is prefixed with 'n.' for the SET clause.
			setProps["n."+prop] = driverValue(value)
		}
	}

	query, params, err := gocypher.NewQueryBuilder().
		Merge(gocypher.N("n", r.label).WithProperties(map[string]interface{}{"graph_id": base.GraphID.String()})).
		Set(setProps).
		Return("n").
		Build()
	if err != nil {
		return err
	}
	_, err = r.pm.run(ctx, query, params)
	return err
}

// FindByID retrieves the entity with the given GraphID.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The GraphID of the entity to find.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if no record is found, or another
//	error if the query or mapping fails.
func (r *Repository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	found, err := r.FindWhere(ctx, map[string]any{"graph_id": id})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	}
	// This indicates a data integrity issue, as a graph_id lookup should be unique.
	return nil, fmt.Errorf("expected 1 record but found %d", len(found))
}

// FindAll returns every node of the repository's label.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.FindWhere(ctx, nil)
}

// FindByProperty returns the nodes whose prop equals value.
func (r *Repository[T]) FindByProperty(ctx context.Context, prop string, value any) ([]*T, error) {
	return r.FindWhere(ctx, map[string]any{prop: value})
}

// FindWhere returns the nodes matching every criterion, in result order and without duplicates.
func (r *Repository[T]) FindWhere(ctx context.Context, criteria map[string]any) ([]*T, error) {
	result, err := r.pm.run(ctx, r.pm.compiler.NodeWhereQuery(r.label, criteria), nil)
	if err != nil {
		return nil, err
	}
	return r.collect(result)
}

// Find runs a caller-built query and decodes the first node of every record into T.
// Records without a node are ignored.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A configured gocypher.QueryBuilder whose RETURN clause yields nodes of T's label.
//
// Returns:
//
//	The distinct decoded entities in result order, or an error if the query building,
//	execution or mapping fails.
func (r *Repository[T]) Find(ctx context.Context, qb *gocypher.QueryBuilder) ([]*T, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}
	result, err := r.pm.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return r.collect(result)
}

// FindOne is Find for queries that must yield exactly one entity. It returns ErrNotFound for
// none and a *ConflictError wrapping ErrMultipleNodes for more than one.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A configured gocypher.QueryBuilder expected to match a single node.
//
// Returns:
//
//	The single entity, ErrNotFound, a *ConflictError, or the error of the underlying Find.
func (r *Repository[T]) FindOne(ctx context.Context, qb *gocypher.QueryBuilder) (*T, error) {
	found, err := r.Find(ctx, qb)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	}
	nodes := make(map[uuid.UUID]Node, len(found))
	for _, entity := range found {
		n := r.node(entity)
		nodes[n.NodeBase().GraphID] = n
	}
	return nil, &ConflictError{Op: "Repository.FindOne", Err: ErrMultipleNodes, Nodes: nodes, Matched: len(found)}
}

func (r *Repository[T]) collect(result *neo4j.EagerResult) ([]*T, error) {
	out := make([]*T, 0, len(result.Records))
	seen := make(map[uuid.UUID]bool, len(result.Records))
	for _, record := range result.Records {
		for _, value := range record.Values {
			element, ok := value.(neo4j.Node)
			if !ok {
				continue
			}
			entity, err := r.decode(element)
			if err != nil {
				return nil, err
			}
			id := r.node(entity).NodeBase().GraphID
			if !seen[id] {
				seen[id] = true
				out = append(out, entity)
			}
			break
		}
	}
	return out, nil
}

// Count returns the number of nodes of the repository's label.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return r.CountWhere(ctx, nil)
}

// CountByProperty returns the number of nodes whose prop equals value.
func (r *Repository[T]) CountByProperty(ctx context.Context, prop string, value any) (int64, error) {
	return r.CountWhere(ctx, map[string]any{prop: value})
}

// CountWhere returns the number of nodes matching every criterion.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - criteria: Property values the nodes must equal; nil values impose no constraint.
//
// Returns:
//
//	The number of matching nodes, or an error if the query fails or returns no integer total.
func (r *Repository[T]) CountWhere(ctx context.Context, criteria map[string]any) (int64, error) {
	result, err := r.pm.run(ctx, r.pm.compiler.CountQuery(r.label, criteria), nil)
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	total, ok := result.Records[0].Get("total")
	if !ok {
		return 0, fmt.Errorf("could not find return value 'total' in query result")
	}
	count, ok := total.(int64)
	if !ok {
		return 0, fmt.Errorf("return value 'total' is %T, not an integer", total)
	}
	return count, nil
}

// Delete removes the node with the given GraphID.
// It uses a DETACH DELETE query to also remove any relationships connected to the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The GraphID of the node to delete.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	props := map[string]interface{}{"graph_id": id.String()}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.label).WithProperties(props)).
		DetachDelete("n").
		Build()
	if err != nil {
		return err
	}
	_, err = r.pm.run(ctx, query, params)
	return err
}
