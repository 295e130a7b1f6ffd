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

// Aliases of the relationship CREATE statement.
const (
	startAlias = "start_node"
	endAlias   = "end_node"
	linkAlias  = "link"
)

// identifyingCriteria returns the properties that decide whether an entity already exists: its
// required fields, or for property-bag variants without any, its bag.
func identifyingCriteria(entity any) (map[string]any, error) {
	criteria, err := RequiredFields(entity)
	if err != nil {
		return nil, err
	}
	if bag, ok := entity.(propertyBag); ok && len(criteria) == 0 {
		for k, v := range bag.extraProperties() {
			criteria[k] = v
		}
	}
	return criteria, nil
}

// CreateNode creates node unless a node with the same label and required fields already exists,
// in which case it returns a *ConflictError wrapping ErrAlreadyExists with the matched nodes.
// Missing base defaults (GraphID, Version, timestamps) are filled on node before it is written.
// The returned node is decoded from the stored element into node's own type.
//
// The existence check and the create are two statements, so two concurrent callers can both pass
// the check and create duplicates.
func (pm *PersistenceManager) CreateNode(ctx context.Context, node Node) (Node, error) {
	const op = "PersistenceManager.CreateNode"
	meta, val, err := metadataOf(node)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindNode {
		return nil, fmt.Errorf("%s: %T: %w", op, node, ErrUnsupportedType)
	}
	label := LabelOf(node)

	criteria, err := identifyingCriteria(node)
	if err != nil {
		return nil, err
	}
	existing, err := pm.matchNodes(ctx, label, criteria, val.Type())
	if err != nil {
		return nil, err
	}
	// Matches that failed to decode still exist in the store.
	if existing.Matched > 0 {
		pm.metrics.conflict(op)
		pm.logger.Info("neograph.create_node.conflict", "label", label, "matches", existing.Matched,
			"undecodable", len(existing.Failures))
		return nil, &ConflictError{Op: op, Err: ErrAlreadyExists, Nodes: existing.Nodes, Matched: existing.Matched}
	}

	node.NodeBase().applyDefaults()
	props, err := Fields(node)
	if err != nil {
		return nil, err
	}
	result, err := pm.run(ctx, pm.compiler.CreateNodeQuery(label, props), nil)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("create %s returned no record: %w", label, ErrNotFound)
	}
	value, _ := result.Records[0].Get(nodeAlias)
	element, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("create %s: return value %q is not a node", label, nodeAlias)
	}
	created, err := pm.materializer.MaterializeNodeAs(element, val.Type())
	if err != nil {
		return nil, err
	}
	pm.logger.Debug("neograph.create_node", "label", label, "graph_id", created.NodeBase().GraphID)
	return created, nil
}

// MatchOrCreateNode resolves node to a stored node by its required fields. With no match the node
// is created; with exactly one the existing node is returned; with several a *ConflictError
// wrapping ErrMultipleNodes is returned. A single match that cannot be decoded into node's type is
// returned as its *MaterializationError, and nothing is created.
//
// Like CreateNode it is not atomic.
func (pm *PersistenceManager) MatchOrCreateNode(ctx context.Context, node Node) (uuid.UUID, Node, error) {
	const op = "PersistenceManager.MatchOrCreateNode"
	meta, val, err := metadataOf(node)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if meta.Kind != KindNode {
		return uuid.Nil, nil, fmt.Errorf("%s: %T: %w", op, node, ErrUnsupportedType)
	}
	criteria, err := identifyingCriteria(node)
	if err != nil {
		return uuid.Nil, nil, err
	}
	existing, err := pm.matchNodes(ctx, LabelOf(node), criteria, val.Type())
	if err != nil {
		return uuid.Nil, nil, err
	}

	switch existing.Matched {
	case 0:
		created, err := pm.CreateNode(ctx, node)
		if err != nil {
			return uuid.Nil, nil, err
		}
		return created.NodeBase().GraphID, created, nil
	case 1:
		for id, found := range existing.Nodes {
			return id, found, nil
		}
		return uuid.Nil, nil, fmt.Errorf("%s: %w", op, existing.Failures[0])
	}
	pm.metrics.conflict(op)
	return uuid.Nil, nil, &ConflictError{Op: op, Err: ErrMultipleNodes, Nodes: existing.Nodes, Matched: existing.Matched}
}

// CreateRelationship resolves both endpoints with MatchOrCreateNode, refuses to create a
// relationship of the same type and required fields between them (*ConflictError wrapping
// ErrAlreadyExists), and otherwise creates it, pointing from start to end when IsDirectional.
// On success the relationship's endpoints are replaced by the resolved nodes.
//
// The existence check and the create are separate statements; concurrent callers can race.
func (pm *PersistenceManager) CreateRelationship(ctx context.Context, rel Relationship) error {
	const op = "PersistenceManager.CreateRelationship"
	base := rel.RelationshipBase()
	if base.StartNode == nil || base.EndNode == nil {
		return newValidationError(op, ErrMissingEndpoint)
	}
	meta, _, err := metadataOf(rel)
	if err != nil {
		return err
	}
	if meta.Kind != KindRelationship {
		return fmt.Errorf("%s: %T: %w", op, rel, ErrUnsupportedType)
	}
	relType := LabelOf(rel)

	startID, start, err := pm.MatchOrCreateNode(ctx, base.StartNode)
	if err != nil {
		return fmt.Errorf("resolve start node: %w", err)
	}
	endID, end, err := pm.MatchOrCreateNode(ctx, base.EndNode)
	if err != nil {
		return fmt.Errorf("resolve end node: %w", err)
	}

	criteria, err := identifyingCriteria(rel)
	if err != nil {
		return err
	}
	lookup := RelationshipQuery{
		StartNodeName:        LabelOf(start),
		StartCriteria:        map[string]any{"graph_id": startID},
		EndNodeName:          LabelOf(end),
		EndCriteria:          map[string]any{"graph_id": endID},
		RelationshipName:     relType,
		RelationshipCriteria: criteria,
	}
	raw, existing, err := pm.runSequence(ctx, lookup.Sequence())
	if err != nil {
		return err
	}
	if matched := countRelationships(raw); matched > 0 {
		pm.metrics.conflict(op)
		pm.logger.Info("neograph.create_relationship.conflict", "type", relType, "matches", matched,
			"undecodable", len(existing.Diagnostics))
		return &ConflictError{Op: op, Err: ErrAlreadyExists, Relationships: existing.Relationships, Matched: matched}
	}

	base.Base.applyDefaults()
	props, err := Fields(rel)
	if err != nil {
		return err
	}
	query, params, err := relationshipCreateQuery(LabelOf(start), startID, LabelOf(end), endID, relType, props, base.IsDirectional)
	if err != nil {
		return fmt.Errorf("could not build query: %w", err)
	}
	if _, err := pm.run(ctx, query, params); err != nil {
		return fmt.Errorf("create %s: %w", relType, err)
	}

	base.StartNode, base.EndNode = start, end
	pm.logger.Debug("neograph.create_relationship", "type", relType, "graph_id", base.GraphID,
		"start", startID, "end", endID)
	return nil
}

// CreateRelationships creates rels in order and stops at the first failure. Relationships created
// before the failure stay in the store; the error names the failing index.
func (pm *PersistenceManager) CreateRelationships(ctx context.Context, rels []Relationship) error {
	for i, rel := range rels {
		if err := pm.CreateRelationship(ctx, rel); err != nil {
			return fmt.Errorf("relationship %d of %d: %w", i, len(rels), err)
		}
	}
	return nil
}

// relationshipCreateQuery matches both endpoints by graph_id and creates the edge between them.
// Property values travel as parameters.
func relationshipCreateQuery(startLabel string, startID uuid.UUID, endLabel string, endID uuid.UUID,
	relType string, props map[string]any, directional bool) (string, map[string]any, error) {
	params := make(map[string]interface{}, len(props))
	for k, v := range props {
		params[k] = driverValue(v)
	}

	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N(startAlias, startLabel).WithProperties(map[string]interface{}{"graph_id": startID.String()})).
		Match(gocypher.N(endAlias, endLabel).WithProperties(map[string]interface{}{"graph_id": endID.String()}))
	if directional {
		qb = qb.Create(
			gocypher.NRef(startAlias),
			gocypher.R(linkAlias, relType).To().WithProperties(params),
			gocypher.NRef(endAlias),
		)
	} else {
		qb = qb.Create(
			gocypher.NRef(startAlias),
			gocypher.R(linkAlias, relType).WithProperties(params),
			gocypher.NRef(endAlias),
		)
	}
	return qb.Build()
}

// driverValue converts model values the driver cannot send as parameters. GraphIDs and timestamps
// are stored as strings, the same representation the literal encoder writes, and pointers are
// dereferenced.
func driverValue(v any) any {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return driverValue(rv.Elem().Interface())
	}
	return v
}
