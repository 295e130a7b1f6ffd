package neograph

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// NodeQuery matches nodes of one label whose properties equal the criteria and returns them keyed
// by GraphID. Registered labels come back as their Go types, others as *GenericNode.
// No match is not an error: the map is simply empty.
func (pm *PersistenceManager) NodeQuery(ctx context.Context, label string, criteria map[string]any) (map[uuid.UUID]Node, error) {
	match, err := pm.matchNodes(ctx, label, criteria, nil)
	if err != nil {
		return nil, err
	}
	return match.Nodes, nil
}

// nodeMatch is the outcome of a node lookup. Matched counts every distinct node the store returned,
// including the ones that could not be decoded and are listed in Failures.
type nodeMatch struct {
	Nodes    map[uuid.UUID]Node
	Matched  int
	Failures []error
}

// matchNodes runs a node query and decodes every `n` into typ, or through the registry when typ
// is nil.
func (pm *PersistenceManager) matchNodes(ctx context.Context, label string, criteria map[string]any, typ reflect.Type) (*nodeMatch, error) {
	query, err := pm.compiler.NodeQuery(KeywordMatch, label, criteria)
	if err != nil {
		return nil, err
	}
	result, err := pm.run(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	match := &nodeMatch{Nodes: make(map[uuid.UUID]Node, len(result.Records))}
	seen := make(map[string]bool, len(result.Records))
	for _, record := range result.Records {
		value, ok := record.Get(nodeAlias)
		if !ok {
			continue
		}
		element, ok := value.(neo4j.Node)
		if !ok || seen[element.ElementId] {
			continue
		}
		seen[element.ElementId] = true
		match.Matched++

		var node Node
		if typ != nil {
			node, err = pm.materializer.MaterializeNodeAs(element, typ)
		} else {
			node, err = pm.materializer.MaterializeNode(element)
		}
		if err != nil {
			pm.logger.Warn("neograph.node_query.skipped", "label", label, "err", err)
			pm.metrics.materializationFailed(KindNode)
			match.Failures = append(match.Failures, err)
			continue
		}
		id := node.NodeBase().GraphID
		if _, dup := match.Nodes[id]; !dup {
			match.Nodes[id] = node
		}
	}
	return match, nil
}

// RelationshipQuery matches one-hop relationships between two node patterns and returns the
// distinct relationships keyed by GraphID, each carrying its materialized endpoints.
func (pm *PersistenceManager) RelationshipQuery(ctx context.Context, q RelationshipQuery) (map[uuid.UUID]Relationship, error) {
	result, err := pm.SequenceQuery(ctx, q.Sequence())
	if err != nil {
		return nil, err
	}
	return result.Relationships, nil
}

// SequenceQuery compiles a path specification into a single MATCH statement, executes it and
// materializes the projected elements. The specification is validated before any I/O, so a
// malformed one never reaches the database.
func (pm *PersistenceManager) SequenceQuery(ctx context.Context, q *SequenceQuery) (*SequenceResult, error) {
	_, materialized, err := pm.runSequence(ctx, q)
	return materialized, err
}

// runSequence is SequenceQuery that also hands back the raw result, for callers that must count
// elements the materializer skipped.
func (pm *PersistenceManager) runSequence(ctx context.Context, q *SequenceQuery) (*neo4j.EagerResult, *SequenceResult, error) {
	compiled, err := pm.compiler.CompileSequence(q, KeywordMatch)
	if err != nil {
		return nil, nil, err
	}
	result, err := pm.run(ctx, compiled.Text, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("sequence query: %w", err)
	}
	materialized := pm.materializer.Materialize(result)
	pm.logger.Debug("neograph.sequence_query",
		"records", len(result.Records),
		"nodes", len(materialized.Nodes),
		"relationships", len(materialized.Relationships),
		"skipped", len(materialized.Diagnostics))
	return result, materialized, nil
}

// countRelationships returns the number of distinct relationships in a raw result.
func countRelationships(result *neo4j.EagerResult) int {
	seen := make(map[string]bool)
	for _, record := range result.Records {
		for _, value := range record.Values {
			if rel, ok := value.(neo4j.Relationship); ok {
				seen[rel.ElementId] = true
			}
		}
	}
	return len(seen)
}
