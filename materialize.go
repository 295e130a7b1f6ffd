package neograph

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var errNoLabel = errors.New("node has no label")

var genericNodeType = reflect.TypeOf(GenericNode{})

// SequenceResult holds the distinct nodes and relationships of one query, keyed by GraphID.
type SequenceResult struct {
	Nodes         map[uuid.UUID]Node         `json:"nodes"`
	Relationships map[uuid.UUID]Relationship `json:"relationships"`
	// Diagnostics lists the elements that were skipped, as *MaterializationError values.
	Diagnostics []error `json:"-"`
}

func newSequenceResult() *SequenceResult {
	return &SequenceResult{
		Nodes:         make(map[uuid.UUID]Node),
		Relationships: make(map[uuid.UUID]Relationship),
	}
}

// Materializer turns the graph elements of a query result into models. Labels and relationship
// types registered in its Registry become their registered Go types; anything else becomes a
// GenericNode or GenericRelationship.
type Materializer struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// NewMaterializer creates a Materializer. A nil registry materializes everything generically and a
// nil logger falls back to slog.Default().
func NewMaterializer(registry *Registry, logger *slog.Logger, metrics *Metrics) *Materializer {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{registry: registry, logger: logger, metrics: metrics}
}

// Materialize walks every value of every record. Nodes and relationships are materialized and
// de-duplicated by GraphID, the first occurrence winning; paths and scalar values are skipped.
// Elements that fail to materialize are reported in Diagnostics and do not stop the walk.
//
// Relationship endpoints are resolved against the nodes returned anywhere in the same result, so
// a query must return the endpoint nodes for a relationship to carry them.
func (m *Materializer) Materialize(result *neo4j.EagerResult) *SequenceResult {
	out := newSequenceResult()
	if result == nil {
		return out
	}

	byElementID := make(map[string]neo4j.Node)
	for _, record := range result.Records {
		for _, value := range record.Values {
			if n, ok := value.(neo4j.Node); ok {
				byElementID[n.ElementId] = n
			}
		}
	}

	for _, record := range result.Records {
		for _, value := range record.Values {
			switch element := value.(type) {
			case neo4j.Node:
				node, err := m.MaterializeNode(element)
				if err != nil {
					m.skip(out, KindNode, err)
					continue
				}
				id := node.NodeBase().GraphID
				if _, seen := out.Nodes[id]; !seen {
					out.Nodes[id] = node
				}

			case neo4j.Relationship:
				var start, end *neo4j.Node
				if n, ok := byElementID[element.StartElementId]; ok {
					start = &n
				}
				if n, ok := byElementID[element.EndElementId]; ok {
					end = &n
				}
				rel, err := m.MaterializeRelationship(element, start, end)
				if err != nil {
					m.skip(out, KindRelationship, err)
					continue
				}
				id := rel.RelationshipBase().GraphID
				if _, seen := out.Relationships[id]; !seen {
					out.Relationships[id] = rel
				}

			case neo4j.Path:
				m.logger.Debug("neograph.materialize.path_skipped",
					"nodes", len(element.Nodes), "relationships", len(element.Relationships))
			}
		}
	}
	return out
}

func (m *Materializer) skip(out *SequenceResult, kind Kind, err error) {
	m.logger.Warn("neograph.materialize.skipped", "kind", kind.String(), "err", err)
	m.metrics.materializationFailed(kind)
	out.Diagnostics = append(out.Diagnostics, err)
}

// MaterializeNode builds a model from a node. Its first label selects the registered type;
// unregistered labels produce a *GenericNode.
func (m *Materializer) MaterializeNode(element neo4j.Node) (Node, error) {
	if len(element.Labels) == 0 {
		return nil, &MaterializationError{ElementID: element.ElementId, Err: errNoLabel}
	}
	if typ, ok := m.registry.NodeType(element.Labels[0]); ok {
		return m.MaterializeNodeAs(element, typ)
	}
	return m.genericNode(element)
}

// MaterializeNodeAs decodes a node into the given model type regardless of its labels.
// Properties without a matching field are ignored.
func (m *Materializer) MaterializeNodeAs(element neo4j.Node, typ reflect.Type) (Node, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == genericNodeType {
		return m.genericNode(element)
	}
	label := typ.Name()
	if len(element.Labels) > 0 {
		label = element.Labels[0]
	}
	node, ok := reflect.New(typ).Interface().(Node)
	if !ok {
		return nil, &MaterializationError{ElementID: element.ElementId, Label: label, Err: ErrUnsupportedType}
	}
	node.NodeBase().Base = newBase()
	if _, err := decodeProperties(node, element.Props); err != nil {
		return nil, &MaterializationError{ElementID: element.ElementId, Label: label, Err: err}
	}
	return node, nil
}

func (m *Materializer) genericNode(element neo4j.Node) (Node, error) {
	if len(element.Labels) == 0 {
		return nil, &MaterializationError{ElementID: element.ElementId, Err: errNoLabel}
	}
	generic := &GenericNode{
		NodeModel: NewNodeModel(),
		Label:     element.Labels[0],
		Schema:    InferSchema(element.Props),
	}
	rest, err := decodeProperties(generic, element.Props)
	if err != nil {
		return nil, &MaterializationError{ElementID: element.ElementId, Label: generic.Label, Err: err}
	}
	normalizeTimestamps(rest)
	generic.Properties = rest
	return generic, nil
}

// MaterializeRelationship builds a model from a relationship. start and end, when given, are
// materialized as fresh nodes owned by the relationship.
func (m *Materializer) MaterializeRelationship(element neo4j.Relationship, start, end *neo4j.Node) (Relationship, error) {
	name := element.Type
	fail := func(err error) (Relationship, error) {
		return nil, &MaterializationError{ElementID: element.ElementId, Label: name, Err: err}
	}

	schema := InferSchema(element.Props)
	var startNode, endNode Node
	if start != nil {
		n, err := m.MaterializeNode(*start)
		if err != nil {
			return fail(err)
		}
		startNode = n
		schema[startNodeProp] = FieldNode
	}
	if end != nil {
		n, err := m.MaterializeNode(*end)
		if err != nil {
			return fail(err)
		}
		endNode = n
		schema[endNodeProp] = FieldNode
	}

	var rel Relationship
	if _, ok := m.registry.RelationshipType(name); ok {
		r, err := m.registry.NewRelationship(name)
		if err != nil {
			return fail(err)
		}
		rel = r
	} else {
		rel = &GenericRelationship{Type: name, Schema: schema}
	}

	base := rel.RelationshipBase()
	*base = NewRelationshipModel(startNode, endNode, true)
	rest, err := decodeProperties(rel, element.Props)
	if err != nil {
		return fail(err)
	}
	if generic, ok := rel.(*GenericRelationship); ok {
		normalizeTimestamps(rest)
		generic.Properties = rest
	}
	return rel, nil
}
