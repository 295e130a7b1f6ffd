package neograph

import (
	"sort"
)

// GraphNode represents a materialized node in a domain-agnostic shape, suitable for JSON
// serialization to frontends or other services.
type GraphNode struct {
	// ID is the node's GraphID.
	ID string `json:"id"`

	// Labels holds the node label (e.g., ["Person"]).
	Labels []string `json:"labels"`

	// Properties is a map containing every persisted property of the node.
	Properties map[string]interface{} `json:"properties"`
}

// Edge represents a materialized relationship between two nodes.
type Edge struct {
	// ID is the relationship's GraphID.
	ID string `json:"id"`

	// Source is the GraphID of the node where the relationship starts, empty when the query did
	// not return it.
	Source string `json:"source"`

	// Target is the GraphID of the node where the relationship ends.
	Target string `json:"target"`

	// Type is the relationship's type (e.g., "KNOWS", "WORKS_AT").
	Type string `json:"type"`

	Directed   bool                   `json:"directed"`
	Properties map[string]interface{} `json:"properties"`
}

// GraphResult is a list of nodes and a list of edges, which is the format consumed by most graph
// visualization libraries (e.g., D3.js, Cytoscape.js).
type GraphResult struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*Edge      `json:"edges"`
}

// Graph flattens the result into nodes and edges ordered by ID. Endpoints carried by the
// relationships are included as nodes too.
func (r *SequenceResult) Graph() (*GraphResult, error) {
	graph := &GraphResult{
		Nodes: make([]*GraphNode, 0, len(r.Nodes)),
		Edges: make([]*Edge, 0, len(r.Relationships)),
	}
	seen := make(map[string]bool, len(r.Nodes))

	addNode := func(n Node) error {
		if n == nil {
			return nil
		}
		id := n.NodeBase().GraphID.String()
		if seen[id] {
			return nil
		}
		props, err := Fields(n)
		if err != nil {
			return err
		}
		seen[id] = true
		graph.Nodes = append(graph.Nodes, &GraphNode{ID: id, Labels: []string{LabelOf(n)}, Properties: props})
		return nil
	}

	for _, n := range r.Nodes {
		if err := addNode(n); err != nil {
			return nil, err
		}
	}
	for _, rel := range r.Relationships {
		base := rel.RelationshipBase()
		props, err := Fields(rel)
		if err != nil {
			return nil, err
		}
		edge := &Edge{
			ID:         base.GraphID.String(),
			Type:       LabelOf(rel),
			Directed:   base.IsDirectional,
			Properties: props,
		}
		if base.StartNode != nil {
			edge.Source = base.StartNode.NodeBase().GraphID.String()
		}
		if base.EndNode != nil {
			edge.Target = base.EndNode.NodeBase().GraphID.String()
		}
		graph.Edges = append(graph.Edges, edge)
		if err := addNode(base.StartNode); err != nil {
			return nil, err
		}
		if err := addNode(base.EndNode); err != nil {
			return nil, err
		}
	}

	sort.Slice(graph.Nodes, func(i, j int) bool { return graph.Nodes[i].ID < graph.Nodes[j].ID })
	sort.Slice(graph.Edges, func(i, j int) bool { return graph.Edges[i].ID < graph.Edges[j].ID })
	return graph, nil
}
