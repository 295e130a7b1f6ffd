package neograph

import (
	"time"

	"github.com/google/uuid"
)

// Base holds the properties every persisted element carries. Two elements are the same entity
// iff their GraphID matches.
type Base struct {
	GraphID   uuid.UUID `graph:"graph_id,default" json:"graph_id"`
	Active    bool      `graph:"active,default" json:"active"`
	Version   int64     `graph:"version,default" json:"version"`
	CreatedAt time.Time `graph:"created_at,default" json:"created_at"`
	UpdatedAt time.Time `graph:"updated_at,default" json:"updated_at"`
}

func newBase() Base {
	now := time.Now()
	return Base{
		GraphID:   uuid.New(),
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// applyDefaults fills the fields a caller left at their zero value. A completely zero Base is
// treated as "never initialized" and receives every default, Active included.
func (b *Base) applyDefaults() {
	if *b == (Base{}) {
		*b = newBase()
		return
	}
	if b.GraphID == uuid.Nil {
		b.GraphID = uuid.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
}

// NodeModel is embedded by every node type.
//
//	type Person struct {
//		neograph.NodeModel
//		Name string `graph:"name"`
//		Age  int64  `graph:"age,default"`
//	}
type NodeModel struct {
	Base
}

// NewNodeModel returns a NodeModel with a fresh GraphID and default base properties.
func NewNodeModel() NodeModel {
	return NodeModel{Base: newBase()}
}

// NodeBase gives access to the embedded model; it is what makes a type satisfy Node.
func (m *NodeModel) NodeBase() *NodeModel { return m }

// RelationshipModel is embedded by every relationship type. StartNode and EndNode are represented
// structurally by the pattern and never serialized as properties.
type RelationshipModel struct {
	Base
	IsDirectional bool `graph:"is_directional,default" json:"is_directional"`
	StartNode     Node `graph:"start_node,endpoint" json:"start_node,omitempty"`
	EndNode       Node `graph:"end_node,endpoint" json:"end_node,omitempty"`
}

// NewRelationshipModel returns a RelationshipModel linking start to end with default base properties.
func NewRelationshipModel(start, end Node, directional bool) RelationshipModel {
	return RelationshipModel{
		Base:          newBase(),
		IsDirectional: directional,
		StartNode:     start,
		EndNode:       end,
	}
}

// RelationshipBase gives access to the embedded model; it is what makes a type satisfy Relationship.
func (m *RelationshipModel) RelationshipBase() *RelationshipModel { return m }

// Node is satisfied by any pointer to a struct embedding NodeModel.
type Node interface {
	NodeBase() *NodeModel
}

// Relationship is satisfied by any pointer to a struct embedding RelationshipModel.
type Relationship interface {
	RelationshipBase() *RelationshipModel
}

// Labeler lets a model override the label (or relationship type) derived from its Go type name.
type Labeler interface {
	GraphLabel() string
}

// GenericNode is the property-bag variant produced for labels that have no registered type.
type GenericNode struct {
	NodeModel
	Label      string         `json:"label"`
	Schema     Schema         `json:"schema"`
	Properties map[string]any `json:"properties"`
}

// GraphLabel returns the label the node was materialized from.
func (g *GenericNode) GraphLabel() string { return g.Label }

func (g *GenericNode) extraProperties() map[string]any { return g.Properties }

// GenericRelationship is the property-bag variant produced for relationship types that have no
// registered type.
type GenericRelationship struct {
	RelationshipModel
	Type       string         `json:"type"`
	Schema     Schema         `json:"schema"`
	Properties map[string]any `json:"properties"`
}

// GraphLabel returns the relationship type the element was materialized from.
func (g *GenericRelationship) GraphLabel() string { return g.Type }

func (g *GenericRelationship) extraProperties() map[string]any { return g.Properties }
