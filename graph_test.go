package neograph

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceResult_Graph(t *testing.T) {
	m := newTestMaterializer(t, &testPerson{})
	personID, companyID, relID := uuid.New(), uuid.New(), uuid.New()
	rel := neo4j.Relationship{
		ElementId: "5:x:1", StartElementId: "4:x:1", EndElementId: "4:x:2", Type: "WORKS_AT",
		Props: map[string]any{"graph_id": relID.String(), "role": "engineer"},
	}
	res := m.Materialize(result([]string{"p", "r", "c"}, []any{
		personElement("4:x:1", personID, "Alice"), rel, companyElement("4:x:2", companyID, "Acme"),
	}))

	graph, err := res.Graph()
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.True(t, graph.Nodes[0].ID < graph.Nodes[1].ID)

	edge := graph.Edges[0]
	assert.Equal(t, relID.String(), edge.ID)
	assert.Equal(t, personID.String(), edge.Source)
	assert.Equal(t, companyID.String(), edge.Target)
	assert.Equal(t, "WORKS_AT", edge.Type)
	assert.True(t, edge.Directed)
	assert.Equal(t, "engineer", edge.Properties["role"])

	labels := map[string]string{}
	for _, n := range graph.Nodes {
		labels[n.ID] = n.Labels[0]
	}
	assert.Equal(t, "Person", labels[personID.String()])
	assert.Equal(t, "Company", labels[companyID.String()])

	_, err = json.Marshal(graph)
	assert.NoError(t, err)
}

func TestSequenceResult_GraphIncludesEndpointsOnlyReturnedThroughRelationships(t *testing.T) {
	start := &testPerson{NodeModel: NewNodeModel(), Name: "Alice"}
	end := &testCompany{NodeModel: NewNodeModel(), Name: "Acme"}
	rel := &testWorksAt{RelationshipModel: NewRelationshipModel(start, end, false), Role: "dev"}
	res := newSequenceResult()
	res.Relationships[rel.GraphID] = rel

	graph, err := res.Graph()
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	assert.False(t, graph.Edges[0].Directed)
}
