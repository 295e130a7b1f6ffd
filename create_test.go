package neograph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	matchPerson  = "MATCH (n:Person "
	matchCompany = "MATCH (n:Company "
	createNode   = "CREATE (n:"
)

// echoCreated answers a node CREATE with the node the caller is creating.
func echoCreated(label string, node func() Node) func(string, map[string]any) (*neo4j.EagerResult, error) {
	return func(string, map[string]any) (*neo4j.EagerResult, error) {
		props, err := Fields(node())
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			props[k] = driverValue(v)
		}
		return nodeResult(neo4j.Node{ElementId: "4:new", Labels: []string{label}, Props: props}), nil
	}
}

func TestCreateNode(t *testing.T) {
	p := &testPerson{Name: "Alice", Age: 30}
	runner := (&scriptedRunner{}).
		on(createNode, echoCreated("Person", func() Node { return p }))
	pm := NewPersistenceManager(runner)

	created, err := pm.CreateNode(context.Background(), p)
	require.NoError(t, err)

	queries := runner.queries()
	require.Len(t, queries, 2)
	assert.Equal(t, "MATCH (n:Person {name:'Alice'}) RETURN n", queries[0])
	assert.True(t, strings.HasPrefix(queries[1], "CREATE (n:Person {active:true, age:30, created_at:'"), queries[1])
	assert.Contains(t, queries[1], "name:'Alice'")
	assert.True(t, strings.HasSuffix(queries[1], "}) RETURN n"))

	// Defaults were applied to the input and the stored identity round-trips.
	require.NotEqual(t, uuid.Nil, p.GraphID)
	person, ok := created.(*testPerson)
	require.True(t, ok, "got %T", created)
	assert.Equal(t, p.GraphID, person.GraphID)
	assert.Equal(t, "Alice", person.Name)
	assert.Equal(t, int64(30), person.Age)
	assert.True(t, person.Active)
	assert.Equal(t, int64(1), person.Version)
	assert.NotSame(t, p, person)
}

func TestCreateNode_Conflict(t *testing.T) {
	existingID := uuid.New()
	runner := (&scriptedRunner{}).
		on(matchPerson, returns(nodeResult(personElement("4:x:1", existingID, "Alice"))))
	pm := NewPersistenceManager(runner)

	_, err := pm.CreateNode(context.Background(), &testPerson{NodeModel: NewNodeModel(), Name: "Alice"})

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.Contains(t, conflict.Nodes, existingID)
	assert.Equal(t, "Alice", conflict.Nodes[existingID].(*testPerson).Name)
	assert.Zero(t, runner.count(createNode))
}

func TestCreateNode_UndecodableMatchIsConflict(t *testing.T) {
	stored := personElement("4:x:1", uuid.New(), "Alice")
	stored.Props["age"] = "thirty"
	runner := (&scriptedRunner{}).on(matchPerson, returns(nodeResult(stored)))
	pm := NewPersistenceManager(runner)

	_, err := pm.CreateNode(context.Background(), &testPerson{Name: "Alice"})

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, conflict.Matched)
	assert.Empty(t, conflict.Nodes)
	assert.Zero(t, runner.count(createNode))
}

func TestCreateNode_GenericUsesBagAsCriteria(t *testing.T) {
	g := &GenericNode{Label: "Planet", Properties: map[string]any{"name": "Mars"}}
	runner := (&scriptedRunner{}).
		on(createNode, echoCreated("Planet", func() Node { return g }))
	pm := NewPersistenceManager(runner)

	created, err := pm.CreateNode(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, "MATCH (n:Planet {name:'Mars'}) RETURN n", runner.queries()[0])
	generic, ok := created.(*GenericNode)
	require.True(t, ok)
	assert.Equal(t, "Planet", generic.Label)
	assert.Equal(t, "Mars", generic.Properties["name"])
	assert.Equal(t, g.GraphID, generic.GraphID)
}

func TestCreateNode_RunnerError(t *testing.T) {
	boom := errors.New("connection reset")
	runner := (&scriptedRunner{}).
		on(createNode, func(string, map[string]any) (*neo4j.EagerResult, error) { return nil, boom })
	pm := NewPersistenceManager(runner)

	_, err := pm.CreateNode(context.Background(), &testPerson{Name: "Alice"})
	assert.ErrorIs(t, err, boom)
}

func TestMatchOrCreateNode(t *testing.T) {
	ctx := context.Background()

	t.Run("creates when nothing matches", func(t *testing.T) {
		p := &testPerson{Name: "Alice"}
		runner := (&scriptedRunner{}).on(createNode, echoCreated("Person", func() Node { return p }))
		pm := NewPersistenceManager(runner)

		id, node, err := pm.MatchOrCreateNode(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p.GraphID, id)
		assert.Equal(t, id, node.NodeBase().GraphID)
		assert.Equal(t, 1, runner.count(createNode))
	})

	t.Run("returns the single match", func(t *testing.T) {
		existingID := uuid.New()
		runner := (&scriptedRunner{}).
			on(matchPerson, returns(nodeResult(personElement("4:x:1", existingID, "Alice"))))
		pm := NewPersistenceManager(runner)

		id, node, err := pm.MatchOrCreateNode(ctx, &testPerson{NodeModel: NewNodeModel(), Name: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, existingID, id)
		assert.Equal(t, "Alice", node.(*testPerson).Name)
		assert.Zero(t, runner.count(createNode))
	})

	t.Run("refuses several matches", func(t *testing.T) {
		runner := (&scriptedRunner{}).
			on(matchPerson, returns(nodeResult(
				personElement("4:x:1", uuid.New(), "Alice"),
				personElement("4:x:2", uuid.New(), "Alice"),
			)))
		pm := NewPersistenceManager(runner)

		_, _, err := pm.MatchOrCreateNode(ctx, &testPerson{Name: "Alice"})
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.ErrorIs(t, err, ErrMultipleNodes)
		assert.Len(t, conflict.Nodes, 2)
		assert.Zero(t, runner.count(createNode))
	})

	t.Run("counts undecodable matches", func(t *testing.T) {
		bad := personElement("4:x:2", uuid.New(), "Alice")
		bad.Props["age"] = "thirty"
		runner := (&scriptedRunner{}).
			on(matchPerson, returns(nodeResult(personElement("4:x:1", uuid.New(), "Alice"), bad)))
		pm := NewPersistenceManager(runner)

		_, _, err := pm.MatchOrCreateNode(ctx, &testPerson{Name: "Alice"})
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.ErrorIs(t, err, ErrMultipleNodes)
		assert.Equal(t, 2, conflict.Matched)
		assert.Len(t, conflict.Nodes, 1)
		assert.Zero(t, runner.count(createNode))
	})

	t.Run("single undecodable match", func(t *testing.T) {
		bad := personElement("4:x:1", uuid.New(), "Alice")
		bad.Props["age"] = "thirty"
		runner := (&scriptedRunner{}).on(matchPerson, returns(nodeResult(bad)))
		pm := NewPersistenceManager(runner)

		_, node, err := pm.MatchOrCreateNode(ctx, &testPerson{Name: "Alice"})
		var merr *MaterializationError
		require.True(t, errors.As(err, &merr), "got %v", err)
		assert.Nil(t, node)
		assert.Zero(t, runner.count(createNode))
	})
}

func TestCreateRelationship_MissingEndpoint(t *testing.T) {
	runner := &scriptedRunner{}
	pm := NewPersistenceManager(runner)

	rel := &testWorksAt{RelationshipModel: NewRelationshipModel(&testPerson{Name: "Alice"}, nil, true), Role: "dev"}
	err := pm.CreateRelationship(context.Background(), rel)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ErrMissingEndpoint)
	assert.Empty(t, runner.queries())
}

// relationshipWorld answers endpoint lookups with one stored Person and one stored Company.
func relationshipWorld(personID, companyID uuid.UUID) *scriptedRunner {
	return (&scriptedRunner{}).
		on(matchPerson, returns(nodeResult(personElement("4:x:1", personID, "Alice")))).
		on(matchCompany, returns(nodeResult(companyElement("4:x:2", companyID, "Acme"))))
}

func paramValues(params map[string]any) []any {
	var out []any
	for _, v := range params {
		if nested, ok := v.(map[string]any); ok {
			out = append(out, paramValues(nested)...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func TestCreateRelationship(t *testing.T) {
	personID, companyID := uuid.New(), uuid.New()
	runner := relationshipWorld(personID, companyID)
	pm := NewPersistenceManager(runner, WithCompiler(NewCompiler(WithAliasGenerator(fixedAliases("s", "r", "e")))))

	rel := &testWorksAt{
		RelationshipModel: NewRelationshipModel(
			&testPerson{NodeModel: NewNodeModel(), Name: "Alice"},
			&testCompany{NodeModel: NewNodeModel(), Name: "Acme"},
			true),
		Role: "engineer",
	}
	require.NoError(t, pm.CreateRelationship(context.Background(), rel))

	queries := runner.queries()
	require.Len(t, queries, 4)
	assert.Equal(t, "MATCH (n:Person {name:'Alice'}) RETURN n", queries[0])
	assert.Equal(t, "MATCH (n:Company {name:'Acme'}) RETURN n", queries[1])
	assert.Equal(t,
		"MATCH (s:Person {graph_id:'"+personID.String()+"'}) -[r:WORKS_AT {role:'engineer'}]- (e:Company {graph_id:'"+companyID.String()+"'}) RETURN s, r, e",
		queries[2])

	create := runner.calls[3]
	assert.Contains(t, create.query, "CREATE")
	assert.Contains(t, create.query, "WORKS_AT")
	assert.Contains(t, create.query, "->")
	values := paramValues(create.params)
	assert.Contains(t, values, personID.String())
	assert.Contains(t, values, companyID.String())
	assert.Contains(t, values, "engineer")

	// The endpoints now point at the stored nodes.
	assert.Equal(t, personID, rel.StartNode.NodeBase().GraphID)
	assert.Equal(t, companyID, rel.EndNode.NodeBase().GraphID)
}

func TestCreateRelationship_Conflict(t *testing.T) {
	personID, companyID, relID := uuid.New(), uuid.New(), uuid.New()
	runner := relationshipWorld(personID, companyID).
		on("WORKS_AT", returns(result([]string{"s", "r", "e"}, []any{
			personElement("4:x:1", personID, "Alice"),
			neo4j.Relationship{
				ElementId: "5:x:1", StartElementId: "4:x:1", EndElementId: "4:x:2", Type: "WORKS_AT",
				Props: map[string]any{"graph_id": relID.String(), "role": "engineer"},
			},
			companyElement("4:x:2", companyID, "Acme"),
		})))
	pm := NewPersistenceManager(runner)

	rel := &testWorksAt{
		RelationshipModel: NewRelationshipModel(&testPerson{Name: "Alice"}, &testCompany{Name: "Acme"}, true),
		Role:              "engineer",
	}
	err := pm.CreateRelationship(context.Background(), rel)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Contains(t, conflict.Relationships, relID)
	assert.Zero(t, runner.count("CREATE"))
}

func TestCreateRelationship_UndecodableEdgeIsConflict(t *testing.T) {
	personID, companyID := uuid.New(), uuid.New()
	runner := relationshipWorld(personID, companyID).
		on("WORKS_AT", returns(result([]string{"s", "r", "e"}, []any{
			personElement("4:x:1", personID, "Alice"),
			neo4j.Relationship{
				ElementId: "5:x:1", StartElementId: "4:x:1", EndElementId: "4:x:2", Type: "WORKS_AT",
				Props: map[string]any{"graph_id": uuid.NewString(), "role": "engineer", "version": "one"},
			},
			companyElement("4:x:2", companyID, "Acme"),
		})))
	pm := NewPersistenceManager(runner)

	rel := &testWorksAt{
		RelationshipModel: NewRelationshipModel(&testPerson{Name: "Alice"}, &testCompany{Name: "Acme"}, true),
		Role:              "engineer",
	}
	err := pm.CreateRelationship(context.Background(), rel)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, conflict.Matched)
	assert.Empty(t, conflict.Relationships)
	assert.Zero(t, runner.count("CREATE"))
}

func TestCreateRelationship_CreatesMissingEndpoints(t *testing.T) {
	start := &testPerson{Name: "Alice"}
	end := &testCompany{Name: "Acme"}
	runner := (&scriptedRunner{}).
		on("CREATE (n:Person", echoCreated("Person", func() Node { return start })).
		on("CREATE (n:Company", echoCreated("Company", func() Node { return end }))
	pm := NewPersistenceManager(runner)

	rel := &testWorksAt{RelationshipModel: NewRelationshipModel(start, end, false), Role: "founder"}
	require.NoError(t, pm.CreateRelationship(context.Background(), rel))

	assert.Equal(t, 1, runner.count("CREATE (n:Person"))
	assert.Equal(t, 1, runner.count("CREATE (n:Company"))
	last := runner.queries()[len(runner.queries())-1]
	assert.Contains(t, last, "WORKS_AT")
	assert.NotContains(t, last, "->")
	assert.NotContains(t, last, "<-")
	assert.Equal(t, start.GraphID, rel.StartNode.NodeBase().GraphID)
}

func TestRelationshipCreateQuery_Direction(t *testing.T) {
	startID, endID := uuid.New(), uuid.New()
	props := map[string]any{"role": "dev"}

	directed, _, err := relationshipCreateQuery("Person", startID, "Company", endID, "WORKS_AT", props, true)
	require.NoError(t, err)
	assert.Contains(t, directed, "->")

	undirected, params, err := relationshipCreateQuery("Person", startID, "Company", endID, "WORKS_AT", props, false)
	require.NoError(t, err)
	assert.Contains(t, undirected, "WORKS_AT")
	assert.NotContains(t, undirected, "->")
	assert.NotContains(t, undirected, "<-")
	assert.Contains(t, paramValues(params), "dev")
}

func TestCreateRelationships_StopsAtFirstFailure(t *testing.T) {
	personID, companyID := uuid.New(), uuid.New()
	creates := 0
	runner := relationshipWorld(personID, companyID).
		on("CREATE", func(string, map[string]any) (*neo4j.EagerResult, error) {
			creates++
			if creates == 2 {
				return nil, errors.New("constraint violated")
			}
			return &neo4j.EagerResult{}, nil
		})
	pm := NewPersistenceManager(runner)

	newRel := func(role string) Relationship {
		return &testWorksAt{
			RelationshipModel: NewRelationshipModel(&testPerson{Name: "Alice"}, &testCompany{Name: "Acme"}, true),
			Role:              role,
		}
	}
	err := pm.CreateRelationships(context.Background(), []Relationship{newRel("a"), newRel("b"), newRel("c")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "relationship 1 of 3")
	assert.Contains(t, err.Error(), "constraint violated")
	// The first relationship stays created; the third is never attempted.
	assert.Equal(t, 2, creates)
}

func TestCreateNode_CheckThenActIsNotAtomic(t *testing.T) {
	// Each caller's MATCH is held until both have matched, so both see an empty store and both
	// creates go through.
	var matched sync.WaitGroup
	matched.Add(2)
	runner := (&scriptedRunner{}).
		on(matchPerson, func(string, map[string]any) (*neo4j.EagerResult, error) {
			matched.Done()
			matched.Wait()
			return &neo4j.EagerResult{}, nil
		}).
		on(createNode, func(string, map[string]any) (*neo4j.EagerResult, error) {
			return nodeResult(personElement("4:new", uuid.New(), "Alice")), nil
		})
	pm := NewPersistenceManager(runner)

	people := []*testPerson{{Name: "Alice"}, {Name: "Alice"}}
	errs := make([]error, len(people))
	var wg sync.WaitGroup
	for i, p := range people {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = pm.CreateNode(context.Background(), p)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 2, runner.count(matchPerson))
	assert.Equal(t, 2, runner.count(createNode))
	assert.NotEqual(t, people[0].GraphID, people[1].GraphID)
}

func TestDriverValue(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), driverValue(id))
	assert.Equal(t, "x", driverValue("x"))
	assert.Equal(t, int64(1), driverValue(int64(1)))

	score := 2.5
	var missing *int64
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, 2.5, driverValue(&score))
	assert.Nil(t, driverValue(missing))
	assert.Equal(t, "2024-01-02T03:04:05Z", driverValue(&ts))
}
