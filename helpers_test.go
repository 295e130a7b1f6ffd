package neograph

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type testPerson struct {
	NodeModel
	Name string `graph:"name"`
	Age  int64  `graph:"age,default"`
}

func (*testPerson) GraphLabel() string { return "Person" }

type testCompany struct {
	NodeModel
	Name string `graph:"name"`
}

func (*testCompany) GraphLabel() string { return "Company" }

type testWorksAt struct {
	RelationshipModel
	Role string `graph:"role"`
}

func (*testWorksAt) GraphLabel() string { return "WORKS_AT" }

type runCall struct {
	query  string
	params map[string]any
}

// scriptedRunner records every statement and answers with the first rule whose substring
// occurs in the query. Unmatched statements get an empty result.
type scriptedRunner struct {
	mu    sync.Mutex
	calls []runCall
	rules []rule
}

type rule struct {
	contains string
	respond  func(query string, params map[string]any) (*neo4j.EagerResult, error)
}

func (r *scriptedRunner) on(contains string, respond func(query string, params map[string]any) (*neo4j.EagerResult, error)) *scriptedRunner {
	r.rules = append(r.rules, rule{contains: contains, respond: respond})
	return r
}

func (r *scriptedRunner) Run(_ context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, runCall{query: query, params: params})
	r.mu.Unlock()
	for _, rl := range r.rules {
		if strings.Contains(query, rl.contains) {
			return rl.respond(query, params)
		}
	}
	return &neo4j.EagerResult{}, nil
}

func (r *scriptedRunner) queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.query
	}
	return out
}

func (r *scriptedRunner) count(contains string) int {
	n := 0
	for _, q := range r.queries() {
		if strings.Contains(q, contains) {
			n++
		}
	}
	return n
}

// returns builds a responder that always yields result.
func returns(result *neo4j.EagerResult) func(string, map[string]any) (*neo4j.EagerResult, error) {
	return func(string, map[string]any) (*neo4j.EagerResult, error) { return result, nil }
}

func result(keys []string, rows ...[]any) *neo4j.EagerResult {
	res := &neo4j.EagerResult{Keys: keys}
	for _, row := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: row})
	}
	return res
}

func nodeResult(nodes ...neo4j.Node) *neo4j.EagerResult {
	rows := make([][]any, len(nodes))
	for i, n := range nodes {
		rows[i] = []any{n}
	}
	return result([]string{nodeAlias}, rows...)
}

func personElement(elementID string, id uuid.UUID, name string) neo4j.Node {
	return neo4j.Node{
		ElementId: elementID,
		Labels:    []string{"Person"},
		Props:     map[string]any{"graph_id": id.String(), "name": name, "active": true, "version": int64(1)},
	}
}

func companyElement(elementID string, id uuid.UUID, name string) neo4j.Node {
	return neo4j.Node{
		ElementId: elementID,
		Labels:    []string{"Company"},
		Props:     map[string]any{"graph_id": id.String(), "name": name},
	}
}

// fixedAliases hands out the given aliases in order, then repeats the last one.
func fixedAliases(aliases ...string) AliasGenerator {
	var mu sync.Mutex
	i := 0
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		a := aliases[min(i, len(aliases)-1)]
		i++
		return a
	}
}

func newTestManager(runner DBRunner, models ...any) *PersistenceManager {
	reg := NewRegistry()
	if err := reg.Register(models...); err != nil {
		panic(err)
	}
	return NewPersistenceManager(runner, WithRegistry(reg))
}

func reflectTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
