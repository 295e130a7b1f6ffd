package neograph

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// NodeCriteria describes one node position of a path pattern.
type NodeCriteria struct {
	// Name is the optional label filter.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Criteria maps property names to required values; nil values impose no constraint.
	Criteria map[string]any `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	// IncludeWithReturn gives the node an alias and adds it to the RETURN projection.
	IncludeWithReturn bool `yaml:"return,omitempty" json:"return,omitempty"`
}

// RelationshipCriteria describes one relationship position of a path pattern. The arrow symbols
// default to "-" on both sides; set ToSymbol to "->" (or FromSymbol to "<-") for direction.
type RelationshipCriteria struct {
	Name              string         `yaml:"name,omitempty" json:"name,omitempty"`
	Criteria          map[string]any `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	IncludeWithReturn bool           `yaml:"return,omitempty" json:"return,omitempty"`
	FromSymbol        string         `yaml:"from,omitempty" json:"from,omitempty"`
	ToSymbol          string         `yaml:"to,omitempty" json:"to,omitempty"`
}

func (r RelationshipCriteria) symbols() (string, string) {
	from, to := r.FromSymbol, r.ToSymbol
	if from == "" {
		from = SymbolUndirected
	}
	if to == "" {
		to = SymbolUndirected
	}
	return from, to
}

// SequenceQuery is an alternating node-relationship-node path specification. It always holds
// exactly one more node than relationships.
type SequenceQuery struct {
	Nodes         []NodeCriteria         `yaml:"nodes" json:"nodes"`
	Relationships []RelationshipCriteria `yaml:"relationships" json:"relationships"`
}

// NewSequenceQuery builds a path specification, rejecting one whose node count is not the
// relationship count plus one.
func NewSequenceQuery(nodes []NodeCriteria, relationships []RelationshipCriteria) (*SequenceQuery, error) {
	q := &SequenceQuery{Nodes: nodes, Relationships: relationships}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the node/relationship count invariant and the arrow symbols.
func (q *SequenceQuery) Validate() error {
	if len(q.Nodes) != len(q.Relationships)+1 {
		return newValidationError("SequenceQuery.Validate",
			fmt.Errorf("%w: got %d nodes and %d relationships", ErrInvalidSequence, len(q.Nodes), len(q.Relationships)))
	}
	for i, rel := range q.Relationships {
		if from, to := rel.symbols(); !validSymbols(from, to) {
			return newValidationError("SequenceQuery.Validate",
				fmt.Errorf("%w: relationship %d uses %q...%q", ErrInvalidSymbol, i, from, to))
		}
	}
	return nil
}

// projectsNothing reports whether no element asked to be returned.
func (q *SequenceQuery) projectsNothing() bool {
	for _, n := range q.Nodes {
		if n.IncludeWithReturn {
			return false
		}
	}
	for _, r := range q.Relationships {
		if r.IncludeWithReturn {
			return false
		}
	}
	return true
}

// LoadSequenceQuery decodes a YAML path specification:
//
//	nodes:
//	  - name: Person
//	    criteria: {name: Alice}
//	    return: true
//	  - name: Company
//	relationships:
//	  - name: WORKS_AT
//	    to: "->"
func LoadSequenceQuery(r io.Reader) (*SequenceQuery, error) {
	var q SequenceQuery
	if err := yaml.NewDecoder(r).Decode(&q); err != nil {
		return nil, fmt.Errorf("could not decode sequence: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// CompiledQuery is the text of a compiled statement and the aliases of its RETURN projection,
// in traversal order.
type CompiledQuery struct {
	Text    string
	Aliases []string
}

// CompileSequence stitches a path specification into a single statement:
//
//	MATCH (abcd:PersonA ) -[efgh:KNOWS ]- (ijkl:PersonB ) RETURN abcd, efgh, ijkl
//
// The count invariant is checked before any text is produced. When no element is flagged for
// return, every element is projected, so a compiled sequence never has an empty result row.
func (c *Compiler) CompileSequence(q *SequenceQuery, keyword string) (CompiledQuery, error) {
	if q == nil {
		return CompiledQuery{}, newValidationError("Compiler.CompileSequence", ErrInvalidSequence)
	}
	if err := q.Validate(); err != nil {
		return CompiledQuery{}, err
	}
	if !validKeyword(keyword) {
		return CompiledQuery{}, newValidationError("Compiler.CompileSequence",
			fmt.Errorf("%w: %q", ErrInvalidKeyword, keyword))
	}

	projectAll := q.projectsNothing()
	scope := c.newScope()
	var aliases []string
	aliasFor := func(include bool) string {
		if !include && !projectAll {
			return ""
		}
		alias := scope.next()
		aliases = append(aliases, alias)
		return alias
	}

	b := &clauseBuilder{}
	b.add(keyword)

	first := q.Nodes[0]
	b.add(NodePattern(aliasFor(first.IncludeWithReturn), first.Name, first.Criteria))
	for i, rel := range q.Relationships {
		from, to := rel.symbols()
		b.add(RelationshipPattern(aliasFor(rel.IncludeWithReturn), rel.Name, rel.Criteria, from, to))

		next := q.Nodes[i+1]
		b.add(NodePattern(aliasFor(next.IncludeWithReturn), next.Name, next.Criteria))
	}
	b.returning(aliases...)

	return CompiledQuery{Text: b.String(), Aliases: aliases}, nil
}

// RelationshipQuery finds relationships of one type between two node patterns.
type RelationshipQuery struct {
	StartNodeName        string
	StartCriteria        map[string]any
	EndNodeName          string
	EndCriteria          map[string]any
	RelationshipName     string
	RelationshipCriteria map[string]any
	// Directional restricts the match to relationships pointing from start to end.
	Directional bool
}

// Sequence expresses the query as a one-hop path with every element returned.
func (r RelationshipQuery) Sequence() *SequenceQuery {
	rel := RelationshipCriteria{
		Name:              r.RelationshipName,
		Criteria:          r.RelationshipCriteria,
		IncludeWithReturn: true,
	}
	if r.Directional {
		rel.ToSymbol = SymbolOutgoing
	}
	return &SequenceQuery{
		Nodes: []NodeCriteria{
			{Name: r.StartNodeName, Criteria: r.StartCriteria, IncludeWithReturn: true},
			{Name: r.EndNodeName, Criteria: r.EndCriteria, IncludeWithReturn: true},
		},
		Relationships: []RelationshipCriteria{rel},
	}
}
