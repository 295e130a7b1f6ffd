package neograph

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// DefaultAliasLength is the length of generated aliases.
const DefaultAliasLength = 4

// nodeAlias is the fixed alias of single-node statements.
const nodeAlias = "n"

const aliasAlphabet = "abcdefghijklmnopqrstuvwxyz"

// maxAliasAttempts bounds regeneration when a generator keeps returning aliases already in use.
const maxAliasAttempts = 32

// Statement keywords accepted in front of a pattern.
const (
	KeywordMatch         = "MATCH"
	KeywordOptionalMatch = "OPTIONAL MATCH"
	KeywordMerge         = "MERGE"
	KeywordCreate        = "CREATE"
)

// Relationship arrow symbols.
const (
	SymbolUndirected = "-"
	SymbolOutgoing   = "->"
	SymbolIncoming   = "<-"
)

// AliasGenerator returns a fresh alias of the requested length.
type AliasGenerator func(length int) string

// RandomAlias generates length random lowercase letters.
func RandomAlias(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = aliasAlphabet[rand.IntN(len(aliasAlphabet))]
	}
	return string(b)
}

// Compiler turns criteria and path specifications into Cypher text. Compilation is pure apart
// from alias generation, and a Compiler is safe for concurrent use as long as its AliasGenerator is.
type Compiler struct {
	aliasLength int
	generate    AliasGenerator
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithAliasLength sets the length of generated aliases. Non-positive values are ignored.
func WithAliasLength(n int) CompilerOption {
	return func(c *Compiler) {
		if n > 0 {
			c.aliasLength = n
		}
	}
}

// WithAliasGenerator replaces the random alias source, e.g. with a deterministic one in tests.
func WithAliasGenerator(fn AliasGenerator) CompilerOption {
	return func(c *Compiler) {
		if fn != nil {
			c.generate = fn
		}
	}
}

// NewCompiler creates a Compiler with 4-letter random aliases unless configured otherwise.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		aliasLength: DefaultAliasLength,
		generate:    RandomAlias,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// aliasScope hands out aliases for a single query and never repeats one.
type aliasScope struct {
	c    *Compiler
	used map[string]bool
}

func (c *Compiler) newScope() *aliasScope {
	return &aliasScope{c: c, used: make(map[string]bool)}
}

func (s *aliasScope) next() string {
	alias := ""
	for attempt := 0; attempt < maxAliasAttempts; attempt++ {
		alias = s.c.generate(s.c.aliasLength)
		if alias != "" && !s.used[alias] {
			s.used[alias] = true
			return alias
		}
	}
	alias += strconv.Itoa(len(s.used))
	s.used[alias] = true
	return alias
}

// clauseBuilder assembles a statement from ordered clause fragments joined by single spaces.
// Empty fragments are dropped, so no separator is ever left dangling.
type clauseBuilder struct {
	clauses []string
}

func (b *clauseBuilder) add(clauses ...string) *clauseBuilder {
	for _, clause := range clauses {
		if clause != "" {
			b.clauses = append(b.clauses, clause)
		}
	}
	return b
}

func (b *clauseBuilder) returning(items ...string) *clauseBuilder {
	if len(items) > 0 {
		b.add("RETURN " + strings.Join(items, ", "))
	}
	return b
}

func (b *clauseBuilder) String() string {
	return strings.Join(b.clauses, " ")
}

func elementRef(alias, name string) string {
	if name != "" {
		return alias + ":" + name
	}
	return alias
}

func braces(criteria string) string {
	if criteria == "" {
		return ""
	}
	return "{" + criteria + "}"
}

// NodePattern renders `(alias:Name {criteria})`. The label and the criteria braces are left out
// when empty; an empty alias matches the node anonymously.
func NodePattern(alias, name string, criteria map[string]any) string {
	return "(" + elementRef(alias, name) + " " + braces(CompileCriteria(criteria, KindNode, ModeAttr, alias)) + ")"
}

// RelationshipPattern renders `from[alias:TYPE {criteria}]to`, e.g. `-[r:KNOWS ]->`.
func RelationshipPattern(alias, name string, criteria map[string]any, from, to string) string {
	return from + "[" + elementRef(alias, name) + " " + braces(CompileCriteria(criteria, KindRelationship, ModeAttr, alias)) + "]" + to
}

func validKeyword(keyword string) bool {
	switch keyword {
	case KeywordMatch, KeywordOptionalMatch, KeywordMerge, KeywordCreate:
		return true
	}
	return false
}

func validSymbols(from, to string) bool {
	return (from == SymbolUndirected || from == SymbolIncoming) &&
		(to == SymbolUndirected || to == SymbolOutgoing)
}

// NodeQuery compiles `KEYWORD (n:Label {criteria}) RETURN n`.
func (c *Compiler) NodeQuery(keyword, label string, criteria map[string]any) (string, error) {
	if !validKeyword(keyword) {
		return "", newValidationError("Compiler.NodeQuery", ErrInvalidKeyword)
	}
	b := &clauseBuilder{}
	b.add(keyword, NodePattern(nodeAlias, label, criteria)).returning(nodeAlias)
	return b.String(), nil
}

// NodeWhereQuery compiles `MATCH (n:Label ) WHERE n.k=v AND ... RETURN n`.
func (c *Compiler) NodeWhereQuery(label string, criteria map[string]any) string {
	b := &clauseBuilder{}
	b.add(KeywordMatch, NodePattern(nodeAlias, label, nil), CompileCriteria(criteria, KindNode, ModeWhere, nodeAlias)).
		returning(nodeAlias)
	return b.String()
}

// CountQuery compiles `MATCH (n:Label ) WHERE ... RETURN count(n) AS total`.
func (c *Compiler) CountQuery(label string, criteria map[string]any) string {
	b := &clauseBuilder{}
	b.add(KeywordMatch, NodePattern(nodeAlias, label, nil), CompileCriteria(criteria, KindNode, ModeWhere, nodeAlias)).
		returning("count(" + nodeAlias + ") AS total")
	return b.String()
}

// CreateNodeQuery compiles `CREATE (n:Label {props}) RETURN n`.
func (c *Compiler) CreateNodeQuery(label string, props map[string]any) string {
	b := &clauseBuilder{}
	b.add(KeywordCreate, NodePattern(nodeAlias, label, props)).returning(nodeAlias)
	return b.String()
}
