package neograph

import (
	"reflect"
	"sort"
	"strings"
)

// Kind tells the compiler whether criteria belong to a node or a relationship.
type Kind int

const (
	KindNode Kind = iota
	KindRelationship
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindRelationship:
		return "relationship"
	default:
		return "unknown"
	}
}

// Mode selects the textual form of a criteria clause.
type Mode int

const (
	// ModeAttr emits `key:value, key:value` for use inside a pattern's braces.
	ModeAttr Mode = iota
	// ModeWhere emits `WHERE prefix.key=value AND prefix.key=value`.
	ModeWhere
)

// CompileCriteria converts a property mapping into a criteria clause.
//
// Keys with a nil value are treated as "no constraint" and omitted, as are the reserved
// start_node/end_node keys of a relationship. Keys are emitted in sorted order. An empty or nil
// mapping, or one whose values are all nil, yields the empty string in both modes.
func CompileCriteria(criteria map[string]any, kind Kind, mode Mode, prefix string) string {
	if len(criteria) == 0 {
		return ""
	}

	assignment, combiner := ":", ", "
	if mode == ModeWhere {
		assignment, combiner = "=", " AND "
	}
	if mode == ModeWhere && prefix != "" {
		prefix += "."
	} else {
		prefix = ""
	}

	keys := make([]string, 0, len(criteria))
	for key := range criteria {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, key := range keys {
		value := criteria[key]
		if isNil(value) {
			continue
		}
		if kind == KindRelationship && (key == startNodeProp || key == endNodeProp) {
			continue
		}
		terms = append(terms, prefix+key+assignment+EncodeLiteral(value))
	}
	if len(terms) == 0 {
		return ""
	}

	clause := strings.Join(terms, combiner)
	if mode == ModeWhere {
		return "WHERE " + clause
	}
	return clause
}

// isNil reports whether v is nil or a typed nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
