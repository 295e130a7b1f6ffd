package neograph

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ErrTypeNotRegistered indicates that no model type is registered under a label or type name.
var ErrTypeNotRegistered = errors.New("type not registered")

// Registry associates node labels and relationship type names with the Go types the materializer
// instantiates for them. It is an explicit value: create one, register models on it and hand it to
// the PersistenceManager. A Registry is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	nodes         map[string]reflect.Type
	relationships map[string]reflect.Type
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:         make(map[string]reflect.Type),
		relationships: make(map[string]reflect.Type),
	}
}

// Register adds one or more models, passed as values or pointers of the model type
// (e.g. &Person{}). Each model is filed as a node or relationship according to the model it
// embeds, under its label. Registering the same label again replaces the previous type.
//
// Example:
//
//	reg := neograph.NewRegistry()
//	if err := reg.Register(&Person{}, &Company{}, &WorksAt{}); err != nil {
//	    log.Fatal(err)
//	}
func (r *Registry) Register(models ...any) error {
	for _, model := range models {
		typ := reflect.TypeOf(model)
		if typ == nil {
			return fmt.Errorf("cannot register nil model: %w", ErrUnsupportedType)
		}
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		meta, err := metadataForType(typ)
		if err != nil {
			return err
		}
		label := meta.Label
		if l, ok := reflect.New(typ).Interface().(Labeler); ok && l.GraphLabel() != "" {
			label = l.GraphLabel()
		}

		r.mu.Lock()
		switch meta.Kind {
		case KindNode:
			r.nodes[label] = typ
		case KindRelationship:
			r.relationships[label] = typ
		}
		r.mu.Unlock()
	}
	return nil
}

// RegisterNode registers a node model.
func (r *Registry) RegisterNode(model Node) error {
	return r.Register(model)
}

// RegisterRelationship registers a relationship model.
func (r *Registry) RegisterRelationship(model Relationship) error {
	return r.Register(model)
}

// NodeType returns the struct type registered for a node label.
func (r *Registry) NodeType(label string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.nodes[label]
	return typ, ok
}

// RelationshipType returns the struct type registered for a relationship type name.
func (r *Registry) RelationshipType(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.relationships[name]
	return typ, ok
}

// NewNode instantiates the node type registered for label.
func (r *Registry) NewNode(label string) (Node, error) {
	typ, ok := r.NodeType(label)
	if !ok {
		return nil, fmt.Errorf("node label %q: %w", label, ErrTypeNotRegistered)
	}
	return reflect.New(typ).Interface().(Node), nil
}

// NewRelationship instantiates the relationship type registered for name.
func (r *Registry) NewRelationship(name string) (Relationship, error) {
	typ, ok := r.RelationshipType(name)
	if !ok {
		return nil, fmt.Errorf("relationship type %q: %w", name, ErrTypeNotRegistered)
	}
	return reflect.New(typ).Interface().(Relationship), nil
}

// Labels returns the sorted node labels and relationship type names currently registered.
func (r *Registry) Labels() (nodes []string, relationships []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for label := range r.nodes {
		nodes = append(nodes, label)
	}
	for name := range r.relationships {
		relationships = append(relationships, name)
	}
	sort.Strings(nodes)
	sort.Strings(relationships)
	return nodes, relationships
}
