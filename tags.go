package neograph

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Reserved property names of a relationship's endpoints. They are expressed by the pattern itself.
const (
	startNodeProp = "start_node"
	endNodeProp   = "end_node"
)

var (
	nodeInterface         = reflect.TypeOf((*Node)(nil)).Elem()
	relationshipInterface = reflect.TypeOf((*Relationship)(nil)).Elem()
)

// fieldMetadata describes one persisted struct field.
type fieldMetadata struct {
	// Name is the Go field name, Prop the graph property name.
	Name string
	Prop string
	// Index is the field index path, which reaches through embedded models.
	Index []int
	Type  reflect.Type
	// Required fields have no default; they are the identifying criteria of match-before-create.
	Required bool
	// Endpoint marks StartNode/EndNode, which are never serialized as properties.
	Endpoint bool
}

// entityMetadata holds the parsed `graph` tag information for a model type.
// It is cached in metaCache to avoid reflecting over the same type on every operation.
type entityMetadata struct {
	// Label is the node label or relationship type, defaulting to the struct's name.
	Label  string
	Kind   Kind
	Fields []fieldMetadata
	byProp map[string]int
}

var metaCache sync.Map // reflect.Type -> *entityMetadata

// parseTagsFromType inspects a struct type and extracts its persistence metadata from `graph`
// struct tags. Tags have the form `graph:"prop"` or `graph:"prop,default"`; `graph:"-"` and
// untagged fields are not persisted.
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct: %w", typ, ErrUnsupportedType)
	}

	meta := &entityMetadata{
		Label:  typ.Name(),
		byProp: make(map[string]int),
	}
	switch ptr := reflect.PointerTo(typ); {
	case ptr.Implements(nodeInterface):
		meta.Kind = KindNode
	case ptr.Implements(relationshipInterface):
		meta.Kind = KindRelationship
	default:
		return nil, fmt.Errorf("type %s embeds neither NodeModel nor RelationshipModel: %w", typ, ErrUnsupportedType)
	}

	for _, field := range reflect.VisibleFields(typ) {
		if field.Anonymous || !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("graph")
		if tag == "" || tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		fm := fieldMetadata{
			Name:     field.Name,
			Prop:     parts[0],
			Index:    field.Index,
			Type:     field.Type,
			Required: true,
		}
		if fm.Prop == "" {
			return nil, fmt.Errorf("field %s is missing a property name in its graph tag", field.Name)
		}
		for _, part := range parts[1:] {
			switch part {
			case "default":
				fm.Required = false
			case "endpoint":
				fm.Endpoint = true
				fm.Required = false
			default:
				return nil, fmt.Errorf("field %s has unknown graph tag option %q", field.Name, part)
			}
		}
		if _, dup := meta.byProp[fm.Prop]; dup {
			return nil, fmt.Errorf("property %q is mapped twice on %s", fm.Prop, typ.Name())
		}
		meta.byProp[fm.Prop] = len(meta.Fields)
		meta.Fields = append(meta.Fields, fm)
	}

	return meta, nil
}

// metadataForType returns the cached metadata of typ, parsing it on first use.
func metadataForType(typ reflect.Type) (*entityMetadata, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	metaCache.Store(typ, meta)
	return meta, nil
}

// metadataOf returns the metadata of a model instance together with the addressable struct value.
func metadataOf(entity any) (*entityMetadata, reflect.Value, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, reflect.Value{}, fmt.Errorf("entity must be a non-nil pointer, got %T", entity)
	}
	meta, err := metadataForType(val.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return meta, val.Elem(), nil
}

// field returns the metadata of the field mapped to prop.
func (m *entityMetadata) field(prop string) (fieldMetadata, bool) {
	i, ok := m.byProp[prop]
	if !ok {
		return fieldMetadata{}, false
	}
	return m.Fields[i], true
}

// properties collects every persisted field except relationship endpoints.
func (m *entityMetadata) properties(val reflect.Value) map[string]any {
	props := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		if f.Endpoint {
			continue
		}
		props[f.Prop] = val.FieldByIndex(f.Index).Interface()
	}
	return props
}

// requiredProperties collects the fields declared without a default.
func (m *entityMetadata) requiredProperties(val reflect.Value) map[string]any {
	props := make(map[string]any)
	for _, f := range m.Fields {
		if f.Required {
			props[f.Prop] = val.FieldByIndex(f.Index).Interface()
		}
	}
	return props
}

// Fields returns every persisted property of a node or relationship model, keyed by property name.
// Relationship endpoints are excluded.
func Fields(entity any) (map[string]any, error) {
	meta, val, err := metadataOf(entity)
	if err != nil {
		return nil, err
	}
	props := meta.properties(val)
	if bag, ok := entity.(propertyBag); ok {
		for k, v := range bag.extraProperties() {
			if _, taken := props[k]; !taken {
				props[k] = v
			}
		}
	}
	return props, nil
}

// propertyBag is implemented by the generic variants, whose properties live in a map rather than
// in struct fields.
type propertyBag interface {
	extraProperties() map[string]any
}

// RequiredFields returns the properties declared without a default. They are the minimal
// identifying criteria used by match-before-create.
func RequiredFields(entity any) (map[string]any, error) {
	meta, val, err := metadataOf(entity)
	if err != nil {
		return nil, err
	}
	return meta.requiredProperties(val), nil
}

// LabelOf returns the label (node) or type name (relationship) of a model instance.
func LabelOf(entity any) string {
	if l, ok := entity.(Labeler); ok {
		return l.GraphLabel()
	}
	meta, _, err := metadataOf(entity)
	if err != nil {
		return ""
	}
	return meta.Label
}
