package neograph

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// FieldType is the property type inferred from a runtime value.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldString
	FieldInteger
	FieldFloat
	FieldBoolean
	FieldTimestamp
	FieldBytes
	FieldList
	FieldMap
	FieldNode
)

var fieldTypeNames = map[FieldType]string{
	FieldUnknown:   "unknown",
	FieldString:    "string",
	FieldInteger:   "integer",
	FieldFloat:     "float",
	FieldBoolean:   "boolean",
	FieldTimestamp: "timestamp",
	FieldBytes:     "bytes",
	FieldList:      "list",
	FieldMap:       "map",
	FieldNode:      "node",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the type by name, so schemas serialize readably.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Schema maps property names to their inferred types.
type Schema map[string]FieldType

// Properties that are always timestamps, whatever representation the driver hands back.
var timestampProps = []string{"created_at", "updated_at"}

// timeLike covers the driver's temporal types (neo4j.Date, neo4j.LocalDateTime, ...).
type timeLike interface {
	Time() time.Time
}

// InferFieldType classifies a single runtime value.
func InferFieldType(value any) FieldType {
	switch value.(type) {
	case nil:
		return FieldUnknown
	case string:
		return FieldString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FieldInteger
	case float32, float64:
		return FieldFloat
	case bool:
		return FieldBoolean
	case time.Time, timeLike:
		return FieldTimestamp
	case []byte:
		return FieldBytes
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return FieldList
	case reflect.Map:
		return FieldMap
	}
	return FieldUnknown
}

// InferSchema builds the field schema of a property map. created_at and updated_at are always
// reported as timestamps.
func InferSchema(props map[string]any) Schema {
	schema := make(Schema, len(props))
	for key, value := range props {
		schema[key] = InferFieldType(value)
	}
	for _, key := range timestampProps {
		if _, ok := schema[key]; ok {
			schema[key] = FieldTimestamp
		}
	}
	return schema
}

// normalizeTimestamps converts created_at/updated_at to time.Time in place when they parse.
func normalizeTimestamps(props map[string]any) {
	for _, key := range timestampProps {
		raw, ok := props[key]
		if !ok || raw == nil {
			continue
		}
		if t, err := toTime(raw); err == nil {
			props[key] = t
		}
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case timeLike:
		return v.Time(), nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", v)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a timestamp", raw)
}

func toUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		return uuid.FromBytes(v)
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to a uuid", raw)
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// assignValue stores a driver value into a struct field, converting between the driver's
// representations (int64, float64, []any, map[string]any, temporal types, strings) and the
// field's declared type.
func assignValue(dst reflect.Value, raw any) error {
	if raw == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	switch dst.Type() {
	case timeType:
		t, err := toTime(raw)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case uuidType:
		u, err := toUUID(raw)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(u))
		return nil
	}

	src := reflect.ValueOf(raw)
	switch dst.Kind() {
	case reflect.Ptr:
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), raw); err != nil {
			return err
		}
		dst.Set(p)
		return nil

	case reflect.Interface:
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
			return nil
		}

	case reflect.String:
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return nil
		}

	case reflect.Bool:
		if src.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := integral(src)
		if ok && !dst.OverflowInt(n) {
			dst.SetInt(n)
			return nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := integral(src)
		if ok && n >= 0 && !dst.OverflowUint(uint64(n)) {
			dst.SetUint(uint64(n))
			return nil
		}

	case reflect.Float32, reflect.Float64:
		switch {
		case src.CanFloat():
			dst.SetFloat(src.Float())
			return nil
		case src.CanInt():
			dst.SetFloat(float64(src.Int()))
			return nil
		}

	case reflect.Slice:
		if src.Kind() == reflect.Slice || src.Kind() == reflect.Array {
			out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
			for i := 0; i < src.Len(); i++ {
				if err := assignValue(out.Index(i), src.Index(i).Interface()); err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}

	case reflect.Map:
		if src.Kind() == reflect.Map && dst.Type().Key().Kind() == reflect.String && src.Type().Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(dst.Type(), src.Len())
			iter := src.MapRange()
			for iter.Next() {
				elem := reflect.New(dst.Type().Elem()).Elem()
				if err := assignValue(elem, iter.Value().Interface()); err != nil {
					return fmt.Errorf("key %q: %w", iter.Key().String(), err)
				}
				out.SetMapIndex(iter.Key().Convert(dst.Type().Key()), elem)
			}
			dst.Set(out)
			return nil
		}
	}

	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", raw, dst.Type())
}

// integral extracts an integer from an integer value or a float without a fractional part.
func integral(v reflect.Value) (int64, bool) {
	switch {
	case v.CanInt():
		return v.Int(), true
	case v.CanUint():
		u := v.Uint()
		return int64(u), u <= math.MaxInt64
	case v.CanFloat():
		f := v.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
			return int64(f), true
		}
	}
	return 0, false
}

// decodeProperties populates a model from a property map and returns the properties that have no
// matching field.
func decodeProperties(entity any, props map[string]any) (map[string]any, error) {
	meta, val, err := metadataOf(entity)
	if err != nil {
		return nil, err
	}
	rest := make(map[string]any)
	for key, raw := range props {
		f, ok := meta.field(key)
		if !ok || f.Endpoint {
			rest[key] = raw
			continue
		}
		if err := assignValue(val.FieldByIndex(f.Index), raw); err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
	}
	return rest, nil
}
