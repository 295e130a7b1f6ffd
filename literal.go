package neograph

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// EncodeLiteral renders a property value as Cypher literal text.
//
// Strings, UUIDs and timestamps are single quoted (timestamps in RFC 3339 with nanoseconds).
// Booleans and numbers pass through, nil becomes null, pointers are dereferenced, and slices
// (byte slices included) become list literals of encoded elements. Numeric and boolean kinds are
// encoded from their value, so a named type's String method never leaks into the query. Any other
// type is rendered with fmt.Sprint, unmodified.
//
// Backslashes and single quotes inside quoted values are escaped so a value cannot terminate its
// literal. Values still end up in the query text, so prefer parameterized queries (see
// CreateRelationship) for untrusted input.
func EncodeLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case uuid.UUID:
		return quote(v.String())
	case time.Time:
		return quote(v.Format(time.RFC3339Nano))
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return EncodeLiteral(rv.Elem().Interface())
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = EncodeLiteral(rv.Index(i).Interface())
		}
		return "[" + strings.Join(items, ", ") + "]"
	case reflect.String:
		return quote(rv.String())
	}
	return fmt.Sprint(value)
}

func quote(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}
