package olap

import (
	"fmt"
	"reflect"
	"strings"
)

// rowSchema maps result columns onto the fields of a row struct using
// `ch:"column"` tags. For Table, ",pk" marks key columns and ",immutable"
// columns that a later write of the same key leaves unchanged.
type rowSchema struct {
	typ       reflect.Type
	fields    map[string]int
	columns   []string
	keys      []string
	immutable map[string]bool
}

func newRowSchema[T any]() (*rowSchema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type %v must be a struct", t)
	}

	fields := make(map[string]int)
	var columns, keys []string
	immutable := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("ch")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		name := strings.TrimSpace(parts[0])
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("row type %v maps column %q twice", t, name)
		}
		fields[name] = i
		columns = append(columns, name)
		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case "pk":
				keys = append(keys, name)
			case "immutable":
				immutable[name] = true
			}
		}
	}

	return &rowSchema{typ: t, fields: fields, columns: columns, keys: keys, immutable: immutable}, nil
}

// targets returns scan destinations for columns pointing into row, which must
// be a pointer to the schema's struct type. Columns without a field are
// scanned into a throwaway value.
func (s *rowSchema) targets(row any, columns []string) []any {
	v := reflect.ValueOf(row).Elem()
	dest := make([]any, len(columns))
	for i, col := range columns {
		if idx, ok := s.fields[col]; ok {
			dest[i] = v.Field(idx).Addr().Interface()
			continue
		}
		var discard any
		dest[i] = &discard
	}
	return dest
}

// values returns the field values of row in column order.
func (s *rowSchema) values(row any) []any {
	v := reflect.ValueOf(row)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	out := make([]any, len(s.columns))
	for i, col := range s.columns {
		out[i] = v.Field(s.fields[col]).Interface()
	}
	return out
}
