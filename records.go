package shroud

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register record tags with sentinel
	sentinel.Tag("column")
	sentinel.Tag("pii")
}

var timeType = reflect.TypeOf(time.Time{})

// recordField maps one struct field to a table column.
type recordField struct {
	index  []int
	name   string
	column string
	kind   ColumnKind
	ptr    bool
	pii    PIIType
	pinned bool
}

// recordPlan is the cached column layout of a record type.
type recordPlan struct {
	typeName string
	fields   []recordField
}

// buildRecordPlan scans T's exported fields. Supported field types are
// strings, integers, floats, bools, time.Time and pointers to those;
// other fields are skipped.
//
//	type Customer struct {
//		AccountID string `column:"account_id" pii:"identifier"`
//		Email     string `pii:"email"`
//		Notes     string `column:"-"`
//	}
func buildRecordPlan[T any]() (*recordPlan, error) {
	if rt := reflect.TypeFor[T](); rt.Kind() != reflect.Struct {
		return nil, newConfigError("records", fmt.Sprintf("%s is not a struct type", rt))
	}

	meta := sentinel.Scan[T]()
	plan := &recordPlan{typeName: meta.TypeName}
	seen := make(map[string]string)

	for _, field := range meta.Fields {
		rt := field.ReflectType
		ptr := false
		if field.Kind == sentinel.KindPointer {
			rt, ptr = rt.Elem(), true
		}
		kind, ok := columnKindOf(rt)
		if !ok {
			continue
		}

		column := field.Tags["column"]
		if column == "-" {
			continue
		}
		if column == "" {
			column = normalizeColumnName(field.Name)
		}
		if other, dup := seen[column]; dup {
			return nil, newConfigError("records", fmt.Sprintf("fields %s and %s both map to column %q", other, field.Name, column))
		}
		seen[column] = field.Name

		rf := recordField{
			index:  field.Index,
			name:   field.Name,
			column: column,
			kind:   kind,
			ptr:    ptr,
		}
		if val, ok := field.Tags["pii"]; ok {
			t, err := ParsePIIType(val)
			if err != nil {
				return nil, newConfigError("records", fmt.Sprintf("invalid pii type %q for field %s", val, field.Name))
			}
			rf.pii, rf.pinned = t, true
		}
		plan.fields = append(plan.fields, rf)
	}
	return plan, nil
}

// columnKindOf maps a Go type to a column kind.
func columnKindOf(rt reflect.Type) (ColumnKind, bool) {
	if rt == timeType {
		return KindTime, true
	}
	switch rt.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	case reflect.Bool:
		return KindBool, true
	default:
		return "", false
	}
}

// FromRecords builds a raw table from a slice of structs, one row per record.
// Nil pointer fields become null cells.
func FromRecords[T any](name string, records []T) (*Table, error) {
	plan, err := planFor[T]()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(plan.fields))
	for j, f := range plan.fields {
		cols[j] = Column{Name: f.column, Kind: f.kind}
	}
	t := NewTable(name, cols...)
	t.Rows = make([][]Cell, 0, len(records))

	for i := range records {
		rv := reflect.ValueOf(&records[i]).Elem()
		row := make([]Cell, len(plan.fields))
		for j, f := range plan.fields {
			row[j] = formatCell(rv.FieldByIndex(f.index), f)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// TypedDescriptors returns the descriptors pinned by pii tags on T.
// Pinned descriptors carry confidence 1.
func TypedDescriptors[T any]() (Descriptors, error) {
	plan, err := planFor[T]()
	if err != nil {
		return nil, err
	}
	out := make(Descriptors)
	for _, f := range plan.fields {
		if !f.pinned {
			continue
		}
		out[f.column] = SensitiveFieldDescriptor{
			Column:          f.column,
			Type:            f.pii,
			Confidence:      1,
			MatchedPatterns: []string{"tag:" + f.pii.String()},
		}
	}
	return out, nil
}

func formatCell(v reflect.Value, f recordField) Cell {
	if f.ptr {
		if v.IsNil() {
			return Null()
		}
		v = v.Elem()
	}
	switch f.kind {
	case KindTime:
		return Str(v.Interface().(time.Time).UTC().Format(time.RFC3339Nano))
	case KindString:
		return Str(v.String())
	case KindInteger:
		if v.CanInt() {
			return Str(strconv.FormatInt(v.Int(), 10))
		}
		return Str(strconv.FormatUint(v.Uint(), 10))
	case KindFloat:
		return Str(strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits()))
	case KindBool:
		return Str(strconv.FormatBool(v.Bool()))
	default:
		return Null()
	}
}
