// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// wireTag is the struct tag that maps Go fields to Arrow columns.
const wireTag = "querywire"

// scalarColumn is the column name used when a non-struct value is encoded.
const scalarColumn = "value"

// arrowField pairs one Arrow column with the struct field it comes from.
// index is -1 when the value itself is the column.
type arrowField struct {
	field arrow.Field
	index int
}

// arrowEncode converts a Go value to a single-row Arrow IPC stream.
// Structs map to one column per tagged field; any other supported value
// rides a single "value" column.
func arrowEncode(val any) ([]byte, error) {
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return nil, fmt.Errorf("cannot encode nil value")
	}

	schema, fields, err := arrowSchemaFor(rv.Type())
	if err != nil {
		return nil, err
	}

	// A struct root is dereferenced once up front; its fields become
	// columns, so there is no null slot for the root itself.
	structRoot := rv
	if len(fields) > 0 && fields[0].index >= 0 {
		for structRoot.Kind() == reflect.Ptr {
			if structRoot.IsNil() {
				return nil, fmt.Errorf("cannot encode nil %s", rv.Type())
			}
			structRoot = structRoot.Elem()
		}
	}

	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, len(fields))
	for i, af := range fields {
		b := array.NewBuilder(mem, af.field.Type)
		fv := rv
		if af.index >= 0 {
			fv = structRoot.Field(af.index)
		}
		if err := appendGoValue(b, af.field.Type, fv); err != nil {
			b.Release()
			return nil, fmt.Errorf("column %q: %w", af.field.Name, err)
		}
		cols[i] = b.NewArray()
		b.Release()
		defer cols[i].Release()
	}

	rows := int64(1)
	if len(fields) == 0 {
		rows = 0
	}
	batch := array.NewRecordBatch(schema, cols, rows)
	defer batch.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(batch); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// arrowDecode reads a single-row Arrow IPC stream produced by arrowEncode
// into out, which must be a non-nil pointer.
func arrowDecode(data []byte, out any) error {
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Ptr || ov.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", out)
	}
	target := ov.Elem()

	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return err
		}
		return fmt.Errorf("no record batch in stream")
	}
	batch := reader.RecordBatch()

	base := target.Type()
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Struct {
		for target.Kind() == reflect.Ptr {
			if target.IsNil() {
				target.Set(reflect.New(target.Type().Elem()))
			}
			target = target.Elem()
		}
		return decodeStructColumns(batch, target)
	}
	return decodeScalarColumn(batch, target)
}

func decodeStructColumns(batch arrow.RecordBatch, target reflect.Value) error {
	t := target.Type()
	for i := range t.NumField() {
		name, ok := wireFieldName(t.Field(i))
		if !ok {
			continue
		}
		ci := columnIndex(batch, name)
		if ci < 0 {
			continue
		}
		if batch.NumRows() < 1 || batch.Column(ci).IsNull(0) {
			continue
		}
		if err := extractGoValue(batch.Column(ci), 0, target.Field(i)); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
	}
	return nil
}

func decodeScalarColumn(batch arrow.RecordBatch, target reflect.Value) error {
	ci := columnIndex(batch, scalarColumn)
	if ci < 0 && batch.NumCols() == 1 {
		ci = 0
	}
	if ci < 0 {
		return fmt.Errorf("no %q column in batch", scalarColumn)
	}
	if batch.NumRows() < 1 {
		return fmt.Errorf("empty batch")
	}
	return extractGoValue(batch.Column(ci), 0, target)
}

func columnIndex(batch arrow.RecordBatch, name string) int {
	for ci := range int(batch.NumCols()) {
		if batch.ColumnName(ci) == name {
			return ci
		}
	}
	return -1
}

// arrowSchemaFor maps a Go type to its Arrow schema: one column per
// tagged field for structs, a single "value" column for everything else.
func arrowSchemaFor(t reflect.Type) (*arrow.Schema, []arrowField, error) {
	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Struct {
		fields, err := structArrowFields(base)
		if err != nil {
			return nil, nil, err
		}
		af := make([]arrow.Field, len(fields))
		for i, f := range fields {
			af[i] = f.field
		}
		return arrow.NewSchema(af, nil), fields, nil
	}

	dt, nullable, err := arrowTypeOf(t)
	if err != nil {
		return nil, nil, err
	}
	f := arrow.Field{Name: scalarColumn, Type: dt, Nullable: nullable}
	return arrow.NewSchema([]arrow.Field{f}, nil), []arrowField{{field: f, index: -1}}, nil
}

func structArrowFields(t reflect.Type) ([]arrowField, error) {
	var fields []arrowField
	for i := range t.NumField() {
		f := t.Field(i)
		name, ok := wireFieldName(f)
		if !ok {
			continue
		}
		dt, nullable, err := arrowTypeOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, arrowField{
			field: arrow.Field{Name: name, Type: dt, Nullable: nullable},
			index: i,
		})
	}
	return fields, nil
}

func wireFieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get(wireTag)
	if tag == "" || tag == "-" {
		return "", false
	}
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag, true
}

// arrowTypeOf maps a Go type to an Arrow data type. Pointer types map to
// their element type with the nullable flag set.
func arrowTypeOf(t reflect.Type) (arrow.DataType, bool, error) {
	nullable := false
	for t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return arrow.BinaryTypes.String, nullable, nil
	case reflect.Int, reflect.Int64:
		return arrow.PrimitiveTypes.Int64, nullable, nil
	case reflect.Int32, reflect.Int16, reflect.Int8:
		return arrow.PrimitiveTypes.Int32, nullable, nil
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64, nullable, nil
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32, nullable, nil
	case reflect.Bool:
		return &arrow.BooleanType{}, nullable, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary, nullable, nil
		}
		elem, _, err := arrowTypeOf(t.Elem())
		if err != nil {
			return nil, false, err
		}
		return arrow.ListOf(elem), nullable, nil
	case reflect.Map:
		key, _, err := arrowTypeOf(t.Key())
		if err != nil {
			return nil, false, err
		}
		item, _, err := arrowTypeOf(t.Elem())
		if err != nil {
			return nil, false, err
		}
		return arrow.MapOf(key, item), nullable, nil
	case reflect.Struct:
		fields, err := structArrowFields(t)
		if err != nil {
			return nil, false, err
		}
		af := make([]arrow.Field, len(fields))
		for i, f := range fields {
			af[i] = f.field
		}
		return arrow.StructOf(af...), nullable, nil
	default:
		return nil, false, fmt.Errorf("unsupported type %s", t)
	}
}

// appendGoValue appends one Go value to an Arrow builder whose data type
// was derived from the value's type by arrowTypeOf.
func appendGoValue(b array.Builder, dt arrow.DataType, v reflect.Value) error {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			b.AppendNull()
			return nil
		}
		v = v.Elem()
	}

	switch dt.ID() {
	case arrow.STRING:
		b.(*array.StringBuilder).Append(v.String())
	case arrow.INT64:
		b.(*array.Int64Builder).Append(v.Int())
	case arrow.INT32:
		b.(*array.Int32Builder).Append(int32(v.Int()))
	case arrow.FLOAT64:
		b.(*array.Float64Builder).Append(v.Float())
	case arrow.FLOAT32:
		b.(*array.Float32Builder).Append(float32(v.Float()))
	case arrow.BOOL:
		b.(*array.BooleanBuilder).Append(v.Bool())
	case arrow.BINARY:
		b.(*array.BinaryBuilder).Append(v.Bytes())
	case arrow.LIST:
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		elemType := dt.(*arrow.ListType).Elem()
		vb := lb.ValueBuilder()
		for i := range v.Len() {
			if err := appendGoValue(vb, elemType, v.Index(i)); err != nil {
				return err
			}
		}
	case arrow.MAP:
		mb := b.(*array.MapBuilder)
		mb.Append(true)
		mt := dt.(*arrow.MapType)
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		kb := mb.KeyBuilder()
		ib := mb.ItemBuilder()
		for _, k := range keys {
			if err := appendGoValue(kb, mt.KeyType(), k); err != nil {
				return err
			}
			if err := appendGoValue(ib, mt.ItemType(), v.MapIndex(k)); err != nil {
				return err
			}
		}
	case arrow.STRUCT:
		sb := b.(*array.StructBuilder)
		sb.Append(true)
		st := dt.(*arrow.StructType)
		fields, err := structArrowFields(v.Type())
		if err != nil {
			return err
		}
		for ci := range st.NumFields() {
			if err := appendGoValue(sb.FieldBuilder(ci), st.Field(ci).Type, v.Field(fields[ci].index)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported arrow type %s", dt)
	}
	return nil
}

// extractGoValue reads one row from an Arrow array into a Go value. The
// target must be addressable; pointer targets are allocated on demand and
// left nil for null slots.
func extractGoValue(col arrow.Array, row int, out reflect.Value) error {
	for out.Kind() == reflect.Ptr {
		if col.IsNull(row) {
			return nil
		}
		if out.IsNil() {
			out.Set(reflect.New(out.Type().Elem()))
		}
		out = out.Elem()
	}
	if col.IsNull(row) {
		return nil
	}

	switch arr := col.(type) {
	case *array.String:
		return setCheckedString(out, arr.Value(row))
	case *array.Int64:
		return setCheckedInt(out, arr.Value(row))
	case *array.Int32:
		return setCheckedInt(out, int64(arr.Value(row)))
	case *array.Float64:
		return setCheckedFloat(out, arr.Value(row))
	case *array.Float32:
		return setCheckedFloat(out, float64(arr.Value(row)))
	case *array.Boolean:
		if out.Kind() != reflect.Bool {
			return fmt.Errorf("bool column needs a bool target, got %s", out.Type())
		}
		out.SetBool(arr.Value(row))
	case *array.Binary:
		if out.Kind() != reflect.Slice || out.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("binary column needs a byte slice target, got %s", out.Type())
		}
		data := arr.Value(row)
		buf := make([]byte, len(data))
		copy(buf, data)
		out.SetBytes(buf)
	case *array.List:
		return extractList(arr, row, out)
	case *array.Map:
		return extractMap(arr, row, out)
	case *array.Struct:
		return extractStruct(arr, row, out)
	default:
		return fmt.Errorf("unsupported arrow array %T", col)
	}
	return nil
}

func setCheckedString(out reflect.Value, v string) error {
	if out.Kind() != reflect.String {
		return fmt.Errorf("string column needs a string target, got %s", out.Type())
	}
	out.SetString(v)
	return nil
}

func setCheckedInt(out reflect.Value, v int64) error {
	switch out.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if out.OverflowInt(v) {
			return fmt.Errorf("value %d overflows %s", v, out.Type())
		}
		out.SetInt(v)
		return nil
	default:
		return fmt.Errorf("integer column needs an integer target, got %s", out.Type())
	}
}

func setCheckedFloat(out reflect.Value, v float64) error {
	switch out.Kind() {
	case reflect.Float32, reflect.Float64:
		out.SetFloat(v)
		return nil
	default:
		return fmt.Errorf("float column needs a float target, got %s", out.Type())
	}
}

func extractList(arr *array.List, row int, out reflect.Value) error {
	if out.Kind() != reflect.Slice {
		return fmt.Errorf("list column needs a slice target, got %s", out.Type())
	}
	start, end := arr.ValueOffsets(row)
	n := int(end - start)
	slice := reflect.MakeSlice(out.Type(), n, n)
	values := arr.ListValues()
	for i := range n {
		if err := extractGoValue(values, int(start)+i, slice.Index(i)); err != nil {
			return err
		}
	}
	out.Set(slice)
	return nil
}

func extractMap(arr *array.Map, row int, out reflect.Value) error {
	if out.Kind() != reflect.Map {
		return fmt.Errorf("map column needs a map target, got %s", out.Type())
	}
	start, end := arr.ValueOffsets(row)
	m := reflect.MakeMapWithSize(out.Type(), int(end-start))
	keys := arr.Keys()
	items := arr.Items()
	for j := int(start); j < int(end); j++ {
		k := reflect.New(out.Type().Key()).Elem()
		if err := extractGoValue(keys, j, k); err != nil {
			return err
		}
		v := reflect.New(out.Type().Elem()).Elem()
		if err := extractGoValue(items, j, v); err != nil {
			return err
		}
		m.SetMapIndex(k, v)
	}
	out.Set(m)
	return nil
}

func extractStruct(arr *array.Struct, row int, out reflect.Value) error {
	if out.Kind() != reflect.Struct {
		return fmt.Errorf("struct column needs a struct target, got %s", out.Type())
	}
	st := arr.DataType().(*arrow.StructType)
	t := out.Type()
	for i := range t.NumField() {
		name, ok := wireFieldName(t.Field(i))
		if !ok {
			continue
		}
		for ci := range st.NumFields() {
			if st.Field(ci).Name != name {
				continue
			}
			if err := extractGoValue(arr.Field(ci), row, out.Field(i)); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			break
		}
	}
	return nil
}
