// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Field is one entry of a Directory. It is one of *StringField,
// *ByteArrayField, *MultiValueField or *DirectoryField.
type Field interface {
	// Tag returns the field's tag.
	Tag() Tag

	// DataType returns the type the value is stored as.
	DataType() DataType

	// Values returns a copy of the field's values in order.
	Values() []any

	// FirstValue returns the first value, or nil if there is none.
	FirstValue() any

	// Equal reports whether the field has the same tag, data type and values
	// as other. Nested directories are compared deeply.
	Equal(other Field) bool

	String() string

	isField()
}

var (
	_ Field = (*StringField)(nil)
	_ Field = (*ByteArrayField)(nil)
	_ Field = (*MultiValueField)(nil)
	_ Field = (*DirectoryField)(nil)
)

// NewField creates an empty field of the variant matching dt's category.
// Use NewDirectoryField for IFD pointers.
func NewField(tag Tag, dt DataType) (Field, error) {
	if !dt.IsValid() {
		return nil, newErrorf(ErrInvalidField, "%s: unknown data type %d", tag, uint16(dt))
	}
	switch dt.Category() {
	case CategoryString:
		return &StringField{tag: tag, dataType: dt}, nil
	case CategoryBytes:
		return &ByteArrayField{tag: tag, dataType: dt}, nil
	default:
		return &MultiValueField{tag: tag, dataType: dt}, nil
	}
}

// StringField holds an ASCII or UTF8 value.
type StringField struct {
	tag      Tag
	dataType DataType
	value    string
}

// NewStringField creates a text field. dt must be ASCII or UTF8.
func NewStringField(tag Tag, dt DataType, value string) (*StringField, error) {
	if dt.Category() != CategoryString || !dt.IsValid() {
		return nil, newErrorf(ErrInvalidField, "%s: data type %s is not a text type", tag, dt)
	}
	return &StringField{tag: tag, dataType: dt, value: value}, nil
}

func (f *StringField) Tag() Tag           { return f.tag }
func (f *StringField) DataType() DataType { return f.dataType }
func (f *StringField) Values() []any      { return []any{f.value} }
func (f *StringField) FirstValue() any    { return f.value }

// Value returns the text.
func (f *StringField) Value() string { return f.value }

// SetValue replaces the text.
func (f *StringField) SetValue(s string) { f.value = s }

func (f *StringField) Equal(other Field) bool {
	o, ok := other.(*StringField)
	return ok && f.tag.ID == o.tag.ID && f.dataType == o.dataType && f.value == o.value
}

func (f *StringField) String() string {
	return fmt.Sprintf("%s: %s", f.tag, f.value)
}

func (f *StringField) isField() {}

// ByteArrayField holds BYTE, SBYTE or UNDEFINED data as raw bytes.
type ByteArrayField struct {
	tag      Tag
	dataType DataType
	value    []byte
}

// NewByteArrayField creates a byte field. dt must be BYTE, SBYTE or UNDEFINED.
func NewByteArrayField(tag Tag, dt DataType, value []byte) (*ByteArrayField, error) {
	if dt.Category() != CategoryBytes || !dt.IsValid() {
		return nil, newErrorf(ErrInvalidField, "%s: data type %s is not a byte type", tag, dt)
	}
	return &ByteArrayField{tag: tag, dataType: dt, value: bytes.Clone(value)}, nil
}

func (f *ByteArrayField) Tag() Tag           { return f.tag }
func (f *ByteArrayField) DataType() DataType { return f.dataType }
func (f *ByteArrayField) Values() []any      { return []any{bytes.Clone(f.value)} }
func (f *ByteArrayField) FirstValue() any    { return bytes.Clone(f.value) }

// Bytes returns a copy of the raw bytes.
func (f *ByteArrayField) Bytes() []byte { return bytes.Clone(f.value) }

// SetValue replaces the bytes.
func (f *ByteArrayField) SetValue(b []byte) { f.value = bytes.Clone(b) }

func (f *ByteArrayField) Equal(other Field) bool {
	o, ok := other.(*ByteArrayField)
	return ok && f.tag.ID == o.tag.ID && f.dataType == o.dataType && bytes.Equal(f.value, o.value)
}

func (f *ByteArrayField) String() string {
	return fmt.Sprintf("%s: %d bytes", f.tag, len(f.value))
}

func (f *ByteArrayField) isField() {}

// MultiValueField holds one or more numeric values. The Go type of each value
// is fixed by the data type, see checkValue.
type MultiValueField struct {
	tag      Tag
	dataType DataType
	values   []any
}

// NewMultiValueField creates a numeric field, validating each value against dt.
func NewMultiValueField(tag Tag, dt DataType, values ...any) (*MultiValueField, error) {
	if dt.Category() != CategoryNumeric || !dt.IsValid() {
		return nil, newErrorf(ErrInvalidField, "%s: data type %s is not a numeric type", tag, dt)
	}
	f := &MultiValueField{tag: tag, dataType: dt}
	if err := f.SetValues(values...); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *MultiValueField) Tag() Tag           { return f.tag }
func (f *MultiValueField) DataType() DataType { return f.dataType }

func (f *MultiValueField) Values() []any {
	values := make([]any, len(f.values))
	copy(values, f.values)
	return values
}

func (f *MultiValueField) FirstValue() any {
	if len(f.values) == 0 {
		return nil
	}
	return f.values[0]
}

// Len returns the number of values.
func (f *MultiValueField) Len() int { return len(f.values) }

// SetValues replaces the values. Each value must have the Go type of the
// field's data type.
func (f *MultiValueField) SetValues(values ...any) error {
	for i, v := range values {
		if err := checkValue(f.dataType, v); err != nil {
			return fmt.Errorf("%s: value %d: %w", f.tag, i, err)
		}
	}
	f.values = make([]any, len(values))
	copy(f.values, values)
	return nil
}

func (f *MultiValueField) Equal(other Field) bool {
	o, ok := other.(*MultiValueField)
	if !ok || f.tag.ID != o.tag.ID || f.dataType != o.dataType || len(f.values) != len(o.values) {
		return false
	}
	for i, v := range f.values {
		if !valueEqual(v, o.values[i]) {
			return false
		}
	}
	return true
}

func (f *MultiValueField) String() string {
	if len(f.values) == 1 {
		return fmt.Sprintf("%s: %v", f.tag, f.values[0])
	}
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s: [%s]", f.tag, strings.Join(parts, " "))
}

func (f *MultiValueField) isField() {}

// DirectoryField holds the nested Directory an IFD pointer tag points to.
type DirectoryField struct {
	tag      Tag
	dataType DataType
	dir      *Directory
}

// NewDirectoryField creates a pointer field stored as LONG.
func NewDirectoryField(tag Tag, dir *Directory) (*DirectoryField, error) {
	return newDirectoryField(tag, LONG, dir)
}

func newDirectoryField(tag Tag, dt DataType, dir *Directory) (*DirectoryField, error) {
	if dir == nil {
		return nil, newErrorf(ErrInvalidField, "%s: nil directory", tag)
	}
	switch dt {
	case LONG, IFD, LONG8, IFD8:
	default:
		return nil, newErrorf(ErrInvalidField, "%s: data type %s cannot hold an IFD offset", tag, dt)
	}
	return &DirectoryField{tag: tag, dataType: dt, dir: dir}, nil
}

func (f *DirectoryField) Tag() Tag           { return f.tag }
func (f *DirectoryField) DataType() DataType { return f.dataType }
func (f *DirectoryField) Values() []any      { return []any{f.dir} }
func (f *DirectoryField) FirstValue() any    { return f.dir }

// Directory returns the nested directory.
func (f *DirectoryField) Directory() *Directory { return f.dir }

// SetValue replaces the nested directory.
func (f *DirectoryField) SetValue(dir *Directory) error {
	if dir == nil {
		return newErrorf(ErrInvalidField, "%s: nil directory", f.tag)
	}
	f.dir = dir
	return nil
}

func (f *DirectoryField) Equal(other Field) bool {
	o, ok := other.(*DirectoryField)
	return ok && f.tag.ID == o.tag.ID && f.dataType == o.dataType && f.dir.Equal(o.dir)
}

func (f *DirectoryField) String() string {
	return fmt.Sprintf("%s <IFD>", f.tag)
}

func (f *DirectoryField) isField() {}

// checkValue verifies that v has the Go type used for dt.
func checkValue(dt DataType, v any) error {
	var ok bool
	switch dt {
	case SHORT:
		_, ok = v.(uint16)
	case SSHORT:
		_, ok = v.(int16)
	case LONG, IFD:
		_, ok = v.(uint32)
	case SLONG:
		_, ok = v.(int32)
	case LONG8, IFD8:
		_, ok = v.(uint64)
	case SLONG8:
		_, ok = v.(int64)
	case FLOAT:
		_, ok = v.(float32)
	case DOUBLE:
		_, ok = v.(float64)
	case RATIONAL:
		_, ok = v.(Rat[uint32])
	case SRATIONAL:
		_, ok = v.(Rat[int32])
	}
	if !ok {
		return newErrorf(ErrInvalidField, "%T is not a valid %s value", v, dt)
	}
	return nil
}

// valueEqual compares two numeric values, treating NaN as equal to NaN so a
// decoded NaN compares equal to itself after a round trip.
func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case float32:
		bv, ok := b.(float32)
		return ok && (av == bv || math.IsNaN(float64(av)) && math.IsNaN(float64(bv)))
	case float64:
		bv, ok := b.(float64)
		return ok && (av == bv || math.IsNaN(av) && math.IsNaN(bv))
	default:
		return a == b
	}
}
