// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"fmt"
	"hash/fnv"
	"io"
	"slices"
	"strings"
)

// Directory is the in-memory form of one IFD: fields ordered by ascending tag
// ID, all of them valid in the directory's tag set.
type Directory struct {
	tagSet *TagSet
	fields []Field
}

// NewDirectory creates an empty directory bound to tagSet.
func NewDirectory(tagSet *TagSet) *Directory {
	return &Directory{tagSet: tagSet}
}

// TagSet returns the tag set the directory is bound to.
func (d *Directory) TagSet() *TagSet {
	return d.tagSet
}

// Add adds a field of the variant matching dt. Text types take a single
// string, byte types a single []byte and numeric types any number of values
// of the Go type for dt.
func (d *Directory) Add(tag Tag, dt DataType, values ...any) error {
	if err := d.checkTag(tag); err != nil {
		return err
	}
	f, err := newFieldWithValues(tag, dt, values)
	if err != nil {
		return err
	}
	d.insert(f)
	return nil
}

// AddBytes adds a BYTE, SBYTE or UNDEFINED field.
func (d *Directory) AddBytes(tag Tag, dt DataType, b []byte) error {
	if err := d.checkTag(tag); err != nil {
		return err
	}
	f, err := NewByteArrayField(tag, dt, b)
	if err != nil {
		return err
	}
	d.insert(f)
	return nil
}

// AddDirectory adds a field for the IFD pointer tag holding sub.
func (d *Directory) AddDirectory(tag Tag, sub *Directory) error {
	if err := d.checkTag(tag); err != nil {
		return err
	}
	f, err := NewDirectoryField(tag, sub)
	if err != nil {
		return err
	}
	d.insert(f)
	return nil
}

// AddField adds f. If a field with the same tag ID is already present, the
// existing field is kept.
func (d *Directory) AddField(f Field) error {
	if f == nil {
		return newErrorf(ErrInvalidField, "nil field")
	}
	if err := d.checkTag(f.Tag()); err != nil {
		return err
	}
	d.insert(f)
	return nil
}

func (d *Directory) checkTag(tag Tag) error {
	if d.tagSet == nil || !d.tagSet.ContainsTag(tag.ID) {
		return newErrorf(ErrInvalidField, "tag %s (%d) is not in tag set %s", tag, tag.ID, d.tagSetName())
	}
	return nil
}

func (d *Directory) tagSetName() string {
	if d.tagSet == nil {
		return "<nil>"
	}
	return d.tagSet.Name()
}

// insert keeps d.fields sorted; returns false if the tag was already present.
func (d *Directory) insert(f Field) bool {
	i, found := slices.BinarySearchFunc(d.fields, f.Tag().ID, func(e Field, id uint16) int {
		return int(e.Tag().ID) - int(id)
	})
	if found {
		return false
	}
	d.fields = slices.Insert(d.fields, i, f)
	return true
}

// Field returns the field with the given tag ID.
func (d *Directory) Field(id uint16) (Field, bool) {
	i, found := slices.BinarySearchFunc(d.fields, id, func(e Field, id uint16) int {
		return int(e.Tag().ID) - int(id)
	})
	if !found {
		return nil, false
	}
	return d.fields[i], true
}

// Fields returns the fields ordered by tag ID.
func (d *Directory) Fields() []Field {
	return slices.Clone(d.fields)
}

// Subdirectory returns the directory nested under tag, or nil.
func (d *Directory) Subdirectory(tag Tag) *Directory {
	f, found := d.Field(tag.ID)
	if !found {
		return nil
	}
	if df, ok := f.(*DirectoryField); ok {
		return df.Directory()
	}
	return nil
}

// Len returns the number of fields at this level.
func (d *Directory) Len() int {
	return len(d.fields)
}

// Equal reports whether d and other have equal tag sets and equal fields,
// including all nested directories.
func (d *Directory) Equal(other *Directory) bool {
	if d == nil || other == nil {
		return d == other
	}
	if !d.tagSet.Equal(other.tagSet) || len(d.fields) != len(other.fields) {
		return false
	}
	for i, f := range d.fields {
		if !f.Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

// Hash returns a hash of the tree rooted at d. Equal directories have equal
// hashes.
func (d *Directory) Hash() uint64 {
	h := fnv.New64a()
	d.writeCanonical(h)
	return h.Sum64()
}

func (d *Directory) writeCanonical(w io.Writer) {
	if d.tagSet != nil {
		fmt.Fprintf(w, "{%d:%s", d.tagSet.IFDPointerTagID(), d.tagSet.Name())
	}
	for _, f := range d.fields {
		fmt.Fprintf(w, "[%d:%d:", f.Tag().ID, f.DataType())
		switch f := f.(type) {
		case *DirectoryField:
			f.Directory().writeCanonical(w)
		case *ByteArrayField:
			w.Write(f.value)
		case *StringField:
			io.WriteString(w, f.value)
		case *MultiValueField:
			for _, v := range f.values {
				fmt.Fprintf(w, "%v,", v)
			}
		}
		io.WriteString(w, "]")
	}
	io.WriteString(w, "}")
}

// ToMap returns a nested map suitable for display:
//
//	{"tagSet": <name>, "fields": {<tag name>: <value or values>, ...}}
//
// Nested directories use the same shape, keyed by the pointer tag's name.
func (d *Directory) ToMap() map[string]any {
	fields := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		var v any
		switch f := f.(type) {
		case *DirectoryField:
			v = f.Directory().ToMap()
		case *StringField:
			v = f.Value()
		case *ByteArrayField:
			v = f.Bytes()
		case *MultiValueField:
			if f.Len() == 1 {
				v = f.FirstValue()
			} else {
				v = f.Values()
			}
		}
		fields[f.Tag().String()] = v
	}
	return map[string]any{
		"tagSet": d.tagSetName(),
		"fields": fields,
	}
}

func (d *Directory) String() string {
	var sb strings.Builder
	d.writeString(&sb, 0)
	return sb.String()
}

func (d *Directory) writeString(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s\n", indent, d.tagSetName())
	for _, f := range d.fields {
		fmt.Fprintf(sb, "%s  %s\n", indent, f)
		if df, ok := f.(*DirectoryField); ok {
			df.Directory().writeString(sb, depth+2)
		}
	}
}

// newFieldWithValues creates a field of the variant for dt from values of the
// shape that variant expects.
func newFieldWithValues(tag Tag, dt DataType, values []any) (Field, error) {
	switch dt.Category() {
	case CategoryString:
		if len(values) != 1 {
			return nil, newErrorf(ErrInvalidField, "%s: want 1 string value, got %d", tag, len(values))
		}
		s, ok := values[0].(string)
		if !ok {
			return nil, newErrorf(ErrInvalidField, "%s: want string, got %T", tag, values[0])
		}
		return NewStringField(tag, dt, s)
	case CategoryBytes:
		if len(values) != 1 {
			return nil, newErrorf(ErrInvalidField, "%s: want 1 []byte value, got %d", tag, len(values))
		}
		b, ok := values[0].([]byte)
		if !ok {
			return nil, newErrorf(ErrInvalidField, "%s: want []byte, got %T", tag, values[0])
		}
		return NewByteArrayField(tag, dt, b)
	default:
		return NewMultiValueField(tag, dt, values...)
	}
}
