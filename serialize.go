// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// The structural document form of a Directory:
//
//	Directory  := { "fields": [ FieldRecord, ... ] }
//	FieldRecord:= { "id": int, "dataType": int, "values": [ Value, ... ] }
//	Value      := scalar | [num, den] | { "parentTag": int, "fields": [...] }
type document struct {
	ParentTag *uint16         `json:"parentTag,omitempty"`
	Fields    []fieldDocument `json:"fields"`
}

type fieldDocument struct {
	ID       uint16 `json:"id"`
	DataType uint16 `json:"dataType"`
	Values   []any  `json:"values"`
}

// MarshalJSON implements json.Marshaler, writing the structural document form.
func (d *Directory) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.document(nil))
}

// MarshalDirectories writes the pages in dirs as a JSON array of documents.
func MarshalDirectories(dirs []*Directory) ([]byte, error) {
	docs := make([]document, len(dirs))
	for i, d := range dirs {
		docs[i] = d.document(nil)
	}
	return json.Marshal(docs)
}

func (d *Directory) document(parentTag *uint16) document {
	doc := document{
		ParentTag: parentTag,
		Fields:    make([]fieldDocument, 0, len(d.fields)),
	}
	for _, f := range d.fields {
		fd := fieldDocument{
			ID:       f.Tag().ID,
			DataType: f.DataType().Value(),
		}
		switch f := f.(type) {
		case *DirectoryField:
			id := f.tag.ID
			if f.dir.tagSet != nil {
				id = f.dir.tagSet.IFDPointerTagID()
			}
			fd.Values = []any{f.dir.document(&id)}
		case *StringField:
			fd.Values = []any{f.value}
		case *ByteArrayField:
			// Encoded as base64 by encoding/json.
			fd.Values = []any{f.value}
		case *MultiValueField:
			fd.Values = make([]any, len(f.values))
			for i, v := range f.values {
				fd.Values[i] = jsonValue(v)
			}
		}
		doc.Fields = append(doc.Fields, fd)
	}
	return doc
}

// jsonFloat writes non-finite values as the strings "NaN", "+Inf" and "-Inf".
type jsonFloat struct {
	v       float64
	bitSize int
}

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsNaN(f.v):
		return []byte(`"NaN"`), nil
	case math.IsInf(f.v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f.v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f.v, 'g', -1, f.bitSize), nil
}

func jsonValue(v any) any {
	switch vv := v.(type) {
	case float32:
		return jsonFloat{v: float64(vv), bitSize: 32}
	case float64:
		return jsonFloat{v: vv, bitSize: 64}
	}
	return v
}

// DirectoryDecoder reconstructs Directory trees from the structural document
// form.
type DirectoryDecoder struct {
	sets  []*TagSet
	known *TagSet
}

// NewDirectoryDecoder creates a decoder resolving tag IDs against the union
// of sets. With no sets, the canonical sets of a new Registry plus the
// baseline superset are used.
func NewDirectoryDecoder(sets ...*TagSet) *DirectoryDecoder {
	if len(sets) == 0 {
		reg := NewRegistry()
		sets = append([]*TagSet{reg.NewBaselineSuperset()}, reg.All()[1:]...)
	}
	known := NewTagSet(0, "known")
	for _, ts := range sets {
		known.Merge(ts)
	}
	return &DirectoryDecoder{sets: sets, known: known}
}

type rawDocument struct {
	ParentTag *json.Number `json:"parentTag"`
	Fields    []rawField   `json:"fields"`
}

type rawField struct {
	ID       json.Number       `json:"id"`
	DataType json.Number       `json:"dataType"`
	Values   []json.RawMessage `json:"values"`
}

// Decode reconstructs a single top level Directory.
// Every unresolvable tag ID or data type code in the document is reported in
// the returned error, which wraps ErrMalformed.
func (dd *DirectoryDecoder) Decode(b []byte) (*Directory, error) {
	var doc rawDocument
	if err := unmarshalNumbers(b, &doc); err != nil {
		return nil, newErrorf(ErrMalformed, "%v", err)
	}
	return dd.decodeTop(doc)
}

// DecodeAll reconstructs the pages written by MarshalDirectories.
func (dd *DirectoryDecoder) DecodeAll(b []byte) ([]*Directory, error) {
	var docs []rawDocument
	if err := unmarshalNumbers(b, &docs); err != nil {
		return nil, newErrorf(ErrMalformed, "%v", err)
	}
	dirs := make([]*Directory, 0, len(docs))
	for i, doc := range docs {
		dir, err := dd.decodeTop(doc)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (dd *DirectoryDecoder) decodeTop(doc rawDocument) (*Directory, error) {
	var root *TagSet
	for _, ts := range dd.sets {
		if ts.IsBaseline() {
			root = ts
			break
		}
	}
	if root == nil {
		return nil, newErrorf(ErrMisconfigured, "no baseline tag set")
	}
	var errs *multierror.Error
	dir := dd.decodeDirectory(doc, root, &errs)
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return dir, nil
}

// decodeDirectory decodes doc into a Directory bound to ts. Tags are resolved
// against ts first, then against every known tag. Errors are appended to errs
// and decoding continues, so that all offending records are reported.
func (dd *DirectoryDecoder) decodeDirectory(doc rawDocument, ts *TagSet, errs **multierror.Error) *Directory {
	dir := NewDirectory(ts)

	for _, rf := range doc.Fields {
		f, err := dd.decodeField(rf, ts, errs)
		if err != nil {
			if !IsMalformed(err) {
				err = fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			*errs = multierror.Append(*errs, err)
			continue
		}
		if f == nil {
			continue
		}
		if !dir.insert(f) {
			*errs = multierror.Append(*errs, newErrorf(ErrMalformed, "duplicate tag: %d", f.Tag().ID))
		}
	}
	return dir
}

func (dd *DirectoryDecoder) decodeField(rf rawField, ts *TagSet, errs **multierror.Error) (Field, error) {
	id, err := strconv.ParseUint(rf.ID.String(), 10, 16)
	if err != nil {
		return nil, newErrorf(ErrMalformed, "unsupported tag: %s", rf.ID)
	}
	tag, found := ts.Tag(uint16(id))
	if !found {
		tag, found = dd.known.Tag(uint16(id))
	}
	if !found {
		return nil, newErrorf(ErrMalformed, "unsupported tag: %d", id)
	}
	code, err := strconv.ParseUint(rf.DataType.String(), 10, 16)
	if err != nil {
		return nil, newErrorf(ErrMalformed, "tag %s: unsupported data type: %s", tag, rf.DataType)
	}
	dt, found := DataTypeForValue(uint16(code))
	if !found {
		return nil, newErrorf(ErrMalformed, "tag %s: unsupported data type: %d", tag, code)
	}

	if tag.IsIFDPointer {
		return dd.decodeDirectoryField(tag, dt, rf.Values, errs)
	}

	switch dt.Category() {
	case CategoryString:
		var s string
		if err := decodeSingle(rf.Values, &s); err != nil {
			return nil, newErrorf(ErrMalformed, "tag %s: %v", tag, err)
		}
		return NewStringField(tag, dt, s)
	case CategoryBytes:
		var b []byte
		if err := decodeSingle(rf.Values, &b); err != nil {
			return nil, newErrorf(ErrMalformed, "tag %s: %v", tag, err)
		}
		return NewByteArrayField(tag, dt, b)
	default:
		values := make([]any, len(rf.Values))
		for i, raw := range rf.Values {
			v, err := decodeNumeric(dt, raw)
			if err != nil {
				return nil, newErrorf(ErrMalformed, "tag %s: value %d: %v", tag, i, err)
			}
			values[i] = v
		}
		return NewMultiValueField(tag, dt, values...)
	}
}

func (dd *DirectoryDecoder) decodeDirectoryField(tag Tag, dt DataType, values []json.RawMessage, errs **multierror.Error) (Field, error) {
	var doc rawDocument
	if err := decodeSingle(values, &doc); err != nil {
		return nil, newErrorf(ErrMalformed, "tag %s: %v", tag, err)
	}
	parentTag := tag.ID
	if doc.ParentTag != nil {
		v, err := strconv.ParseUint(doc.ParentTag.String(), 10, 16)
		if err != nil {
			return nil, newErrorf(ErrMalformed, "tag %s: unsupported parent tag: %s", tag, doc.ParentTag)
		}
		parentTag = uint16(v)
	}
	var sub *TagSet
	for _, ts := range dd.sets {
		if !ts.IsBaseline() && ts.IFDPointerTagID() == parentTag {
			sub = ts
			break
		}
	}
	if sub == nil {
		return nil, newErrorf(ErrMalformed, "tag %s: unsupported parent tag: %d", tag, parentTag)
	}

	// Nested errors are collected along with the ones at this level.
	before := numErrors(*errs)
	dir := dd.decodeDirectory(doc, sub, errs)
	if numErrors(*errs) > before {
		return nil, nil
	}
	return newDirectoryField(tag, dt, dir)
}

func numErrors(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}

func unmarshalNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeSingle(values []json.RawMessage, v any) error {
	if len(values) != 1 {
		return fmt.Errorf("want 1 value, got %d", len(values))
	}
	return unmarshalNumbers(values[0], v)
}

// decodeNumeric decodes one value of the Go type used for dt, rejecting
// values that are out of range for it.
func decodeNumeric(dt DataType, raw json.RawMessage) (any, error) {
	switch dt {
	case RATIONAL, SRATIONAL:
		var pair []json.Number
		if err := unmarshalNumbers(raw, &pair); err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("want [numerator, denominator], got %s", raw)
		}
		if dt == RATIONAL {
			num, err := strconv.ParseUint(pair[0].String(), 10, 32)
			if err != nil {
				return nil, err
			}
			den, err := strconv.ParseUint(pair[1].String(), 10, 32)
			if err != nil {
				return nil, err
			}
			return NewRat(uint32(num), uint32(den)), nil
		}
		num, err := strconv.ParseInt(pair[0].String(), 10, 32)
		if err != nil {
			return nil, err
		}
		den, err := strconv.ParseInt(pair[1].String(), 10, 32)
		if err != nil {
			return nil, err
		}
		return NewRat(int32(num), int32(den)), nil
	case FLOAT, DOUBLE:
		bitSize := 64
		if dt == FLOAT {
			bitSize = 32
		}
		var s string
		if err := unmarshalNumbers(raw, &s); err == nil {
			// Non-finite values are written as strings.
			switch s {
			case "NaN", "+Inf", "-Inf":
			default:
				return nil, fmt.Errorf("invalid %s value %q", dt, s)
			}
		} else {
			var n json.Number
			if err := unmarshalNumbers(raw, &n); err != nil {
				return nil, err
			}
			s = n.String()
		}
		f, err := strconv.ParseFloat(s, bitSize)
		if err != nil {
			return nil, err
		}
		if dt == FLOAT {
			return float32(f), nil
		}
		return f, nil
	}

	var n json.Number
	if err := unmarshalNumbers(raw, &n); err != nil {
		return nil, err
	}
	s := n.String()
	switch dt {
	case SHORT:
		v, err := strconv.ParseUint(s, 10, 16)
		return uint16(v), err
	case SSHORT:
		v, err := strconv.ParseInt(s, 10, 16)
		return int16(v), err
	case LONG, IFD:
		v, err := strconv.ParseUint(s, 10, 32)
		return uint32(v), err
	case SLONG:
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	case LONG8, IFD8:
		return strconv.ParseUint(s, 10, 64)
	case SLONG8:
		return strconv.ParseInt(s, 10, 64)
	}
	return nil, fmt.Errorf("unsupported numeric data type %s", dt)
}
