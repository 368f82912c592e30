// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// DataType is a TIFF field type as stored in the type slot of an IFD entry.
type DataType uint16

// TIFF 6.0, supplement 1, BigTIFF and the EXIF 3.0 UTF-8 types.
const (
	BYTE      DataType = 1
	ASCII     DataType = 2
	SHORT     DataType = 3
	LONG      DataType = 4
	RATIONAL  DataType = 5
	SBYTE     DataType = 6
	UNDEFINED DataType = 7
	SSHORT    DataType = 8
	SLONG     DataType = 9
	SRATIONAL DataType = 10
	FLOAT     DataType = 11
	DOUBLE    DataType = 12
	IFD       DataType = 13
	LONG8     DataType = 16
	SLONG8    DataType = 17
	IFD8      DataType = 18
	UTF8      DataType = 129
)

// Category groups data types by the Field variant that holds them.
type Category int

const (
	CategoryNumeric Category = iota
	CategoryString
	CategoryBytes
)

type dataTypeInfo struct {
	name     string
	size     int
	category Category
}

var dataTypes = map[DataType]dataTypeInfo{
	BYTE:      {"BYTE", 1, CategoryBytes},
	ASCII:     {"ASCII", 1, CategoryString},
	SHORT:     {"SHORT", 2, CategoryNumeric},
	LONG:      {"LONG", 4, CategoryNumeric},
	RATIONAL:  {"RATIONAL", 8, CategoryNumeric},
	SBYTE:     {"SBYTE", 1, CategoryBytes},
	UNDEFINED: {"UNDEFINED", 1, CategoryBytes},
	SSHORT:    {"SSHORT", 2, CategoryNumeric},
	SLONG:     {"SLONG", 4, CategoryNumeric},
	SRATIONAL: {"SRATIONAL", 8, CategoryNumeric},
	FLOAT:     {"FLOAT", 4, CategoryNumeric},
	DOUBLE:    {"DOUBLE", 8, CategoryNumeric},
	IFD:       {"IFD", 4, CategoryNumeric},
	LONG8:     {"LONG8", 8, CategoryNumeric},
	SLONG8:    {"SLONG8", 8, CategoryNumeric},
	IFD8:      {"IFD8", 8, CategoryNumeric},
	UTF8:      {"UTF8", 1, CategoryString},
}

// DataTypeForValue returns the DataType with the given wire code.
// The second return value is false for unknown codes.
func DataTypeForValue(code uint16) (DataType, bool) {
	dt := DataType(code)
	_, found := dataTypes[dt]
	return dt, found
}

// DataTypes returns all known data types ordered by code.
func DataTypes() []DataType {
	return []DataType{
		BYTE, ASCII, SHORT, LONG, RATIONAL, SBYTE, UNDEFINED, SSHORT,
		SLONG, SRATIONAL, FLOAT, DOUBLE, IFD, LONG8, SLONG8, IFD8, UTF8,
	}
}

// Value returns the wire code.
func (t DataType) Value() uint16 {
	return uint16(t)
}

// Size returns the byte width of a single element, 0 if t is unknown.
func (t DataType) Size() int {
	return dataTypes[t].size
}

// Category returns the Field variant category for t.
func (t DataType) Category() Category {
	return dataTypes[t].category
}

// IsValid reports whether t is a known data type.
func (t DataType) IsValid() bool {
	_, found := dataTypes[t]
	return found
}

func (t DataType) String() string {
	if info, found := dataTypes[t]; found {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", uint16(t))
}

// Decode decodes a single element of type t from b.
// ASCII and UTF8 decode all of b as text; everything else decodes exactly one
// element. LONG and SLONG accept 1 to 4 bytes, taken as the low order bytes of
// the value in the given byte order.
func (t DataType) Decode(b []byte, order binary.ByteOrder) (any, error) {
	if len(b) == 0 {
		return nil, newErrorf(ErrDecode, "%s: empty input", t)
	}

	switch t {
	case ASCII:
		return decodeText(b, asciiEncoding)
	case UTF8:
		return decodeText(b, utf8Encoding)
	}

	size := t.Size()
	if size == 0 {
		return nil, newErrorf(ErrDecode, "unknown data type %d", uint16(t))
	}

	switch t {
	case LONG, SLONG:
		if len(b) > 4 {
			return nil, newErrorf(ErrDecode, "%s: got %d bytes, want at most 4", t, len(b))
		}
		u := widenUint32(b, order)
		if t == SLONG {
			return int32(u), nil
		}
		return u, nil
	}

	if len(b) != size {
		return nil, newErrorf(ErrDecode, "%s: got %d bytes, want %d", t, len(b), size)
	}

	switch t {
	case BYTE, UNDEFINED:
		return b[0], nil
	case SBYTE:
		return int8(b[0]), nil
	case SHORT:
		return order.Uint16(b), nil
	case SSHORT:
		return int16(order.Uint16(b)), nil
	case IFD:
		return order.Uint32(b), nil
	case FLOAT:
		return math.Float32frombits(order.Uint32(b)), nil
	case LONG8, IFD8:
		return order.Uint64(b), nil
	case SLONG8:
		return int64(order.Uint64(b)), nil
	case DOUBLE:
		return math.Float64frombits(order.Uint64(b)), nil
	case RATIONAL:
		return Rat[uint32]{Num: order.Uint32(b[:4]), Den: order.Uint32(b[4:])}, nil
	case SRATIONAL:
		return Rat[int32]{Num: int32(order.Uint32(b[:4])), Den: int32(order.Uint32(b[4:]))}, nil
	}

	return nil, newErrorf(ErrDecode, "unhandled data type %s", t)
}

// decodeValues decodes count elements of type t from b.
func (t DataType) decodeValues(b []byte, count int, order binary.ByteOrder) ([]any, error) {
	size := t.Size()
	if len(b) < size*count {
		return nil, newErrorf(ErrDecode, "%s: %d bytes is too short for %d values", t, len(b), count)
	}
	values := make([]any, count)
	for i := range count {
		v, err := t.Decode(b[i*size:(i+1)*size], order)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// widenUint32 treats b as the low order bytes of a 32 bit value.
func widenUint32(b []byte, order binary.ByteOrder) uint32 {
	var buf [4]byte
	if order == binary.BigEndian {
		copy(buf[4-len(b):], b)
	} else {
		copy(buf[:], b)
	}
	return order.Uint32(buf[:])
}

var (
	// ISO-8859-1 is a superset of ASCII, so stray high bytes survive.
	asciiEncoding = charmap.ISO8859_1
	utf8Encoding  = xunicode.UTF8
)

func decodeText(b []byte, enc encoding.Encoding) (string, error) {
	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return trimText(string(s)), nil
}

func trimText(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}
