// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/text/encoding"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// ByteOrder defaults to binary.LittleEndian.
	ByteOrder binary.ByteOrder

	// BigTIFF selects 8 byte offsets and counts.
	BigTIFF bool

	// EXIFHeader prefixes the output with the "Exif\0\0" marker used in JPEG
	// APP1 segments.
	EXIFHeader bool
}

// Encode writes dirs as a chain of top level IFDs.
//
// Entries are written in ascending tag order. Values that do not fit in the
// value slot are written to a value area after their IFD, followed by the
// nested IFDs of the directory. Text is written NUL terminated.
func Encode(w io.Writer, dirs []*Directory, opts EncodeOptions) error {
	if opts.ByteOrder == nil {
		opts.ByteOrder = binary.LittleEndian
	}
	e := &encoder{
		order:   opts.ByteOrder,
		bigTIFF: opts.BigTIFF,
	}

	e.writeHeader()

	// The first IFD offset slot ends the header.
	nextSlot := len(e.buf) - e.slotLen()
	for _, d := range dirs {
		if d == nil {
			return newErrorf(ErrInvalidField, "nil directory")
		}
		off, slot, err := e.writeDirectory(d)
		if err != nil {
			return err
		}
		e.putOffset(nextSlot, off)
		nextSlot = slot
	}

	if opts.EXIFHeader {
		if _, err := w.Write(exifMarker); err != nil {
			return err
		}
	}
	_, err := w.Write(e.buf)
	return err
}

type encoder struct {
	order   binary.ByteOrder
	bigTIFF bool
	buf     []byte
}

func (e *encoder) slotLen() int {
	if e.bigTIFF {
		return 8
	}
	return 4
}

func (e *encoder) writeHeader() {
	if e.order == binary.BigEndian {
		e.buf = append(e.buf, byteOrderBigEndian...)
	} else {
		e.buf = append(e.buf, byteOrderLittleEndian...)
	}
	if e.bigTIFF {
		e.buf = e.appendUint16(e.buf, meaningOfBigLife)
		e.buf = e.appendUint16(e.buf, 8)
		e.buf = e.appendUint16(e.buf, 0)
		e.buf = append(e.buf, make([]byte, 8)...)
	} else {
		e.buf = e.appendUint16(e.buf, meaningOfLife)
		e.buf = append(e.buf, make([]byte, 4)...)
	}
}

// pendingDirectory is a nested IFD whose offset is patched in at pos once it
// has been written.
type pendingDirectory struct {
	pos  int
	dt   DataType
	dir  *Directory
	name string
}

// writeDirectory appends d and its nested directories. It returns the offset
// of d and the position of its next IFD offset slot.
func (e *encoder) writeDirectory(d *Directory) (int, int, error) {
	e.align()
	off := len(e.buf)

	countLen, entryLen := 2, entryLenClassic
	if e.bigTIFF {
		countLen, entryLen = 8, entryLenBig
	}

	e.buf = e.appendUint(e.buf, uint64(len(d.fields)), countLen)
	entriesStart := len(e.buf)
	e.buf = append(e.buf, make([]byte, len(d.fields)*entryLen+e.slotLen())...)
	nextSlot := entriesStart + len(d.fields)*entryLen

	var pending []pendingDirectory
	for i, f := range d.fields {
		p := entriesStart + i*entryLen
		dt := f.DataType()

		value, count, err := e.encodeValue(f)
		if err != nil {
			return 0, 0, err
		}

		e.order.PutUint16(e.buf[p:], f.Tag().ID)
		e.order.PutUint16(e.buf[p+2:], dt.Value())
		if e.bigTIFF {
			e.order.PutUint64(e.buf[p+4:], uint64(count))
		} else {
			e.order.PutUint32(e.buf[p+4:], uint32(count))
		}
		slot := p + 4 + e.slotLen()

		valuePos := slot
		if len(value) <= e.slotLen() {
			copy(e.buf[slot:slot+e.slotLen()], value)
		} else {
			e.align()
			valuePos = len(e.buf)
			e.buf = append(e.buf, value...)
			e.putOffset(slot, valuePos)
		}

		if df, ok := f.(*DirectoryField); ok {
			pending = append(pending, pendingDirectory{pos: valuePos, dt: dt, dir: df.dir, name: df.tag.String()})
		}
	}

	for _, pd := range pending {
		subOff, _, err := e.writeDirectory(pd.dir)
		if err != nil {
			return 0, 0, err
		}
		switch pd.dt {
		case LONG, IFD:
			if uint64(subOff) > math.MaxUint32 {
				return 0, 0, newErrorf(ErrInvalidField, "%s: offset %d does not fit in %s", pd.name, subOff, pd.dt)
			}
			e.order.PutUint32(e.buf[pd.pos:], uint32(subOff))
		default:
			e.order.PutUint64(e.buf[pd.pos:], uint64(subOff))
		}
	}

	if !e.bigTIFF && uint64(len(e.buf)) > math.MaxUint32 {
		return 0, 0, newErrorf(ErrInvalidField, "output of %d bytes is too large for classic TIFF", len(e.buf))
	}

	return off, nextSlot, nil
}

// encodeValue returns the value bytes of f and its element count. The bytes
// of a DirectoryField are a placeholder for the nested IFD's offset.
func (e *encoder) encodeValue(f Field) ([]byte, int, error) {
	switch f := f.(type) {
	case *StringField:
		var enc encoding.Encoding = asciiEncoding
		if f.dataType == UTF8 {
			enc = utf8Encoding
		}
		b, err := enc.NewEncoder().Bytes([]byte(f.value))
		if err != nil {
			return nil, 0, newErrorf(ErrInvalidField, "%s: cannot encode %q as %s: %v", f.tag, f.value, f.dataType, err)
		}
		b = append(b, 0)
		return b, len(b), nil
	case *ByteArrayField:
		return f.value, len(f.value), nil
	case *DirectoryField:
		return make([]byte, f.dataType.Size()), 1, nil
	case *MultiValueField:
		var b []byte
		for _, v := range f.values {
			b = e.appendValue(b, v)
		}
		return b, len(f.values), nil
	}
	return nil, 0, newErrorf(ErrInvalidField, "unsupported field %T", f)
}

func (e *encoder) appendValue(b []byte, v any) []byte {
	switch v := v.(type) {
	case uint16:
		return e.appendUint16(b, v)
	case int16:
		return e.appendUint16(b, uint16(v))
	case uint32:
		return e.appendUint(b, uint64(v), 4)
	case int32:
		return e.appendUint(b, uint64(uint32(v)), 4)
	case uint64:
		return e.appendUint(b, v, 8)
	case int64:
		return e.appendUint(b, uint64(v), 8)
	case float32:
		return e.appendUint(b, uint64(math.Float32bits(v)), 4)
	case float64:
		return e.appendUint(b, math.Float64bits(v), 8)
	case Rat[uint32]:
		b = e.appendUint(b, uint64(v.Num), 4)
		return e.appendUint(b, uint64(v.Den), 4)
	case Rat[int32]:
		b = e.appendUint(b, uint64(uint32(v.Num)), 4)
		return e.appendUint(b, uint64(uint32(v.Den)), 4)
	}
	// Values are validated when the field is created.
	panic("unreachable")
}

func (e *encoder) appendUint16(b []byte, v uint16) []byte {
	return e.appendUint(b, uint64(v), 2)
}

func (e *encoder) appendUint(b []byte, v uint64, size int) []byte {
	var tmp [8]byte
	switch size {
	case 2:
		e.order.PutUint16(tmp[:], uint16(v))
	case 4:
		e.order.PutUint32(tmp[:], uint32(v))
	default:
		e.order.PutUint64(tmp[:], v)
	}
	return append(b, tmp[:size]...)
}

// putOffset writes off into the offset slot at pos.
func (e *encoder) putOffset(pos, off int) {
	if e.bigTIFF {
		e.order.PutUint64(e.buf[pos:], uint64(off))
	} else {
		e.order.PutUint32(e.buf[pos:], uint32(off))
	}
}

// align pads the output to a word boundary.
func (e *encoder) align() {
	if len(e.buf)%2 != 0 {
		e.buf = append(e.buf, 0)
	}
}
