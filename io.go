// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var errShortRead = errors.New("short read")

// 10 MB should be plenty for image metadata.
const maxBufSize = 10 * 1024 * 1024

// streamReader is a wrapper around a ReadSeeker that provides methods to read
// binary data at offsets relative to base, the position of the TIFF header.
// Note that this is not thread safe.
type streamReader struct {
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	buf []byte

	// Absolute stream position of the byte order marker.
	base int64
	// Absolute stream size.
	size int64
}

func newStreamReader(r io.ReadSeeker) *streamReader {
	return &streamReader{
		r:         r,
		byteOrder: binary.BigEndian,
	}
}

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

func (e *streamReader) pos() (int64, error) {
	return e.r.Seek(0, io.SeekCurrent)
}

// measure records the stream size, preserving the current position.
func (e *streamReader) measure() error {
	pos, err := e.pos()
	if err != nil {
		return err
	}
	size, err := e.r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	e.size = size
	_, err = e.r.Seek(pos, io.SeekStart)
	return err
}

// inBounds reports whether n bytes at the relative offset off are inside the
// stream.
func (e *streamReader) inBounds(off uint64, n uint64) bool {
	remaining := e.size - e.base
	if remaining < 0 {
		return false
	}
	return off <= uint64(remaining) && n <= uint64(remaining)-off
}

// readNIntoBuf reads n bytes from the current position into e.buf.
func (e *streamReader) readNIntoBuf(n int) error {
	e.allocateBuf(n)
	n2, err := io.ReadFull(e.r, e.buf[:n])
	if err != nil {
		return err
	}
	if n != n2 {
		return errShortRead
	}
	return nil
}

// readBytesVolatile reads n bytes from the current position into a slice
// which is not guaranteed to be valid after the next read.
func (e *streamReader) readBytesVolatile(n int) ([]byte, error) {
	if err := e.readNIntoBuf(n); err != nil {
		return nil, err
	}
	return e.buf[:n], nil
}

// readBytesAt reads n bytes at the relative offset off into a new slice.
func (e *streamReader) readBytesAt(off uint64, n int, what string) ([]byte, error) {
	if !e.inBounds(off, uint64(n)) {
		return nil, newErrorf(ErrTruncated, "%s: %d bytes at offset %d run past end of stream (%d bytes)", what, n, off, e.size-e.base)
	}
	if err := e.seek(off); err != nil {
		return nil, wrapReadErr(err, what, int64(off))
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(e.r, b); err != nil {
		return nil, wrapReadErr(err, what, int64(off))
	}
	return b, nil
}

func (e *streamReader) read2() (uint16, error) {
	b, err := e.readBytesVolatile(2)
	if err != nil {
		return 0, err
	}
	return e.byteOrder.Uint16(b), nil
}

func (e *streamReader) read4() (uint32, error) {
	b, err := e.readBytesVolatile(4)
	if err != nil {
		return 0, err
	}
	return e.byteOrder.Uint32(b), nil
}

func (e *streamReader) read8() (uint64, error) {
	b, err := e.readBytesVolatile(8)
	if err != nil {
		return 0, err
	}
	return e.byteOrder.Uint64(b), nil
}

// readOffset reads a 4 or 8 byte unsigned value.
func (e *streamReader) readOffset(bigTIFF bool) (uint64, error) {
	if bigTIFF {
		return e.read8()
	}
	v, err := e.read4()
	return uint64(v), err
}

// uintN decodes a 2, 4 or 8 byte unsigned value from b.
func (e *streamReader) uintN(b []byte) uint64 {
	switch len(b) {
	case 2:
		return uint64(e.byteOrder.Uint16(b))
	case 4:
		return uint64(e.byteOrder.Uint32(b))
	default:
		return e.byteOrder.Uint64(b)
	}
}

// seek moves to the relative offset off.
func (e *streamReader) seek(off uint64) error {
	_, err := e.r.Seek(e.base+int64(off), io.SeekStart)
	return err
}

// bufferedReader reads length bytes from r into memory.
func bufferedReader(r io.Reader, length int64) (*bytes.Reader, error) {
	if length > maxBufSize {
		return nil, newErrorf(ErrUnrecognizedFormat, "length %d exceeds max %d", length, maxBufSize)
	}
	if length < 0 {
		return nil, newErrorf(ErrUnrecognizedFormat, "negative length")
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, wrapReadErr(err, "payload", 0)
	}
	return bytes.NewReader(b), nil
}
