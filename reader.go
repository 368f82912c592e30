// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"bytes"
	"encoding/binary"
	"io"
)

// exifMarker precedes the TIFF header when the payload comes from a JPEG
// APP1 segment.
var exifMarker = []byte("Exif\x00\x00")

const (
	byteOrderBigEndian    = "MM"
	byteOrderLittleEndian = "II"

	meaningOfLife    = 42
	meaningOfBigLife = 43

	headerLenClassic = 8
	headerLenBig     = 16

	// A classic IFD entry is 12 bytes:
	//   - 2 bytes for the tag ID
	//   - 2 bytes for the data type
	//   - 4 bytes for the number of values
	//   - 4 bytes for the value itself, if it fits, otherwise for a pointer to
	//     where the data may be found; this could be the start of another IFD.
	// BigTIFF widens the count and the value slot to 8 bytes, making it 20.
	entryLenClassic = 12
	entryLenBig     = 20
)

const (
	defaultMaxDepth        = 8
	defaultLimitNumEntries = 5000
	defaultLimitValueSize  = maxBufSize
)

// ReaderOptions configures a DirectoryReader.
type ReaderOptions struct {
	// The source to read from, typically a *os.File or a *bytes.Reader.
	// Reading starts at the current position. The reader does not close it.
	R io.ReadSeeker

	// The tag sets to resolve tags against. At least one must be a baseline
	// tag set (IFD pointer tag ID 0). Entries with tags not in the tag set of
	// their IFD are skipped, and so are pointers to IFDs without a registered
	// tag set.
	TagSets []*TagSet

	// MaxDepth is the maximum nesting of IFD pointers below a top level IFD.
	// Default value is 8.
	MaxDepth int

	// LimitNumEntries is the maximum number of entries in one IFD.
	// Default value is 5000.
	LimitNumEntries uint32

	// LimitValueSize is the maximum size in bytes of one entry's value.
	// Default value is 10 MB.
	LimitValueSize uint32

	// Warnf will be called for each skipped entry and other oddities that do
	// not stop the read.
	Warnf func(string, ...any)
}

// DirectoryReader reads the IFD chain of a TIFF, BigTIFF or EXIF payload.
// A reader supports exactly one traversal.
type DirectoryReader struct {
	opts    ReaderOptions
	tagSets []*TagSet

	s *streamReader

	headerParsed   bool
	bigTIFF        bool
	firstIFDOffset uint64
	used           bool
}

// NewDirectoryReader creates a reader with the given options.
func NewDirectoryReader(opts ReaderOptions) *DirectoryReader {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.LimitNumEntries == 0 {
		opts.LimitNumEntries = defaultLimitNumEntries
	}
	if opts.LimitValueSize == 0 {
		opts.LimitValueSize = defaultLimitValueSize
	}
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}
	r := &DirectoryReader{opts: opts}
	for _, ts := range opts.TagSets {
		r.AddTagSet(ts)
	}
	return r
}

// SetSource sets the stream to read from.
func (r *DirectoryReader) SetSource(rs io.ReadSeeker) {
	r.opts.R = rs
}

// AddTagSet registers ts. A tag set equal to an already registered one is
// ignored.
func (r *DirectoryReader) AddTagSet(ts *TagSet) {
	if ts == nil {
		return
	}
	for _, existing := range r.tagSets {
		if existing.Equal(ts) {
			return
		}
	}
	r.tagSets = append(r.tagSets, ts)
}

// IsBigTIFF reports whether the source is BigTIFF. It is only known once the
// header has been read by Iterator, ReadAll or ReadFirst.
func (r *DirectoryReader) IsBigTIFF() (bool, error) {
	if !r.headerParsed {
		return false, newErrorf(ErrMisconfigured, "header not read yet")
	}
	return r.bigTIFF, nil
}

// ByteOrder returns the byte order of the source. It is only known once the
// header has been read by Iterator, ReadAll or ReadFirst.
func (r *DirectoryReader) ByteOrder() (binary.ByteOrder, error) {
	if !r.headerParsed {
		return nil, newErrorf(ErrMisconfigured, "header not read yet")
	}
	return r.s.byteOrder, nil
}

// Iterator reads the header and returns a cursor over the top level IFDs.
func (r *DirectoryReader) Iterator() (*DirectoryIterator, error) {
	if err := r.checkConfig(); err != nil {
		return nil, err
	}
	r.used = true

	if !r.headerParsed {
		r.s = newStreamReader(r.opts.R)
		if err := r.readHeader(); err != nil {
			return nil, err
		}
		r.headerParsed = true
	}

	return &DirectoryIterator{
		r:          r,
		root:       r.baselineTagSet(),
		nextOffset: r.firstIFDOffset,
		hasNext:    r.firstIFDOffset != 0,
		visited:    make(map[uint64]bool),
	}, nil
}

// ReadAll reads all top level IFDs in order.
func (r *DirectoryReader) ReadAll() ([]*Directory, error) {
	it, err := r.Iterator()
	if err != nil {
		return nil, err
	}
	var dirs []*Directory
	for it.HasNext() {
		dir, err := it.Next()
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// ReadFirst reads the first IFD only.
func (r *DirectoryReader) ReadFirst() (*Directory, error) {
	it, err := r.Iterator()
	if err != nil {
		return nil, err
	}
	return it.Next()
}

func (r *DirectoryReader) checkConfig() error {
	if r.used {
		return newErrorf(ErrMisconfigured, "reader already used; create a new reader to traverse again")
	}
	if r.opts.R == nil {
		return newErrorf(ErrMisconfigured, "no source provided")
	}
	if len(r.tagSets) == 0 {
		return newErrorf(ErrMisconfigured, "no tag sets registered")
	}
	if r.baselineTagSet() == nil {
		return newErrorf(ErrMisconfigured, "no baseline tag set registered")
	}
	return nil
}

func (r *DirectoryReader) baselineTagSet() *TagSet {
	for _, ts := range r.tagSets {
		if ts.IsBaseline() {
			return ts
		}
	}
	return nil
}

// tagSetForPointer returns the registered tag set for the IFD that the
// pointer tag id points to.
func (r *DirectoryReader) tagSetForPointer(id uint16) *TagSet {
	if id == 0 {
		return nil
	}
	for _, ts := range r.tagSets {
		if ts.IFDPointerTagID() == id {
			return ts
		}
	}
	return nil
}

func (r *DirectoryReader) readHeader() error {
	s := r.s
	if err := s.measure(); err != nil {
		return wrapReadErr(err, "stream size", 0)
	}
	start, err := s.pos()
	if err != nil {
		return wrapReadErr(err, "stream position", 0)
	}

	if b, err := s.readBytesVolatile(len(exifMarker)); err == nil && bytes.Equal(b, exifMarker) {
		start += int64(len(exifMarker))
	}
	s.base = start
	if err := s.seek(0); err != nil {
		return wrapReadErr(err, "header", 0)
	}

	b, err := s.readBytesVolatile(2)
	if err != nil {
		return newErrorf(ErrUnrecognizedFormat, "reading byte order marker: %v", err)
	}
	switch string(b) {
	case byteOrderLittleEndian:
		s.byteOrder = binary.LittleEndian
	case byteOrderBigEndian:
		s.byteOrder = binary.BigEndian
	default:
		return newErrorf(ErrUnrecognizedFormat, "invalid byte order marker %q", b)
	}

	magic, err := s.read2()
	if err != nil {
		return newErrorf(ErrUnrecognizedFormat, "reading magic number: %v", err)
	}
	switch magic {
	case meaningOfLife:
		r.bigTIFF = false
	case meaningOfBigLife:
		r.bigTIFF = true
		offsetSize, err := s.read2()
		if err != nil {
			return wrapReadErr(err, "BigTIFF offset size", 4)
		}
		if offsetSize != 8 {
			return newErrorf(ErrUnrecognizedFormat, "unsupported BigTIFF offset size %d", offsetSize)
		}
		if _, err := s.read2(); err != nil {
			return wrapReadErr(err, "BigTIFF reserved field", 6)
		}
	default:
		return newErrorf(ErrUnrecognizedFormat, "invalid magic number %d", magic)
	}

	r.firstIFDOffset, err = s.readOffset(r.bigTIFF)
	if err != nil {
		return wrapReadErr(err, "first IFD offset", 4)
	}

	return nil
}

func (r *DirectoryReader) headerLen() uint64 {
	if r.bigTIFF {
		return headerLenBig
	}
	return headerLenClassic
}

// layout returns the byte widths of the IFD's entry count, an entry and a
// value slot. The slot width is also the width of offsets and of the value
// count inside an entry.
func (r *DirectoryReader) layout() (countLen, entryLen, slotLen uint64) {
	if r.bigTIFF {
		return 8, entryLenBig, 8
	}
	return 2, entryLenClassic, 4
}

// readDirectory reads the IFD at the relative offset off and returns it along
// with the offset of the next IFD in the chain (0 if there is none).
func (r *DirectoryReader) readDirectory(off uint64, ts *TagSet, depth int, visited map[uint64]bool) (*Directory, uint64, error) {
	s := r.s
	countLen, entryLen, slotLen := r.layout()

	if depth > r.opts.MaxDepth {
		return nil, 0, newErrorf(ErrTruncated, "%s IFD at offset %d is nested deeper than %d", ts.Name(), off, r.opts.MaxDepth)
	}
	if off < r.headerLen() || !s.inBounds(off, countLen) {
		return nil, 0, newErrorf(ErrTruncated, "%s IFD offset %d is outside of the stream (%d bytes)", ts.Name(), off, s.size-s.base)
	}
	if visited[off] {
		return nil, 0, newErrorf(ErrTruncated, "%s IFD offset %d was already visited", ts.Name(), off)
	}
	visited[off] = true

	b, err := s.readBytesAt(off, int(countLen), "IFD entry count")
	if err != nil {
		return nil, 0, err
	}
	numEntries := s.uintN(b)
	if numEntries > uint64(r.opts.LimitNumEntries) {
		return nil, 0, newErrorf(ErrTruncated, "%s IFD at offset %d has %d entries, limit is %d", ts.Name(), off, numEntries, r.opts.LimitNumEntries)
	}

	// All IFD entries are read in one chunk.
	entriesOff := off + countLen
	raw, err := s.readBytesAt(entriesOff, int(numEntries*entryLen), "IFD entries")
	if err != nil {
		return nil, 0, err
	}

	dir := NewDirectory(ts)
	for i := uint64(0); i < numEntries; i++ {
		p := raw[i*entryLen : (i+1)*entryLen]
		if err := r.readEntry(dir, p, depth, visited); err != nil {
			return nil, 0, err
		}
	}

	nextPos := entriesOff + numEntries*entryLen
	if !s.inBounds(nextPos, slotLen) {
		r.opts.Warnf("%s IFD at offset %d: missing next IFD offset, ending chain", ts.Name(), off)
		return dir, 0, nil
	}
	b, err = s.readBytesAt(nextPos, int(slotLen), "next IFD offset")
	if err != nil {
		return nil, 0, err
	}

	return dir, s.uintN(b), nil
}

// readEntry decodes the IFD entry in p and adds it to dir.
func (r *DirectoryReader) readEntry(dir *Directory, p []byte, depth int, visited map[uint64]bool) error {
	s := r.s
	ts := dir.TagSet()
	_, _, slotLen := r.layout()

	tagID := s.byteOrder.Uint16(p[0:2])
	typ := s.byteOrder.Uint16(p[2:4])
	count := s.uintN(p[4 : 4+slotLen])
	slot := p[4+slotLen : 4+2*slotLen]

	tag, found := ts.Tag(tagID)
	if !found {
		r.opts.Warnf("%s IFD: skipping unknown tag %d (0x%04x)", ts.Name(), tagID, tagID)
		return nil
	}

	dt, found := DataTypeForValue(typ)
	if !found {
		r.opts.Warnf("%s IFD: skipping tag %s with unknown data type %d", ts.Name(), tag, typ)
		return nil
	}

	limit := uint64(r.opts.LimitValueSize)
	if count > limit || count*uint64(dt.Size()) > limit {
		return newErrorf(ErrTruncated, "%s IFD: tag %s has %d values of type %s, more than %d bytes", ts.Name(), tag, count, dt, limit)
	}
	size := count * uint64(dt.Size())

	var value []byte
	if size <= slotLen {
		value = slot[:size]
	} else {
		var err error
		value, err = s.readBytesAt(s.uintN(slot), int(size), tag.String())
		if err != nil {
			return err
		}
	}

	var field Field
	if tag.IsIFDPointer {
		sub := r.tagSetForPointer(tag.ID)
		if sub == nil {
			r.opts.Warnf("%s IFD: skipping pointer %s, no tag set registered for it", ts.Name(), tag)
			return nil
		}
		var ptr uint64
		switch {
		case count == 0:
			r.opts.Warnf("%s IFD: skipping pointer %s without a value", ts.Name(), tag)
			return nil
		case dt == LONG || dt == IFD:
			ptr = uint64(s.byteOrder.Uint32(value[:4]))
		case dt == LONG8 || dt == IFD8:
			ptr = s.byteOrder.Uint64(value[:8])
		default:
			r.opts.Warnf("%s IFD: skipping pointer %s with data type %s", ts.Name(), tag, dt)
			return nil
		}
		subdir, _, err := r.readDirectory(ptr, sub, depth+1, visited)
		if err != nil {
			return err
		}
		field, err = newDirectoryField(tag, dt, subdir)
		if err != nil {
			return err
		}
	} else {
		var err error
		field, err = r.decodeField(tag, dt, int(count), value)
		if err != nil {
			return err
		}
	}

	if !dir.insert(field) {
		r.opts.Warnf("%s IFD: skipping duplicate tag %s", ts.Name(), tag)
	}
	return nil
}

func (r *DirectoryReader) decodeField(tag Tag, dt DataType, count int, value []byte) (Field, error) {
	switch dt.Category() {
	case CategoryString:
		var text string
		if len(value) > 0 {
			v, err := dt.Decode(value, r.s.byteOrder)
			if err != nil {
				return nil, err
			}
			text = v.(string)
		}
		return NewStringField(tag, dt, text)
	case CategoryBytes:
		return NewByteArrayField(tag, dt, value)
	default:
		values, err := dt.decodeValues(value, count, r.s.byteOrder)
		if err != nil {
			return nil, err
		}
		return NewMultiValueField(tag, dt, values...)
	}
}

// DirectoryIterator is a single pass cursor over the top level IFD chain.
type DirectoryIterator struct {
	r          *DirectoryReader
	root       *TagSet
	nextOffset uint64
	hasNext    bool
	visited    map[uint64]bool
}

// HasNext reports whether there is a next IFD offset to read.
func (it *DirectoryIterator) HasNext() bool {
	return it.hasNext
}

// Next reads the next top level IFD, including its nested IFDs.
// Once Next returns an error, the iterator is exhausted.
func (it *DirectoryIterator) Next() (*Directory, error) {
	if !it.hasNext {
		return nil, ErrExhausted
	}
	it.hasNext = false
	dir, next, err := it.r.readDirectory(it.nextOffset, it.root, 0, it.visited)
	if err != nil {
		return nil, err
	}
	if next != 0 {
		it.nextOffset = next
		it.hasNext = true
	}
	return dir, nil
}
