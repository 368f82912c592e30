// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/bep/tiffmeta"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

var eq = qt.CmpEquals(
	cmp.Comparer(func(x, y tiffmeta.Rat[uint32]) bool {
		return x == y
	}),
	cmp.Comparer(func(x, y tiffmeta.Rat[int32]) bool {
		return x == y
	}),
	cmp.Comparer(func(x, y float64) bool {
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		return x == y
	}),
)

// dirEquals checks that two directory trees are deeply equal.
var dirEquals = qt.CmpEquals(
	cmp.Comparer(func(x, y *tiffmeta.Directory) bool {
		return x.Equal(y)
	}),
)

const (
	tagImageWidth   uint16 = 0x100
	tagImageLength  uint16 = 0x101
	tagMake         uint16 = 0x10f
	tagOrientation  uint16 = 0x112
	tagXResolution  uint16 = 0x11a
	tagSoftware     uint16 = 0x131
	tagXMP          uint16 = 0x2bc
	tagExposureTime uint16 = 0x829a
	tagExifVersion  uint16 = 0x9000
	tagMakerNote    uint16 = 0x927c
	tagGPSLatitude  uint16 = 0x2
	tagUnknown      uint16 = 50000

	// Offsets in the hand built fixture.
	fixtureIFD0Offset   = 8
	fixtureNextOffset   = 82
	fixtureEXIFOffset   = 100
	fixtureExposureTime = 130
)

func mustTag(t testing.TB, ts *tiffmeta.TagSet, id uint16) tiffmeta.Tag {
	t.Helper()
	tag, found := ts.Tag(id)
	if !found {
		t.Fatalf("tag %d not found in %s", id, ts.Name())
	}
	return tag
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// fixtureBuilder writes TIFF structures byte by byte.
type fixtureBuilder struct {
	order binary.ByteOrder
	buf   bytes.Buffer
}

func (b *fixtureBuilder) u16(v uint16) {
	var tmp [2]byte
	b.order.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *fixtureBuilder) u32(v uint32) {
	var tmp [4]byte
	b.order.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *fixtureBuilder) entry(tag, typ uint16, count uint32, value uint32) {
	b.u16(tag)
	b.u16(typ)
	b.u32(count)
	b.u32(value)
}

// inlineEntry writes an entry with the value bytes left justified in the slot.
func (b *fixtureBuilder) inlineEntry(tag, typ uint16, count uint32, value []byte) {
	b.u16(tag)
	b.u16(typ)
	b.u32(count)
	var slot [4]byte
	copy(slot[:], value)
	b.buf.Write(slot[:])
}

func (b *fixtureBuilder) shortSlot(v uint16) []byte {
	var tmp [2]byte
	b.order.PutUint16(tmp[:], v)
	return tmp[:]
}

// newClassicFixture builds a classic TIFF with an IFD0 of five known tags and
// one unknown tag, and an EXIF IFD with two tags:
//
//	0   header
//	8   IFD0, 6 entries, next IFD offset at 82
//	86  "Canon\0", XResolution
//	100 EXIF IFD, 2 entries
//	130 ExposureTime
func newClassicFixture(order binary.ByteOrder) []byte {
	b := &fixtureBuilder{order: order}
	if order == binary.BigEndian {
		b.buf.WriteString("MM")
	} else {
		b.buf.WriteString("II")
	}
	b.u16(42)
	b.u32(fixtureIFD0Offset)

	b.u16(6)
	b.inlineEntry(tagImageWidth, 3, 1, b.shortSlot(640))
	b.entry(tagMake, 2, 6, 86)
	b.inlineEntry(tagOrientation, 3, 1, b.shortSlot(1))
	b.entry(tagXResolution, 5, 1, 92)
	b.entry(tiffmeta.TagEXIFIFDPointer, 4, 1, fixtureEXIFOffset)
	b.inlineEntry(tagUnknown, 3, 1, b.shortSlot(7))
	b.u32(0)

	b.buf.WriteString("Canon\x00")
	b.u32(72)
	b.u32(1)

	b.u16(2)
	b.entry(tagExposureTime, 5, 1, fixtureExposureTime)
	b.inlineEntry(tagExifVersion, 7, 4, []byte("0231"))
	b.u32(0)

	b.u32(1)
	b.u32(200)

	return b.buf.Bytes()
}

// newExpectedFixtureDirectory returns the tree newClassicFixture decodes to.
func newExpectedFixtureDirectory(t testing.TB, reg *tiffmeta.Registry) *tiffmeta.Directory {
	exif := tiffmeta.NewDirectory(reg.EXIF())
	must(t, exif.Add(mustTag(t, reg.EXIF(), tagExposureTime), tiffmeta.RATIONAL, tiffmeta.NewRat[uint32](1, 200)))
	must(t, exif.AddBytes(mustTag(t, reg.EXIF(), tagExifVersion), tiffmeta.UNDEFINED, []byte("0231")))

	root := tiffmeta.NewDirectory(reg.Baseline())
	must(t, root.Add(mustTag(t, reg.Baseline(), tagImageWidth), tiffmeta.SHORT, uint16(640)))
	must(t, root.Add(mustTag(t, reg.Baseline(), tagMake), tiffmeta.ASCII, "Canon"))
	must(t, root.Add(mustTag(t, reg.Baseline(), tagOrientation), tiffmeta.SHORT, uint16(1)))
	must(t, root.Add(mustTag(t, reg.Baseline(), tagXResolution), tiffmeta.RATIONAL, tiffmeta.NewRat[uint32](72, 1)))
	must(t, root.AddDirectory(mustTag(t, reg.Baseline(), tiffmeta.TagEXIFIFDPointer), exif))
	return root
}

// newRichDirectory returns a tree using most data types, with EXIF, GPS and
// Interoperability sub-IFDs.
func newRichDirectory(t testing.TB, reg *tiffmeta.Registry, page int) *tiffmeta.Directory {
	baseline := reg.Baseline()
	exifSet := reg.EXIF()

	interop := tiffmeta.NewDirectory(reg.Interoperability())
	must(t, interop.Add(mustTag(t, reg.Interoperability(), 0x1), tiffmeta.ASCII, "R98"))

	exif := tiffmeta.NewDirectory(exifSet)
	must(t, exif.Add(mustTag(t, exifSet, tagExposureTime), tiffmeta.RATIONAL, tiffmeta.NewRat[uint32](1, 250)))
	must(t, exif.Add(mustTag(t, exifSet, 0x9204), tiffmeta.SRATIONAL, tiffmeta.NewRat[int32](-1, 3)))
	must(t, exif.AddBytes(mustTag(t, exifSet, tagExifVersion), tiffmeta.UNDEFINED, []byte("0232")))
	must(t, exif.AddBytes(mustTag(t, exifSet, tagMakerNote), tiffmeta.UNDEFINED, bytes.Repeat([]byte{0xab}, 33)))
	must(t, exif.Add(mustTag(t, exifSet, 0x9010), tiffmeta.ASCII, "+02:00"))
	must(t, exif.Add(mustTag(t, exifSet, 0xa430), tiffmeta.UTF8, "Bjørn Erik"))
	must(t, exif.Add(mustTag(t, exifSet, 0xa500), tiffmeta.DOUBLE, 2.2))
	must(t, exif.AddDirectory(mustTag(t, exifSet, tiffmeta.TagInteroperabilityIFDPointer), interop))

	gps := tiffmeta.NewDirectory(reg.GPS())
	must(t, gps.AddBytes(mustTag(t, reg.GPS(), 0x0), tiffmeta.BYTE, []byte{2, 3, 0, 0}))
	must(t, gps.Add(mustTag(t, reg.GPS(), 0x1), tiffmeta.ASCII, "N"))
	must(t, gps.Add(mustTag(t, reg.GPS(), tagGPSLatitude), tiffmeta.RATIONAL,
		tiffmeta.NewRat[uint32](36, 1), tiffmeta.NewRat[uint32](43, 1), tiffmeta.NewRat[uint32](1234, 100)))

	root := tiffmeta.NewDirectory(baseline)
	must(t, root.Add(mustTag(t, baseline, tagImageWidth), tiffmeta.LONG, uint32(4000+page)))
	must(t, root.Add(mustTag(t, baseline, tagImageLength), tiffmeta.SHORT, uint16(3000)))
	must(t, root.Add(mustTag(t, baseline, 0x102), tiffmeta.SHORT, uint16(8), uint16(8), uint16(8)))
	must(t, root.Add(mustTag(t, baseline, tagMake), tiffmeta.ASCII, "Fujifilm"))
	must(t, root.Add(mustTag(t, baseline, tagOrientation), tiffmeta.SHORT, uint16(1)))
	must(t, root.Add(mustTag(t, baseline, tagXResolution), tiffmeta.RATIONAL, tiffmeta.NewRat[uint32](300, 1)))
	must(t, root.Add(mustTag(t, baseline, tagSoftware), tiffmeta.ASCII, ""))
	must(t, root.Add(mustTag(t, baseline, 0x118), tiffmeta.SSHORT, int16(-5)))
	must(t, root.Add(mustTag(t, baseline, 0x119), tiffmeta.SLONG, int32(-70000)))
	must(t, root.Add(mustTag(t, baseline, 0x11e), tiffmeta.FLOAT, float32(1.25)))
	must(t, root.Add(mustTag(t, baseline, 0x120), tiffmeta.LONG8, uint64(1)<<40))
	must(t, root.Add(mustTag(t, baseline, 0x121), tiffmeta.SLONG8, int64(-1)<<40))
	must(t, root.Add(mustTag(t, baseline, 0x122), tiffmeta.IFD8, uint64(12)))
	must(t, root.AddBytes(mustTag(t, baseline, 0x154), tiffmeta.SBYTE, []byte{0xff, 0x01}))
	must(t, root.AddDirectory(mustTag(t, baseline, tiffmeta.TagEXIFIFDPointer), exif))
	must(t, root.AddDirectory(mustTag(t, baseline, tiffmeta.TagGPSIFDPointer), gps))
	return root
}

func newReader(r *bytes.Reader, reg *tiffmeta.Registry, warnf func(string, ...any)) *tiffmeta.DirectoryReader {
	return tiffmeta.NewDirectoryReader(tiffmeta.ReaderOptions{
		R:       r,
		TagSets: reg.All(),
		Warnf:   warnf,
	})
}

func encode(t testing.TB, dirs []*tiffmeta.Directory, opts tiffmeta.EncodeOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	must(t, tiffmeta.Encode(&buf, dirs, opts))
	return buf.Bytes()
}
