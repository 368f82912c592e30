// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/bep/tiffmeta"

	qt "github.com/frankban/quicktest"
)

func TestNewField(t *testing.T) {
	c := qt.New(t)

	tag := tiffmeta.Tag{ID: 1, Name: "Test"}

	for _, test := range []struct {
		dt   tiffmeta.DataType
		want any
	}{
		{tiffmeta.ASCII, &tiffmeta.StringField{}},
		{tiffmeta.UTF8, &tiffmeta.StringField{}},
		{tiffmeta.BYTE, &tiffmeta.ByteArrayField{}},
		{tiffmeta.SBYTE, &tiffmeta.ByteArrayField{}},
		{tiffmeta.UNDEFINED, &tiffmeta.ByteArrayField{}},
		{tiffmeta.SHORT, &tiffmeta.MultiValueField{}},
		{tiffmeta.SRATIONAL, &tiffmeta.MultiValueField{}},
		{tiffmeta.IFD8, &tiffmeta.MultiValueField{}},
		{tiffmeta.DOUBLE, &tiffmeta.MultiValueField{}},
	} {
		f, err := tiffmeta.NewField(tag, test.dt)
		c.Assert(err, qt.IsNil)
		c.Assert(reflect.TypeOf(f), qt.Equals, reflect.TypeOf(test.want))
		c.Assert(f.DataType(), qt.Equals, test.dt)
		c.Assert(f.Tag(), qt.Equals, tag)
	}

	_, err := tiffmeta.NewField(tag, tiffmeta.DataType(14))
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
}

func TestFieldConstructorsValidate(t *testing.T) {
	c := qt.New(t)

	tag := tiffmeta.Tag{ID: 1, Name: "Test"}

	_, err := tiffmeta.NewStringField(tag, tiffmeta.SHORT, "foo")
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
	_, err = tiffmeta.NewByteArrayField(tag, tiffmeta.ASCII, []byte("foo"))
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
	_, err = tiffmeta.NewMultiValueField(tag, tiffmeta.UNDEFINED, uint16(1))
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
	_, err = tiffmeta.NewMultiValueField(tag, tiffmeta.SHORT, uint32(1))
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
	_, err = tiffmeta.NewMultiValueField(tag, tiffmeta.RATIONAL, tiffmeta.NewRat[int32](1, 2))
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)
	_, err = tiffmeta.NewDirectoryField(tag, nil)
	c.Assert(err, qt.ErrorIs, tiffmeta.ErrInvalidField)

	f, err := tiffmeta.NewMultiValueField(tag, tiffmeta.SHORT, uint16(1))
	c.Assert(err, qt.IsNil)
	c.Assert(f.SetValues(uint16(2), "three"), qt.ErrorIs, tiffmeta.ErrInvalidField)
	c.Assert(f.Values(), qt.DeepEquals, []any{uint16(1)})
	c.Assert(f.SetValues(uint16(2), uint16(3)), qt.IsNil)
	c.Assert(f.Values(), qt.DeepEquals, []any{uint16(2), uint16(3)})
	c.Assert(f.FirstValue(), qt.Equals, uint16(2))
	c.Assert(f.Len(), qt.Equals, 2)
}

func TestFieldString(t *testing.T) {
	c := qt.New(t)

	reg := tiffmeta.NewRegistry()

	s, _ := tiffmeta.NewStringField(mustTag(t, reg.Baseline(), tagMake), tiffmeta.ASCII, "Canon")
	c.Assert(s.String(), qt.Equals, "Make: Canon")

	b, _ := tiffmeta.NewByteArrayField(mustTag(t, reg.EXIF(), tagMakerNote), tiffmeta.UNDEFINED, []byte{1, 2, 3})
	c.Assert(b.String(), qt.Equals, "MakerNote: 3 bytes")

	m, _ := tiffmeta.NewMultiValueField(mustTag(t, reg.Baseline(), tagImageWidth), tiffmeta.SHORT, uint16(640))
	c.Assert(m.String(), qt.Equals, "ImageWidth: 640")

	m, _ = tiffmeta.NewMultiValueField(mustTag(t, reg.Baseline(), 0x102), tiffmeta.SHORT, uint16(8), uint16(8), uint16(8))
	c.Assert(m.String(), qt.Equals, "BitsPerSample: [8 8 8]")

	m, _ = tiffmeta.NewMultiValueField(mustTag(t, reg.Baseline(), tagXResolution), tiffmeta.RATIONAL, tiffmeta.NewRat[uint32](72, 1))
	c.Assert(m.String(), qt.Equals, "XResolution: 72")

	d, _ := tiffmeta.NewDirectoryField(mustTag(t, reg.Baseline(), tiffmeta.TagEXIFIFDPointer), tiffmeta.NewDirectory(reg.EXIF()))
	c.Assert(d.String(), qt.Equals, "EXIFIFD <IFD>")
	c.Assert(d.DataType(), qt.Equals, tiffmeta.LONG)
}

func TestFieldEqual(t *testing.T) {
	c := qt.New(t)

	tag := tiffmeta.Tag{ID: 1, Name: "Test"}

	f1, _ := tiffmeta.NewMultiValueField(tag, tiffmeta.DOUBLE, math.NaN(), 1.5)
	f2, _ := tiffmeta.NewMultiValueField(tag, tiffmeta.DOUBLE, math.NaN(), 1.5)
	c.Assert(f1.Equal(f2), qt.IsTrue)

	f3, _ := tiffmeta.NewMultiValueField(tag, tiffmeta.DOUBLE, math.NaN(), 2.5)
	c.Assert(f1.Equal(f3), qt.IsFalse)

	// Same tag and values, different data type.
	s1, _ := tiffmeta.NewStringField(tag, tiffmeta.ASCII, "foo")
	s2, _ := tiffmeta.NewStringField(tag, tiffmeta.UTF8, "foo")
	c.Assert(s1.Equal(s2), qt.IsFalse)
	s2.SetValue("bar")
	c.Assert(s2.Value(), qt.Equals, "bar")

	// Different variants never compare equal.
	b1, _ := tiffmeta.NewByteArrayField(tag, tiffmeta.UNDEFINED, []byte("foo"))
	c.Assert(b1.Equal(s1), qt.IsFalse)
	c.Assert(s1.Equal(b1), qt.IsFalse)

	// Byte fields hold a copy.
	src := []byte("abc")
	b2, _ := tiffmeta.NewByteArrayField(tag, tiffmeta.BYTE, src)
	src[0] = 'x'
	c.Assert(b2.Bytes(), qt.DeepEquals, []byte("abc"))
	got := b2.Bytes()
	got[0] = 'y'
	c.Assert(b2.Bytes(), qt.DeepEquals, []byte("abc"))
}
