// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/bep/tiffmeta"
)

func FuzzReadDirectories(f *testing.F) {
	reg := tiffmeta.NewRegistry()
	pages := []*tiffmeta.Directory{newRichDirectory(f, reg, 0), newRichDirectory(f, reg, 1)}

	f.Add(newClassicFixture(binary.LittleEndian))
	f.Add(newClassicFixture(binary.BigEndian))
	f.Add(encode(f, pages, tiffmeta.EncodeOptions{}))
	f.Add(encode(f, pages, tiffmeta.EncodeOptions{BigTIFF: true, ByteOrder: binary.BigEndian}))
	f.Add(encode(f, pages, tiffmeta.EncodeOptions{EXIFHeader: true}))

	f.Fuzz(func(t *testing.T, b []byte) {
		fuzzReadBytes(t, b)
	})
}

func FuzzDetectPayload(f *testing.F) {
	tiff := newClassicFixture(binary.LittleEndian)

	f.Add(newJPEG(tiff))
	f.Add(newPNG(tiff))
	f.Add(newWebP(tiff, true))

	f.Fuzz(func(t *testing.T, b []byte) {
		fuzzReadBytes(t, b)
	})
}

func FuzzDecodeDocument(f *testing.F) {
	reg := tiffmeta.NewRegistry()
	for _, d := range []*tiffmeta.Directory{newRichDirectory(f, reg, 0), newExpectedFixtureDirectory(f, reg)} {
		b, err := json.Marshal(d)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(b)
	}

	dec := tiffmeta.NewDirectoryDecoder(reg.All()...)

	f.Fuzz(func(t *testing.T, b []byte) {
		d, err := dec.Decode(b)
		if err != nil {
			if !tiffmeta.IsMalformed(err) {
				t.Fatalf("unknown error in Decode: %v %T", err, err)
			}
			return
		}
		// Whatever decodes must survive another round trip.
		b2, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("failed to marshal decoded directory: %v", err)
		}
		d2, err := dec.Decode(b2)
		if err != nil {
			t.Fatalf("failed to decode marshaled directory: %v", err)
		}
		if !d.Equal(d2) {
			t.Fatalf("round trip mismatch:\n%s\n%s", d, d2)
		}
	})
}

func fuzzReadBytes(t *testing.T, b []byte) {
	payload, err := tiffmeta.DetectPayload(bytes.NewReader(b))
	if err != nil {
		if tiffmeta.KindOf(err) == tiffmeta.KindUnknown {
			t.Fatalf("unknown error in DetectPayload: %v %T", err, err)
		}
		return
	}

	r := tiffmeta.NewDirectoryReader(tiffmeta.ReaderOptions{
		R:               payload,
		TagSets:         tiffmeta.NewRegistry().All(),
		LimitNumEntries: 1000,
		Warnf:           func(string, ...any) {},
	})
	if _, err := r.ReadAll(); err != nil {
		if tiffmeta.KindOf(err) == tiffmeta.KindUnknown {
			t.Fatalf("unknown error in ReadAll: %v %T", err, err)
		}
	}
}
