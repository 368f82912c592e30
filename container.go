// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/image/riff"
)

const (
	markerSOI   = 0xffd8
	markerEOI   = 0xffd9
	markerSOS   = 0xffda
	markerApp1  = 0xffe1
	markerTEM   = 0xff01
	markerRST0  = 0xffd0
	markerRST7  = 0xffd7
	markerFirst = 0xff00
)

var (
	pngSignature  = []byte("\x89PNG\r\n\x1a\n")
	pngEXIFChunk  = []byte("eXIf")
	pngEndChunk   = []byte("IEND")
	riffSignature = []byte("RIFF")

	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccEXIF = riff.FourCC{'E', 'X', 'I', 'F'}
)

// JPEGPayload walks the JPEG segments in r until it finds an APP1 segment
// starting with the "Exif\0\0" marker. The returned reader starts at the
// marker. Scanning stops at the start of scan.
func JPEGPayload(r io.ReadSeeker) (*bytes.Reader, error) {
	s := newStreamReader(r)

	soi, err := s.read2()
	if err != nil || soi != markerSOI {
		return nil, newErrorf(ErrUnrecognizedFormat, "missing JPEG SOI marker")
	}

	for {
		marker, err := s.read2()
		if err != nil {
			return nil, containerErr("JPEG", err)
		}
		if marker == markerSOS || marker == markerEOI {
			return nil, ErrNoPayload
		}
		if marker&markerFirst != markerFirst {
			return nil, newErrorf(ErrUnrecognizedFormat, "invalid JPEG marker 0x%04x", marker)
		}
		if marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7) || marker == 0xffff {
			// No length.
			continue
		}

		// The length includes the 2 bytes for the length itself.
		length, err := s.read2()
		if err != nil {
			return nil, containerErr("JPEG", err)
		}
		if length < 2 {
			return nil, newErrorf(ErrUnrecognizedFormat, "invalid JPEG segment length %d", length)
		}
		length -= 2

		if marker == markerApp1 && int(length) >= len(exifMarker) {
			b, err := s.readBytesVolatile(len(exifMarker))
			if err != nil {
				return nil, containerErr("JPEG", err)
			}
			if bytes.Equal(b, exifMarker) {
				if _, err := r.Seek(-int64(len(exifMarker)), io.SeekCurrent); err != nil {
					return nil, err
				}
				return bufferedReader(r, int64(length))
			}
			// XMP or another APP1 payload.
			length -= uint16(len(exifMarker))
		}

		if _, err := r.Seek(int64(length), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}

// PNGPayload returns the content of the eXIf chunk of the PNG in r.
func PNGPayload(r io.ReadSeeker) (*bytes.Reader, error) {
	s := newStreamReader(r)

	b, err := s.readBytesVolatile(len(pngSignature))
	if err != nil || !bytes.Equal(b, pngSignature) {
		return nil, newErrorf(ErrUnrecognizedFormat, "missing PNG signature")
	}

	for {
		chunkLength, err := s.read4()
		if err != nil {
			return nil, containerErr("PNG", err)
		}
		typ, err := s.readBytesVolatile(4)
		if err != nil {
			return nil, containerErr("PNG", err)
		}
		switch {
		case bytes.Equal(typ, pngEXIFChunk):
			return bufferedReader(r, int64(chunkLength))
		case bytes.Equal(typ, pngEndChunk):
			return nil, ErrNoPayload
		}
		// Skip data and CRC.
		if _, err := r.Seek(int64(chunkLength)+4, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}

// WebPPayload returns the content of the EXIF chunk of the WebP in r.
func WebPPayload(r io.Reader) (*bytes.Reader, error) {
	formType, riffReader, err := riff.NewReader(r)
	if err != nil {
		return nil, newErrorf(ErrUnrecognizedFormat, "%v", err)
	}
	if formType != fccWEBP {
		return nil, newErrorf(ErrUnrecognizedFormat, "RIFF form type %q is not WEBP", formType[:])
	}

	for {
		chunkID, chunkLen, chunkData, err := riffReader.Next()
		if err == io.EOF {
			return nil, ErrNoPayload
		}
		if err != nil {
			return nil, riffErr(err)
		}

		switch chunkID {
		case fccVP8X:
			const exifMetadataBit = 1 << 3
			var buf [10]byte
			if chunkLen != uint32(len(buf)) {
				return nil, newErrorf(ErrUnrecognizedFormat, "invalid VP8X chunk length %d", chunkLen)
			}
			if _, err := io.ReadFull(chunkData, buf[:]); err != nil {
				return nil, riffErr(err)
			}
			if buf[0]&exifMetadataBit == 0 {
				return nil, ErrNoPayload
			}
		case fccEXIF:
			b, err := bufferedReader(chunkData, int64(chunkLen))
			if err != nil {
				return nil, riffErr(err)
			}
			return b, nil
		}
	}
}

// DetectPayload sniffs the container format of r and returns its EXIF
// payload. TIFF data, with or without the "Exif\0\0" marker, is returned
// as is.
func DetectPayload(r io.ReadSeeker) (io.ReadSeeker, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	var head [12]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return nil, newErrorf(ErrUnrecognizedFormat, "empty input")
		}
		return nil, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	b := head[:n]

	switch {
	case len(b) >= 2 && b[0] == 0xff && b[1] == 0xd8:
		return payload(JPEGPayload(r))
	case bytes.HasPrefix(b, pngSignature):
		return payload(PNGPayload(r))
	case bytes.HasPrefix(b, riffSignature) && len(b) >= 12 && bytes.Equal(b[8:12], fccWEBP[:]):
		return payload(WebPPayload(r))
	case isTIFFHeader(b), bytes.HasPrefix(b, exifMarker):
		return r, nil
	}
	return nil, newErrorf(ErrUnrecognizedFormat, "unknown container format")
}

func payload(r *bytes.Reader, err error) (io.ReadSeeker, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func isTIFFHeader(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	switch string(b[:4]) {
	case "II*\x00", "MM\x00*", "II+\x00", "MM\x00+":
		return true
	}
	return false
}

// riffErr reports a broken RIFF structure as an unrecognized format.
func riffErr(err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	return newErrorf(ErrUnrecognizedFormat, "invalid WebP container: %v", err)
}

// containerErr reports a container cut short as an unrecognized format.
func containerErr(format string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errShortRead) {
		return newErrorf(ErrUnrecognizedFormat, "truncated %s container: %v", format, err)
	}
	return err
}
