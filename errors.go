// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMisconfigured signals a programmer error: no source, no tag sets,
	// no baseline tag set, or a reader used for a second traversal.
	ErrMisconfigured = errors.New("tiffmeta: misconfigured")

	// ErrUnrecognizedFormat signals that the byte order marker or the magic
	// number does not match any TIFF family signature.
	ErrUnrecognizedFormat = errors.New("tiffmeta: unrecognized format")

	// ErrTruncated signals an invalid, out of range or cyclic offset, or a
	// structure that would require reading past the end of the stream.
	ErrTruncated = errors.New("tiffmeta: truncated or corrupt structure")

	// ErrMalformed signals a structural document that cannot be turned into
	// a Directory tree.
	ErrMalformed = errors.New("tiffmeta: malformed serialized input")

	// ErrExhausted is returned by DirectoryIterator.Next when there are no
	// more directories.
	ErrExhausted = errors.New("tiffmeta: iterator exhausted")

	// ErrDecode signals a value that could not be decoded for its data type.
	ErrDecode = errors.New("tiffmeta: decode error")

	// ErrInvalidField signals a field that does not fit its directory,
	// tag set or data type.
	ErrInvalidField = errors.New("tiffmeta: invalid field")

	// ErrNoPayload is returned by the container locators when the container
	// is valid but carries no EXIF payload.
	ErrNoPayload = errors.New("tiffmeta: no EXIF payload")
)

// ErrorKind is the kind of an error returned from this package.
type ErrorKind int

const (
	// KindUnknown is any error not created by this package, e.g. a network
	// failure in the underlying stream.
	KindUnknown ErrorKind = iota
	KindMisconfigured
	KindUnrecognizedFormat
	KindTruncated
	KindMalformed
	KindExhausted
	KindDecode
	KindInvalidField
	KindNoPayload
)

var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{KindMisconfigured, ErrMisconfigured},
	{KindUnrecognizedFormat, ErrUnrecognizedFormat},
	{KindTruncated, ErrTruncated},
	{KindMalformed, ErrMalformed},
	{KindExhausted, ErrExhausted},
	{KindDecode, ErrDecode},
	{KindInvalidField, ErrInvalidField},
	{KindNoPayload, ErrNoPayload},
}

// KindOf returns the kind of err, so callers can switch on recovery policy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindUnknown
}

func (k ErrorKind) String() string {
	switch k {
	case KindMisconfigured:
		return "Misconfigured"
	case KindUnrecognizedFormat:
		return "UnrecognizedFormat"
	case KindTruncated:
		return "Truncated"
	case KindMalformed:
		return "Malformed"
	case KindExhausted:
		return "Exhausted"
	case KindDecode:
		return "Decode"
	case KindInvalidField:
		return "InvalidField"
	case KindNoPayload:
		return "NoPayload"
	default:
		return "Unknown"
	}
}

// IsMisconfigured reports whether err is or wraps ErrMisconfigured.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrMisconfigured)
}

// IsUnrecognizedFormat reports whether err is or wraps ErrUnrecognizedFormat.
func IsUnrecognizedFormat(err error) bool {
	return errors.Is(err, ErrUnrecognizedFormat)
}

// IsTruncated reports whether err is or wraps ErrTruncated.
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncated)
}

// IsMalformed reports whether err is or wraps ErrMalformed.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

// IsExhausted reports whether err is or wraps ErrExhausted.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

func newErrorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// wrapReadErr turns short reads into ErrTruncated and leaves other I/O
// errors alone (they are the stream's business, not ours).
func wrapReadErr(err error, what string, offset int64) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || errors.Is(err, errShortRead) {
		return fmt.Errorf("%w: reading %s at offset %d: %v", ErrTruncated, what, offset, err)
	}
	return fmt.Errorf("tiffmeta: reading %s at offset %d: %w", what, offset, err)
}
