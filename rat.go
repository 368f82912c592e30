// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var (
	_ encoding.TextUnmarshaler = (*Rat[int32])(nil)
	_ encoding.TextMarshaler   = Rat[int32]{}
	_ json.Marshaler           = Rat[uint32]{}
)

// Rat is a RATIONAL (uint32) or SRATIONAL (int32) value.
// Unlike math/big.Rat, the numerator and denominator are kept exactly as
// stored, so a zero denominator or an unreduced fraction survives a round trip.
type Rat[T int32 | uint32] struct {
	Num T
	Den T
}

// NewRat returns a new Rat with the given numerator and denominator.
func NewRat[T int32 | uint32](num, den T) Rat[T] {
	return Rat[T]{Num: num, Den: den}
}

// Float64 returns the float64 representation of the rational number.
// A zero denominator gives ±Inf or NaN.
func (r Rat[T]) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// String returns the string representation of the rational number.
// If the denominator is 1, the string will be the numerator only.
func (r Rat[T]) String() string {
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rat[T]) MarshalText() (text []byte, err error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rat[T]) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.Contains(s, "/") {
		num, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q as a rational number: %w", s, err)
		}
		if int64(T(num)) != num {
			return fmt.Errorf("failed to parse %q as a rational number: %d is out of range", s, num)
		}
		r.Num = T(num)
		r.Den = 1
		return nil
	}
	if _, err := fmt.Sscanf(s, "%d/%d", &r.Num, &r.Den); err != nil {
		return fmt.Errorf("failed to parse %q as a rational number: %w", s, err)
	}
	return nil
}

// MarshalJSON writes the value as a [numerator, denominator] pair.
func (r Rat[T]) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", r.Num, r.Den)), nil
}
