// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package tiffmeta

import (
	"fmt"
	"slices"
)

// Tag identifies one field slot in an IFD. Identity is the ID; the name is
// descriptive only.
type Tag struct {
	ID           uint16
	Name         string
	IsIFDPointer bool
}

func (t Tag) String() string {
	if t.Name == "" {
		return fmt.Sprintf("%s0x%04x", UnknownPrefix, t.ID)
	}
	return t.Name
}

// UnknownPrefix is used as prefix for tags without a name.
const UnknownPrefix = "UnknownTag_"

// TagSetKey is the identity of a TagSet.
type TagSetKey struct {
	IFDPointerTagID uint16
	Name            string
}

// TagSet is a mutable, named set of tags valid in one kind of IFD.
//
// Two tag sets are equal when their IFD pointer tag ID and name are equal,
// regardless of the tags they contain.
type TagSet struct {
	ifdPointerTagID uint16
	name            string
	tags            map[uint16]Tag
}

// NewTagSet creates an empty tag set. The baseline (root) tag set uses
// pointer tag ID 0.
func NewTagSet(ifdPointerTagID uint16, name string, tags ...Tag) *TagSet {
	ts := &TagSet{
		ifdPointerTagID: ifdPointerTagID,
		name:            name,
		tags:            make(map[uint16]Tag, len(tags)),
	}
	for _, t := range tags {
		ts.AddTag(t)
	}
	return ts
}

// IFDPointerTagID returns the ID of the tag pointing to IFDs of this set.
func (ts *TagSet) IFDPointerTagID() uint16 {
	return ts.ifdPointerTagID
}

// Name returns the name of the tag set.
func (ts *TagSet) Name() string {
	return ts.name
}

// IsBaseline reports whether this is a root level tag set.
func (ts *TagSet) IsBaseline() bool {
	return ts.ifdPointerTagID == 0
}

// Key returns the identity of ts, usable as a map key.
func (ts *TagSet) Key() TagSetKey {
	return TagSetKey{IFDPointerTagID: ts.ifdPointerTagID, Name: ts.name}
}

// AddTag adds t, keeping an already present tag with the same ID.
func (ts *TagSet) AddTag(t Tag) {
	if _, found := ts.tags[t.ID]; found {
		return
	}
	ts.tags[t.ID] = t
}

// RemoveAllTags clears the set. The identity is unchanged.
func (ts *TagSet) RemoveAllTags() {
	clear(ts.tags)
}

// ContainsTag reports whether a tag with the given ID is in the set.
func (ts *TagSet) ContainsTag(id uint16) bool {
	_, found := ts.tags[id]
	return found
}

// Tag returns the tag with the given ID.
func (ts *TagSet) Tag(id uint16) (Tag, bool) {
	t, found := ts.tags[id]
	return t, found
}

// Tags returns the tags ordered by ascending ID.
func (ts *TagSet) Tags() []Tag {
	tags := make([]Tag, 0, len(ts.tags))
	for _, t := range ts.tags {
		tags = append(tags, t)
	}
	slices.SortFunc(tags, func(a, b Tag) int {
		return int(a.ID) - int(b.ID)
	})
	return tags
}

// Len returns the number of tags.
func (ts *TagSet) Len() int {
	return len(ts.tags)
}

// Merge adds all tags of other not already present in ts.
func (ts *TagSet) Merge(other *TagSet) {
	for _, t := range other.tags {
		ts.AddTag(t)
	}
}

// Clone returns a copy with the same identity and tags.
func (ts *TagSet) Clone() *TagSet {
	c := NewTagSet(ts.ifdPointerTagID, ts.name)
	c.Merge(ts)
	return c
}

// Equal reports whether ts and other have the same identity.
func (ts *TagSet) Equal(other *TagSet) bool {
	if ts == nil || other == nil {
		return ts == other
	}
	return ts.Key() == other.Key()
}

func (ts *TagSet) String() string {
	return fmt.Sprintf("%s (%d tags)", ts.name, len(ts.tags))
}
