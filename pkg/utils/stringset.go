// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package utils contains small value types shared by the configuration and API layers.
package utils

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidStringSetValue indicates invalid StringSet definition.
var ErrInvalidStringSetValue = errors.New("invalid string-set value")

// StringSet represents an ordered set of unique, non-blank string values.
type StringSet struct {
	values []string
}

// NewStringSet creates a new StringSet from the given items.
// Surrounding whitespace is trimmed, blank items and duplicates are discarded.
func NewStringSet(items ...string) StringSet {
	set := make(map[string]struct{}, len(items))
	unique := make([]string, 0, len(items))
	for _, v := range items {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, exists := set[v]; !exists {
			unique = append(unique, v)
			set[v] = struct{}{}
		}
	}
	return StringSet{values: unique}
}

// ParseStringSet splits a comma separated list (as given on the command line) into a StringSet.
func ParseStringSet(list string) StringSet {
	return NewStringSet(strings.Split(list, ",")...)
}

// Values returns a copy of the set's values in insertion order.
func (s StringSet) Values() []string {
	return slices.Clone(s.values)
}

// Len returns the number of values in the set.
func (s StringSet) Len() int {
	return len(s.values)
}

// Contains reports whether value is a member of the set.
func (s StringSet) Contains(value string) bool {
	return slices.Contains(s.values, value)
}

// Union returns a new set with the values of s followed by the values of other.
func (s StringSet) Union(other StringSet) StringSet {
	return NewStringSet(append(s.Values(), other.values...)...)
}

func (s StringSet) String() string {
	return strings.Join(s.values, ",")
}

// UnmarshalYAML allows StringSet to be loaded from either a string or a list of strings.
func (s *StringSet) UnmarshalYAML(value *yaml.Node) error {
	var items []string
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStringSetValue, err)
		}
		items = append(items, single)
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStringSetValue, err)
		}
		items = list
	default:
		return fmt.Errorf("%w: must be a string or list of strings", ErrInvalidStringSetValue)
	}
	*s = NewStringSet(items...)
	return nil
}
