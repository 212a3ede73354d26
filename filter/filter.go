// Copyright (C) 2025 dwn-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package filter implements the composable filter grammar shared by store
// queries and event-stream matching: exact, one-of, range and starts-with
// conditions over a flat index map.
package filter

import "strings"

// Condition is one matchable predicate against a single indexed field.
type Condition interface {
	match(value any) bool
}

// Equal matches a scalar field exactly.
type Equal struct{ Value any }

func (c Equal) match(v any) bool { return scalarEqual(v, c.Value) }

// OneOf matches if the field equals any element of Values.
type OneOf struct{ Values []any }

func (c OneOf) match(v any) bool {
	for _, want := range c.Values {
		if scalarEqual(v, want) {
			return true
		}
	}
	return false
}

// Range matches a field within (optionally open) bounds. Gt/Gte are
// mutually exclusive, as are Lt/Lte, per spec.md §4.3.
type Range struct {
	Gt, Gte, Lt, Lte any
}

func (c Range) match(v any) bool {
	if c.Gt != nil && compare(v, c.Gt) <= 0 {
		return false
	}
	if c.Gte != nil && compare(v, c.Gte) < 0 {
		return false
	}
	if c.Lt != nil && compare(v, c.Lt) >= 0 {
		return false
	}
	if c.Lte != nil && compare(v, c.Lte) > 0 {
		return false
	}
	return true
}

// StartsWith matches string fields by prefix.
type StartsWith struct{ Prefix string }

func (c StartsWith) match(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.HasPrefix(s, c.Prefix)
}

// Filter is a conjunction (AND) of field->condition pairs.
type Filter map[string]Condition

// Disjunction is a set of Filters combined with OR, the authoritative
// MessageStore.query form per spec.md §9.
type Disjunction []Filter

// Match reports whether every condition in f matches the given index map.
// A missing field never matches. Equality against an array-valued index
// succeeds if any element matches (spec.md §4.6).
func (f Filter) Match(index map[string]any) bool {
	for field, cond := range f {
		v, ok := index[field]
		if !ok {
			return false
		}
		if !matchField(cond, v) {
			return false
		}
	}
	return true
}

// Match reports whether any filter in the disjunction matches the index.
// An empty disjunction matches everything (no predicate supplied).
func (d Disjunction) Match(index map[string]any) bool {
	if len(d) == 0 {
		return true
	}
	for _, f := range d {
		if f.Match(index) {
			return true
		}
	}
	return false
}

func matchField(cond Condition, v any) bool {
	if arr, ok := v.([]any); ok {
		for _, el := range arr {
			if cond.match(el) {
				return true
			}
		}
		return false
	}
	return cond.match(v)
}

func scalarEqual(a, b any) bool {
	return compare(a, b) == 0
}

// compare orders two scalar values; supports string, bool and the numeric
// kinds that index maps carry (int, int64, float64, uint64).
func compare(a, b any) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case ab:
				return 1
			default:
				return -1
			}
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
