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

// Package schema compiles one JSON Schema validator per known descriptor
// shape when NewRegistry is called and validates descriptors fail-fast
// against them.
package schema

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Registry holds one compiled validator per descriptor schema name.
type Registry struct {
	compiled map[string]*jsonschema.Schema
}

// NewRegistry compiles every (name, rawSchema) pair eagerly so a bad schema
// is caught at startup rather than on first use.
func NewRegistry(schemas map[string]string) (*Registry, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	reg := &Registry{compiled: make(map[string]*jsonschema.Schema, len(schemas))}
	for name, raw := range schemas {
		url := schemaURL(name)
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %q: add resource: %w", name, err)
		}
	}
	for name := range schemas {
		compiled, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("schema %q: compile: %w", name, err)
		}
		reg.compiled[name] = compiled
	}
	return reg, nil
}

func schemaURL(name string) string {
	return fmt.Sprintf("https://dwn-project.local/schemas/%s.schema.json", name)
}

// Validate checks value against the named schema, fail-fast at the first
// error (spec.md §4.2). Unknown names fail with SchemaNotFound.
func (r *Registry) Validate(name string, value any) error {
	s, ok := r.compiled[name]
	if !ok {
		return dwnerrors.Newf(dwnerrors.SchemaNotFound, "no schema registered for %q", name)
	}
	if err := s.Validate(value); err != nil {
		return translateValidationError(name, err)
	}
	return nil
}

// translateValidationError maps the jsonschema library's error tree onto
// the stable taxonomy spec.md §7 requires, reporting only the first
// violation found in a depth-first walk of the causes (fail-fast).
func translateValidationError(name string, err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return dwnerrors.Wrap(dwnerrors.SchemaValidationFailure, err, "schema "+name+" validation failed")
	}
	leaf := firstLeaf(ve)
	msg := leaf.Error()

	switch {
	case strings.Contains(msg, "additionalProperties") || strings.Contains(msg, "additional properties"):
		return dwnerrors.New(dwnerrors.AdditionalPropertyNotAllowed, msg).WithDetails(map[string]any{
			"instancePath": leaf.InstanceLocation,
		})
	case strings.Contains(msg, "unevaluatedProperties") || strings.Contains(msg, "unevaluated properties"):
		return dwnerrors.New(dwnerrors.UnevaluatedPropertyNotAllowed, msg).WithDetails(map[string]any{
			"instancePath": leaf.InstanceLocation,
		})
	default:
		return dwnerrors.Newf(dwnerrors.SchemaValidationFailure, "%s: %s", leaf.InstanceLocation, msg).WithDetails(map[string]any{
			"instancePath": leaf.InstanceLocation,
		})
	}
}

// firstLeaf walks the causes tree depth-first and returns the first
// childless node, the most specific violation reported by the validator.
func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
