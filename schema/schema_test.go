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

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(schema.DefaultSchemas())
	require.NoError(t, err)
	return reg
}

func TestValidateRecordsWriteAccepts(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Validate("Records/Write", map[string]any{
		"interface":        "Records",
		"method":           "Write",
		"messageTimestamp": "2025-01-01T00:00:00.000000Z",
		"dataFormat":       "text/plain",
		"dataCid":          "bafyabc",
		"dataSize":         float64(5),
	})
	assert.NoError(t, err)
}

func TestValidateRejectsAdditionalProperty(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Validate("Records/Write", map[string]any{
		"interface":        "Records",
		"method":           "Write",
		"messageTimestamp": "2025-01-01T00:00:00.000000Z",
		"dataFormat":       "text/plain",
		"notAField":        true,
	})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.AdditionalPropertyNotAllowed, dwnerrors.CodeOf(err))
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Validate("Records/Write", map[string]any{
		"interface": "Records",
		"method":    "Write",
	})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.SchemaValidationFailure, dwnerrors.CodeOf(err))
}

func TestValidateUnknownSchemaName(t *testing.T) {
	reg := newRegistry(t)
	err := reg.Validate("Records/DoesNotExist", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.SchemaNotFound, dwnerrors.CodeOf(err))
}
