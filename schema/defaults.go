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

package schema

// DefaultSchemas returns the built-in descriptor schemas for every
// interface/method pair spec.md §4.6 names. Keys match the
// "Interface/Method" descriptor name used by Registry.Validate.
func DefaultSchemas() map[string]string {
	return map[string]string{
		"Records/Write":      recordsWriteSchema,
		"Records/Query":      recordsQuerySchema,
		"Records/Read":       recordsReadSchema,
		"Records/Delete":     recordsDeleteSchema,
		"Records/Subscribe":  recordsSubscribeSchema,
		"Protocols/Configure": protocolsConfigureSchema,
		"Protocols/Query":    protocolsQuerySchema,
		"Permissions/Grant":   permissionsGrantSchema,
		"Permissions/Revoke":  permissionsRevokeSchema,
		"Permissions/Request": permissionsRequestSchema,
		"Events/Query":     eventsQuerySchema,
		"Events/Subscribe": eventsSubscribeSchema,
		"Events/Get":       eventsGetSchema,
		"Messages/Get":       messagesGetSchema,
		"Messages/Query":     messagesQuerySchema,
		"Messages/Subscribe": messagesSubscribeSchema,
	}
}

const descriptorCommon = `
		"interface": {"type": "string"},
		"method": {"type": "string"},
		"messageTimestamp": {"type": "string"}`

const recordsWriteSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "dataFormat"],
	"properties": {` + descriptorCommon + `,
		"recordId": {"type": "string"},
		"parentId": {"type": "string"},
		"protocol": {"type": "string"},
		"protocolPath": {"type": "string"},
		"contextId": {"type": "string"},
		"schema": {"type": "string"},
		"dataFormat": {"type": "string"},
		"dataCid": {"type": "string"},
		"dataSize": {"type": "integer", "minimum": 0},
		"dateCreated": {"type": "string"},
		"datePublished": {"type": "string"},
		"published": {"type": "boolean"},
		"recipient": {"type": "string"}
	},
	"additionalProperties": false
}`

const recordsQuerySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filter"],
	"properties": {` + descriptorCommon + `,
		"filter": {"type": "object"},
		"dateSort": {"type": "string"},
		"pagination": {"type": "object"}
	},
	"additionalProperties": false
}`

const recordsReadSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "recordId"],
	"properties": {` + descriptorCommon + `,
		"recordId": {"type": "string"}
	},
	"additionalProperties": false
}`

const recordsDeleteSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "recordId"],
	"properties": {` + descriptorCommon + `,
		"recordId": {"type": "string"}
	},
	"additionalProperties": false
}`

const recordsSubscribeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filter"],
	"properties": {` + descriptorCommon + `,
		"filter": {"type": "object"}
	},
	"additionalProperties": false
}`

const protocolsConfigureSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "definition"],
	"properties": {` + descriptorCommon + `,
		"definition": {
			"type": "object",
			"required": ["protocol", "types", "structure"],
			"properties": {
				"protocol": {"type": "string"},
				"published": {"type": "boolean"},
				"types": {"type": "object"},
				"structure": {"type": "object"}
			}
		}
	},
	"additionalProperties": false
}`

const protocolsQuerySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp"],
	"properties": {` + descriptorCommon + `,
		"filter": {"type": "object"}
	},
	"additionalProperties": false
}`

const permissionsGrantSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "grantedTo", "scope"],
	"properties": {` + descriptorCommon + `,
		"grantedTo": {"type": "string"},
		"dateExpires": {"type": "string"},
		"conditions": {"type": "object"},
		"scope": {
			"type": "object",
			"required": ["interface", "method"],
			"properties": {
				"interface": {"type": "string"},
				"method": {"type": "string"},
				"protocol": {"type": "string"},
				"protocolPath": {"type": "string"},
				"contextId": {"type": "string"},
				"recordId": {"type": "string"},
				"schema": {"type": "string"}
			}
		}
	},
	"additionalProperties": false
}`

const permissionsRevokeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "permissionGrantId"],
	"properties": {` + descriptorCommon + `,
		"permissionGrantId": {"type": "string"}
	},
	"additionalProperties": false
}`

const permissionsRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "scope"],
	"properties": {` + descriptorCommon + `,
		"scope": {"type": "object"}
	},
	"additionalProperties": false
}`

const eventsQuerySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filters"],
	"properties": {` + descriptorCommon + `,
		"filters": {"type": "array", "items": {"type": "object"}},
		"cursor": {"type": "string"}
	},
	"additionalProperties": false
}`

const eventsSubscribeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filters"],
	"properties": {` + descriptorCommon + `,
		"filters": {"type": "array", "items": {"type": "object"}}
	},
	"additionalProperties": false
}`

const eventsGetSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "messageCid"],
	"properties": {` + descriptorCommon + `,
		"messageCid": {"type": "string"}
	},
	"additionalProperties": false
}`

const messagesGetSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "messageCids"],
	"properties": {` + descriptorCommon + `,
		"messageCids": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

const messagesQuerySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filters"],
	"properties": {` + descriptorCommon + `,
		"filters": {"type": "array", "items": {"type": "object"}},
		"cursor": {"type": "string"}
	},
	"additionalProperties": false
}`

const messagesSubscribeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["interface", "method", "messageTimestamp", "filters"],
	"properties": {` + descriptorCommon + `,
		"filters": {"type": "array", "items": {"type": "object"}}
	},
	"additionalProperties": false
}`
