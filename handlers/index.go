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

package handlers

import "github.com/dwn-project/dwn-node/auth"

// Index keys every persisted message's flat index map is built from.
// IndexInterface/IndexMethod/IndexProtocol/IndexPermissionGrantID are
// auth's own constants, reused directly so store lookups auth performs
// against handler-persisted messages agree on field names.
const (
	IndexInterface        = auth.IndexInterface
	IndexMethod           = auth.IndexMethod
	IndexProtocol         = auth.IndexProtocol
	IndexPermissionGrantID = auth.IndexPermissionGrantID

	IndexRecordID          = "recordId"
	IndexParentID          = "parentId"
	IndexProtocolPath      = "protocolPath"
	IndexContextID         = "contextId"
	IndexSchema            = "schema"
	IndexPublished         = "published"
	IndexRecipient         = "recipient"
	IndexDataCID           = "dataCid"
	IndexDataFormat        = "dataFormat"
	IndexMessageTimestamp  = "messageTimestamp"
	IndexIsInitialWrite    = "isInitialWrite"
	IndexRecordAction      = "recordsAction"
)

const (
	recordActionWrite  = "write"
	recordActionDelete = "delete"
)
