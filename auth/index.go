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

package auth

import "github.com/dwn-project/dwn-node/filter"

// Index keys handlers must populate on every persisted message so auth's
// store lookups can find them: every message indexes "interface" and
// "method"; ProtocolsConfigure additionally indexes "protocol";
// Permissions/Revoke additionally indexes "permissionGrantId".
const (
	IndexInterface        = "interface"
	IndexMethod           = "method"
	IndexProtocol         = "protocol"
	IndexPermissionGrantID = "permissionGrantId"
)

func filterByProtocolConfigure(protocolURI string) filter.Disjunction {
	return filter.Disjunction{{
		IndexInterface: filter.Equal{Value: "Protocols"},
		IndexMethod:    filter.Equal{Value: "Configure"},
		IndexProtocol:  filter.Equal{Value: protocolURI},
	}}
}

func filterByRevokedGrant(grantID string) filter.Disjunction {
	return filter.Disjunction{{
		IndexInterface:         filter.Equal{Value: "Permissions"},
		IndexMethod:            filter.Equal{Value: "Revoke"},
		IndexPermissionGrantID: filter.Equal{Value: grantID},
	}}
}
