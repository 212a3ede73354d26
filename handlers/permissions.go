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

import (
	"context"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/message"
)

// IndexGrantedTo indexes a PermissionsGrant's grantee, so a grantee can
// list the grants issued to them.
const IndexGrantedTo = "grantedTo"

// PermissionsGrant persists a grant issued by the tenant over their own
// data. Only the tenant may issue a grant against their own store.
func PermissionsGrant(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	author, err := msg.Author()
	if err != nil {
		return errorResult(err), nil
	}
	if author != tenantID {
		return errorResult(dwnerrors.New(dwnerrors.GrantNotGranted, "only the tenant may issue permission grants")), nil
	}

	fields := msg.Descriptor.Fields
	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}
	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := map[string]any{
		IndexInterface:        "Permissions",
		IndexMethod:           "Grant",
		IndexMessageTimestamp: fieldString(fields, "messageTimestamp"),
		IndexGrantedTo:        fieldString(fields, "grantedTo"),
	}
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}
	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.MessageCID = cid
	return result, nil
}

// PermissionsRevoke persists a revocation of an existing grant. Only the
// grantor (the tenant) may revoke, and the named grant must exist.
func PermissionsRevoke(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	author, err := msg.Author()
	if err != nil {
		return errorResult(err), nil
	}
	if author != tenantID {
		return errorResult(dwnerrors.New(dwnerrors.GrantNotGranted, "only the tenant may revoke permission grants")), nil
	}

	fields := msg.Descriptor.Fields
	grantID := fieldString(fields, "permissionGrantId")
	if grantID == "" {
		return errorResult(parseErr("permissionGrantId is required")), nil
	}
	if _, err := deps.Messages.Get(ctx, tenantID, grantID); err != nil {
		return errorResult(notFoundErr("grant %q not found", grantID)), nil
	}

	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}
	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := map[string]any{
		IndexInterface:         "Permissions",
		IndexMethod:            "Revoke",
		IndexMessageTimestamp:  fieldString(fields, "messageTimestamp"),
		IndexPermissionGrantID: grantID,
	}
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}
	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.MessageCID = cid
	return result, nil
}

// PermissionsRequest persists an unsolicited ask for a grant, for the
// tenant to review and answer out of band with a PermissionsGrant; no
// ownership check applies since any DID may ask.
func PermissionsRequest(ctx context.Context, deps *Deps, tenantID string, msg *message.Message) (*Result, error) {
	if err := parseDescriptor(deps, msg); err != nil {
		return errorResult(err), nil
	}
	if err := authenticate(ctx, deps, msg); err != nil {
		return errorResult(err), nil
	}

	fields := msg.Descriptor.Fields
	cid, err := msg.CID()
	if err != nil {
		return errorResult(err), nil
	}
	encoded, err := encodeMessage(msg)
	if err != nil {
		return errorResult(err), nil
	}
	indexes := map[string]any{
		IndexInterface:        "Permissions",
		IndexMethod:           "Request",
		IndexMessageTimestamp: fieldString(fields, "messageTimestamp"),
	}
	if err := deps.Messages.Put(ctx, tenantID, cid, encoded, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "persist failed")), nil
	}
	if _, err := deps.Log.Append(ctx, tenantID, cid, indexes); err != nil {
		return errorResult(dwnerrors.Wrap(dwnerrors.StoreAborted, err, "event log append failed")), nil
	}
	deps.Broker.Emit(tenantID, cid, indexes)

	result := okResult(202)
	result.MessageCID = cid
	return result, nil
}
