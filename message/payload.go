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

package message

import (
	"encoding/json"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

func decodeSignaturePayload(raw []byte) (*SignaturePayload, error) {
	var payload SignaturePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, dwnerrors.Wrap(dwnerrors.SignatureInvalid, err, "malformed signature payload")
	}
	if payload.DescriptorCID == "" {
		return nil, dwnerrors.New(dwnerrors.SignatureInvalid, "signature payload missing descriptorCid")
	}
	return &payload, nil
}
