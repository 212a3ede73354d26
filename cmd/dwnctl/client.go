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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dwn-project/dwn-node/codec"
	dwncrypto "github.com/dwn-project/dwn-node/crypto"
	"github.com/dwn-project/dwn-node/message"
)

// signDescriptor wraps desc in a Message, signed by kp under kid, the
// shape a node's dispatch endpoint expects as a POST body.
func signDescriptor(desc *message.Descriptor, kid string, kp dwncrypto.KeyPair) (*message.Message, error) {
	descriptorCID, err := codec.CID(desc.MarshalCanonical())
	if err != nil {
		return nil, fmt.Errorf("compute descriptor CID: %w", err)
	}
	payload, err := json.Marshal(message.SignaturePayload{DescriptorCID: descriptorCID})
	if err != nil {
		return nil, fmt.Errorf("marshal signature payload: %w", err)
	}
	jws, err := codec.BuildJWS(payload, []codec.Signer{dwncrypto.NewSigner(kid, kp)})
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return &message.Message{
		Descriptor:    desc,
		Authorization: &message.Authorization{Signature: jws},
	}, nil
}

// postMessage submits msg to server's dispatch endpoint for tenantID and
// returns the raw decoded response body.
func postMessage(server, tenantID string, msg *message.Message) (map[string]any, int, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/tenants/%s/dwn", server, tenantID)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("post to %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return decoded, resp.StatusCode, nil
}
