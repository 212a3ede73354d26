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

package auth_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/auth"
	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/protocol"
	"github.com/dwn-project/dwn-node/store/memstore"
)

type ed25519Signer struct {
	kid string
	priv ed25519.PrivateKey
}

func (s ed25519Signer) Kid() string { return s.kid }
func (s ed25519Signer) Alg() string { return "EdDSA" }
func (s ed25519Signer) Sign(data []byte) ([]byte, error) { return ed25519.Sign(s.priv, data), nil }

func newSigner(t *testing.T, did string) ed25519Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub
	return ed25519Signer{kid: did + "#key-1", priv: priv}
}

func buildSigned(t *testing.T, signer ed25519Signer, desc *message.Descriptor, grantID string, delegatedGrant *message.Message) *message.Message {
	t.Helper()
	descCID, err := codec.CID(desc.MarshalCanonical())
	require.NoError(t, err)
	payload := message.SignaturePayload{DescriptorCID: descCID, PermissionGrantID: grantID}
	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)
	jws, err := codec.BuildJWS(payloadBytes, []codec.Signer{signer})
	require.NoError(t, err)
	return &message.Message{
		Descriptor: desc,
		Authorization: &message.Authorization{
			Signature:            jws,
			AuthorDelegatedGrant: delegatedGrant,
		},
	}
}

func putMessage(t *testing.T, ctx context.Context, messages *memstore.MessageStore, tenant string, msg *message.Message, indexes map[string]any) string {
	t.Helper()
	cid, err := msg.CID()
	require.NoError(t, err)
	encoded, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, messages.Put(ctx, tenant, cid, encoded, indexes))
	return cid
}

func TestAuthorizeTenantShortcut(t *testing.T) {
	ctx := context.Background()
	alice := newSigner(t, "did:dwn:alice")
	desc := &message.Descriptor{Interface: "Records", Method: "Write", Fields: map[string]any{}}
	msg := buildSigned(t, alice, desc, "", nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:  "did:dwn:alice",
		Message: msg,
		Action:  "write",
	})
	assert.NoError(t, err)
}

func TestAuthorizeByGrantAdmitsWithinScope(t *testing.T) {
	ctx := context.Background()
	messages := memstore.NewMessageStore()
	alice := newSigner(t, "did:dwn:alice")
	bob := newSigner(t, "did:dwn:bob")

	grantDesc := &message.Descriptor{
		Interface: "Permissions",
		Method:    "Grant",
		Fields: map[string]any{
			"grantedTo": "did:dwn:bob",
			"scope":     map[string]any{"interface": "Records", "method": "Write"},
		},
	}
	grantMsg := buildSigned(t, alice, grantDesc, "", nil)
	grantID := putMessage(t, ctx, messages, "did:dwn:alice", grantMsg, map[string]any{
		auth.IndexInterface: "Permissions", auth.IndexMethod: "Grant",
	})

	desc := &message.Descriptor{Interface: "Records", Method: "Write", Fields: map[string]any{}}
	msg := buildSigned(t, bob, desc, grantID, nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:   "did:dwn:alice",
		Message:  msg,
		Action:   "write",
		Messages: messages,
	})
	assert.NoError(t, err)
}

func TestAuthorizeByGrantRejectsWrongGrantee(t *testing.T) {
	ctx := context.Background()
	messages := memstore.NewMessageStore()
	alice := newSigner(t, "did:dwn:alice")
	eve := newSigner(t, "did:dwn:eve")

	grantDesc := &message.Descriptor{
		Interface: "Permissions",
		Method:    "Grant",
		Fields: map[string]any{
			"grantedTo": "did:dwn:bob",
			"scope":     map[string]any{"interface": "Records", "method": "Write"},
		},
	}
	grantMsg := buildSigned(t, alice, grantDesc, "", nil)
	grantID := putMessage(t, ctx, messages, "did:dwn:alice", grantMsg, map[string]any{
		auth.IndexInterface: "Permissions", auth.IndexMethod: "Grant",
	})

	desc := &message.Descriptor{Interface: "Records", Method: "Write", Fields: map[string]any{}}
	msg := buildSigned(t, eve, desc, grantID, nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:   "did:dwn:alice",
		Message:  msg,
		Action:   "write",
		Messages: messages,
	})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.GrantNotGrantedToAuthor, dwnerrors.CodeOf(err))
}

func TestAuthorizeByGrantRejectsRevoked(t *testing.T) {
	ctx := context.Background()
	messages := memstore.NewMessageStore()
	alice := newSigner(t, "did:dwn:alice")
	bob := newSigner(t, "did:dwn:bob")

	grantDesc := &message.Descriptor{
		Interface: "Permissions",
		Method:    "Grant",
		Fields: map[string]any{
			"grantedTo": "did:dwn:bob",
			"scope":     map[string]any{"interface": "Records", "method": "Write"},
		},
	}
	grantMsg := buildSigned(t, alice, grantDesc, "", nil)
	grantID := putMessage(t, ctx, messages, "did:dwn:alice", grantMsg, map[string]any{
		auth.IndexInterface: "Permissions", auth.IndexMethod: "Grant",
	})

	revokeDesc := &message.Descriptor{
		Interface: "Permissions",
		Method:    "Revoke",
		Fields:    map[string]any{"permissionGrantId": grantID},
	}
	revokeMsg := buildSigned(t, alice, revokeDesc, "", nil)
	putMessage(t, ctx, messages, "did:dwn:alice", revokeMsg, map[string]any{
		auth.IndexInterface: "Permissions", auth.IndexMethod: "Revoke", auth.IndexPermissionGrantID: grantID,
	})

	desc := &message.Descriptor{Interface: "Records", Method: "Write", Fields: map[string]any{}}
	msg := buildSigned(t, bob, desc, grantID, nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:   "did:dwn:alice",
		Message:  msg,
		Action:   "write",
		Messages: messages,
	})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.GrantRevoked, dwnerrors.CodeOf(err))
}

func TestAuthorizeByProtocolRuleAnyoneMayWrite(t *testing.T) {
	ctx := context.Background()
	messages := memstore.NewMessageStore()
	alice := newSigner(t, "did:dwn:alice")
	bob := newSigner(t, "did:dwn:bob")

	definition := map[string]any{
		"protocol":  "https://dwn-project.local/protocols/thread",
		"published": true,
		"structure": map[string]any{
			"thread": map[string]any{
				"$actions": []protocol.Rule{{Action: "write", Who: "anyone"}},
			},
		},
	}
	configureDesc := &message.Descriptor{
		Interface: "Protocols",
		Method:    "Configure",
		Fields:    map[string]any{"definition": definition},
	}
	configureMsg := buildSigned(t, alice, configureDesc, "", nil)
	putMessage(t, ctx, messages, "did:dwn:alice", configureMsg, map[string]any{
		auth.IndexInterface: "Protocols", auth.IndexMethod: "Configure",
		auth.IndexProtocol: "https://dwn-project.local/protocols/thread",
	})

	desc := &message.Descriptor{
		Interface: "Records",
		Method:    "Write",
		Fields:    map[string]any{"protocol": "https://dwn-project.local/protocols/thread"},
	}
	msg := buildSigned(t, bob, desc, "", nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:   "did:dwn:alice",
		Message:  msg,
		Action:   "write",
		Record:   auth.RecordContext{ProtocolPath: "thread"},
		Messages: messages,
	})
	assert.NoError(t, err)
}

func TestAuthorizeByProtocolRuleDeniesWithoutMatch(t *testing.T) {
	ctx := context.Background()
	messages := memstore.NewMessageStore()
	alice := newSigner(t, "did:dwn:alice")
	eve := newSigner(t, "did:dwn:eve")

	definition := map[string]any{
		"protocol":  "https://dwn-project.local/protocols/thread",
		"published": true,
		"structure": map[string]any{
			"thread": map[string]any{
				"$actions": []protocol.Rule{{Action: "write", Who: "author", Of: "thread"}},
			},
		},
	}
	configureDesc := &message.Descriptor{
		Interface: "Protocols",
		Method:    "Configure",
		Fields:    map[string]any{"definition": definition},
	}
	configureMsg := buildSigned(t, alice, configureDesc, "", nil)
	putMessage(t, ctx, messages, "did:dwn:alice", configureMsg, map[string]any{
		auth.IndexInterface: "Protocols", auth.IndexMethod: "Configure",
		auth.IndexProtocol: "https://dwn-project.local/protocols/thread",
	})

	desc := &message.Descriptor{
		Interface: "Records",
		Method:    "Write",
		Fields:    map[string]any{"protocol": "https://dwn-project.local/protocols/thread"},
	}
	msg := buildSigned(t, eve, desc, "", nil)

	err := auth.Authorize(ctx, &auth.Request{
		Tenant:   "did:dwn:alice",
		Message:  msg,
		Action:   "write",
		Record:   auth.RecordContext{ProtocolPath: "thread"},
		Messages: messages,
	})
	require.Error(t, err)
	assert.Equal(t, dwnerrors.ProtocolRuleDenied, dwnerrors.CodeOf(err))
}
