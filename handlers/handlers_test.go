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

package handlers_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/codec"
	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/eventstream"
	"github.com/dwn-project/dwn-node/handlers"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/schema"
	"github.com/dwn-project/dwn-node/store/memstore"
	"github.com/dwn-project/dwn-node/tenant"
)

// ed25519Signer adapts a raw key pair to codec.Signer, the same shape
// crypto.KeyPair's own adapter produces.
type ed25519Signer struct {
	kid  string
	priv ed25519.PrivateKey
}

func (s ed25519Signer) Kid() string                         { return s.kid }
func (s ed25519Signer) Alg() string                          { return "EdDSA" }
func (s ed25519Signer) Sign(data []byte) ([]byte, error)     { return ed25519.Sign(s.priv, data), nil }

// testResolver resolves exactly the identities registered with it, the
// in-memory shape a live did.CachingResolver wraps in production.
type testResolver struct {
	docs map[string]*did.Document
}

func newTestResolver() *testResolver { return &testResolver{docs: make(map[string]*did.Document)} }

func (r *testResolver) Resolve(ctx context.Context, id string) (*did.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, assertNotFound{id}
	}
	return doc, nil
}

type assertNotFound struct{ id string }

func (e assertNotFound) Error() string { return "did not registered: " + e.id }

func newIdentity(t *testing.T, resolver *testResolver, id string) ed25519Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kid := id + "#key-1"
	resolver.docs[id] = &did.Document{
		ID: id,
		VerificationMethod: []did.VerificationMethod{{
			ID:         kid,
			Type:       "JsonWebKey2020",
			Controller: id,
			PublicKeyJWK: &did.PublicKeyJWK{
				Kty: "OKP",
				Crv: "Ed25519",
				X:   base64.RawURLEncoding.EncodeToString(pub),
			},
		}},
	}
	return ed25519Signer{kid: kid, priv: priv}
}

func buildSigned(t *testing.T, signer ed25519Signer, desc *message.Descriptor, grantID string) *message.Message {
	t.Helper()
	descCID, err := codec.CID(desc.MarshalCanonical())
	require.NoError(t, err)
	payload := message.SignaturePayload{DescriptorCID: descCID, PermissionGrantID: grantID}
	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)
	jws, err := codec.BuildJWS(payloadBytes, []codec.Signer{signer})
	require.NoError(t, err)
	return &message.Message{
		Descriptor:    desc,
		Authorization: &message.Authorization{Signature: jws},
	}
}

func newTestDeps(t *testing.T, resolver *testResolver) *handlers.Deps {
	t.Helper()
	reg, err := schema.NewRegistry(schema.DefaultSchemas())
	require.NoError(t, err)
	return &handlers.Deps{
		Schemas:       reg,
		Messages:      memstore.NewMessageStore(),
		Data:          memstore.NewDataStore(),
		Log:           memstore.NewEventLog(),
		Resolver:      resolver,
		Broker:        eventstream.New(),
		Tenants:       tenant.NewLocks(0, 0),
		Subscriptions: handlers.NewSubscriptionRegistry(),
	}
}

func writeDescriptor(fields map[string]any) *message.Descriptor {
	base := map[string]any{"dataFormat": "application/json"}
	for k, v := range fields {
		base[k] = v
	}
	return &message.Descriptor{Interface: "Records", Method: "Write", Fields: base}
}

func TestRecordsWriteThenRead(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")

	writeMsg := buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:00.000000Z",
		"published":        true,
	}), "")

	registry := handlers.NewRegistry()
	writeResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", writeMsg)
	require.NoError(t, err)
	require.Equal(t, 202, writeResult.Status.Code)
	require.NotEmpty(t, writeResult.RecordID)

	readMsg := buildSigned(t, alice, &message.Descriptor{
		Interface: "Records", Method: "Read",
		Fields: map[string]any{
			"messageTimestamp": "2026-01-01T00:00:01.000000Z",
			"recordId":         writeResult.RecordID,
		},
	}, "")
	readResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", readMsg)
	require.NoError(t, err)
	assert.Equal(t, 200, readResult.Status.Code)
	require.Len(t, readResult.Entries, 1)
	assert.Equal(t, writeResult.MessageCID, readResult.Entries[0].CID)
}

func TestRecordsWriteRejectsOlderOverwrite(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")
	registry := handlers.NewRegistry()

	initial := buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:05.000000Z",
	}), "")
	initialResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", initial)
	require.NoError(t, err)
	require.Equal(t, 202, initialResult.Status.Code)

	stale := buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:01.000000Z",
		"recordId":         initialResult.RecordID,
	}), "")
	staleResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", stale)
	require.NoError(t, err)
	assert.Equal(t, 409, staleResult.Status.Code)
}

func TestRecordsReadDeniesNonOwnerOfUnpublishedRecord(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")
	registry := handlers.NewRegistry()

	writeMsg := buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:00.000000Z",
		"published":        false,
	}), "")
	writeResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", writeMsg)
	require.NoError(t, err)
	require.Equal(t, 202, writeResult.Status.Code)

	bob := newIdentity(t, resolver, "did:dwn:bob")
	readMsg := buildSigned(t, bob, &message.Descriptor{
		Interface: "Records", Method: "Read",
		Fields: map[string]any{
			"messageTimestamp": "2026-01-01T00:00:02.000000Z",
			"recordId":         writeResult.RecordID,
		},
	}, "")
	readResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", readMsg)
	require.NoError(t, err)
	assert.Equal(t, 401, readResult.Status.Code)
}

func TestRecordsDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")
	registry := handlers.NewRegistry()

	writeMsg := buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:00.000000Z",
	}), "")
	writeResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", writeMsg)
	require.NoError(t, err)

	deleteDesc := func(ts string) *message.Descriptor {
		return &message.Descriptor{
			Interface: "Records", Method: "Delete",
			Fields: map[string]any{"messageTimestamp": ts, "recordId": writeResult.RecordID},
		}
	}
	first, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, deleteDesc("2026-01-01T00:01:00.000000Z"), ""))
	require.NoError(t, err)
	assert.Equal(t, 202, first.Status.Code)

	second, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, deleteDesc("2026-01-01T00:02:00.000000Z"), ""))
	require.NoError(t, err)
	assert.Equal(t, 202, second.Status.Code)
	assert.Equal(t, first.MessageCID, second.MessageCID)

	readResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, &message.Descriptor{
		Interface: "Records", Method: "Read",
		Fields: map[string]any{"messageTimestamp": "2026-01-01T00:03:00.000000Z", "recordId": writeResult.RecordID},
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, 404, readResult.Status.Code)
}

func TestProtocolsConfigureSupersedesOlder(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")
	registry := handlers.NewRegistry()

	definition := map[string]any{
		"protocol":  "https://dwn-project.local/protocols/thread",
		"published": true,
		"types":     map[string]any{},
		"structure": map[string]any{},
	}
	configureDesc := func(ts string) *message.Descriptor {
		return &message.Descriptor{
			Interface: "Protocols", Method: "Configure",
			Fields: map[string]any{"messageTimestamp": ts, "definition": definition},
		}
	}

	first, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, configureDesc("2026-01-01T00:00:00.000000Z"), ""))
	require.NoError(t, err)
	assert.Equal(t, 202, first.Status.Code)

	older, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, configureDesc("2025-12-31T00:00:00.000000Z"), ""))
	require.NoError(t, err)
	assert.Equal(t, 409, older.Status.Code)

	newer, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, configureDesc("2026-01-02T00:00:00.000000Z"), ""))
	require.NoError(t, err)
	assert.Equal(t, 202, newer.Status.Code)

	queryResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, &message.Descriptor{
		Interface: "Protocols", Method: "Query",
		Fields: map[string]any{"messageTimestamp": "2026-01-02T00:00:01.000000Z"},
	}, ""))
	require.NoError(t, err)
	require.Len(t, queryResult.Entries, 1)
	assert.Equal(t, newer.MessageCID, queryResult.Entries[0].CID)
}

func TestRecordsSubscribeDeliversEmittedWrite(t *testing.T) {
	ctx := context.Background()
	resolver := newTestResolver()
	deps := newTestDeps(t, resolver)
	alice := newIdentity(t, resolver, "did:dwn:alice")
	registry := handlers.NewRegistry()

	subResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, &message.Descriptor{
		Interface: "Records", Method: "Subscribe",
		Fields: map[string]any{"messageTimestamp": "2026-01-01T00:00:00.000000Z", "filter": map[string]any{}},
	}, ""))
	require.NoError(t, err)
	require.Equal(t, 200, subResult.Status.Code)

	sub, ok := deps.Subscriptions.Get(subResult.SubscriptionID)
	require.True(t, ok)

	delivered := make(chan string, 1)
	off := sub.On(func(tenant string, messageCID string, indexes map[string]any) {
		delivered <- messageCID
	})
	defer off()

	writeResult, err := registry.Dispatch(ctx, deps, "did:dwn:alice", buildSigned(t, alice, writeDescriptor(map[string]any{
		"messageTimestamp": "2026-01-01T00:00:01.000000Z",
	}), ""))
	require.NoError(t, err)

	select {
	case cid := <-delivered:
		assert.Equal(t, writeResult.MessageCID, cid)
	default:
		t.Fatal("expected subscription to receive the write emission synchronously")
	}
}
