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

package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/protocol"
)

func buildThreadDefinition() *protocol.Definition {
	reply := &protocol.RuleSet{
		Rules: []protocol.Rule{
			{Action: "write", Who: "author", Of: "thread"},
			{Action: "write", Who: "recipient", Of: "thread"},
			{Action: "read", Who: "author", Of: "thread"},
			{Action: "read", Who: "recipient", Of: "thread"},
		},
	}
	thread := &protocol.RuleSet{
		Rules: []protocol.Rule{
			{Action: "write", Who: "anyone"},
			{Action: "read", Who: "author"},
			{Action: "read", Who: "recipient"},
		},
		Children: map[string]*protocol.RuleSet{
			"reply": reply,
		},
	}
	return &protocol.Definition{
		Protocol:  "https://dwn-project.local/protocols/thread",
		Published: true,
		Structure: map[string]*protocol.RuleSet{
			"thread": thread,
		},
	}
}

func TestResolveRuleSetWalksNestedPath(t *testing.T) {
	def := buildThreadDefinition()

	set, err := protocol.ResolveRuleSet(def, "thread")
	require.NoError(t, err)
	assert.Len(t, set.Rules, 3)

	set, err = protocol.ResolveRuleSet(def, "thread/reply")
	require.NoError(t, err)
	assert.Len(t, set.Rules, 4)
}

func TestResolveRuleSetUnknownTypeErrors(t *testing.T) {
	def := buildThreadDefinition()

	_, err := protocol.ResolveRuleSet(def, "unknown")
	require.Error(t, err)
	assert.Equal(t, dwnerrors.ProtocolRuleDenied, dwnerrors.CodeOf(err))

	_, err = protocol.ResolveRuleSet(def, "thread/unknown")
	require.Error(t, err)
	assert.Equal(t, dwnerrors.ProtocolRuleDenied, dwnerrors.CodeOf(err))

	_, err = protocol.ResolveRuleSet(def, "")
	require.Error(t, err)
}

func TestIsAuthorizedAnyoneMayWriteThread(t *testing.T) {
	def := buildThreadDefinition()
	set, err := protocol.ResolveRuleSet(def, "thread")
	require.NoError(t, err)

	assert.True(t, protocol.IsAuthorized(set, "write", "did:dwn:anyone", nil))
}

func TestIsAuthorizedReplyRequiresThreadParticipant(t *testing.T) {
	def := buildThreadDefinition()
	set, err := protocol.ResolveRuleSet(def, "thread/reply")
	require.NoError(t, err)

	ancestors := []protocol.RecordAncestor{
		{ProtocolPath: "thread", Author: "did:dwn:alice", Recipient: "did:dwn:bob"},
	}

	assert.True(t, protocol.IsAuthorized(set, "write", "did:dwn:alice", ancestors))
	assert.True(t, protocol.IsAuthorized(set, "write", "did:dwn:bob", ancestors))
	assert.False(t, protocol.IsAuthorized(set, "write", "did:dwn:eve", ancestors))
}

func TestIsAuthorizedMissingAncestorDenies(t *testing.T) {
	def := buildThreadDefinition()
	set, err := protocol.ResolveRuleSet(def, "thread/reply")
	require.NoError(t, err)

	assert.False(t, protocol.IsAuthorized(set, "write", "did:dwn:alice", nil))
}
