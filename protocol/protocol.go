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

// Package protocol evaluates the action/who rules a ProtocolsConfigure
// definition attaches to each record type in its structure tree.
package protocol

import (
	"encoding/json"
	"strings"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Rule is one action's permission clause: who may perform it.
type Rule struct {
	Action string `json:"action"`
	Who    string `json:"who"` // "anyone", "author", "recipient"
	Of     string `json:"of"`  // protocolPath of the ancestor "author of"/"recipient of" refers to; the record acted on is not itself an ancestor, so an empty Of matches only an ancestor with an empty protocolPath
}

// RuleSet is the node of a protocol's structure tree reached by walking
// protocolPath: the actions permitted on records of this type. On the wire
// a ruleset is one JSON object whose "$actions" key holds the rule list and
// whose every other key names a nested child type, e.g.
// {"$actions": [...], "reply": {"$actions": [...]}}.
type RuleSet struct {
	Rules    []Rule
	Children map[string]*RuleSet
}

// MarshalJSON flattens Rules under "$actions" alongside each child keyed by
// its type name.
func (r RuleSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Children)+1)
	out["$actions"] = r.Rules
	for name, child := range r.Children {
		out[name] = child
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the "$actions" key from every other key, the latter
// becoming nested children.
func (r *RuleSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if actions, ok := raw["$actions"]; ok {
		if err := json.Unmarshal(actions, &r.Rules); err != nil {
			return err
		}
		delete(raw, "$actions")
	}
	if len(raw) == 0 {
		return nil
	}
	r.Children = make(map[string]*RuleSet, len(raw))
	for name, child := range raw {
		var set RuleSet
		if err := json.Unmarshal(child, &set); err != nil {
			return err
		}
		r.Children[name] = &set
	}
	return nil
}

// Definition is a ProtocolsConfigure descriptor's `definition` field.
type Definition struct {
	Protocol  string               `json:"protocol"`
	Published bool                 `json:"published"`
	Types     map[string]any       `json:"types"`
	Structure map[string]*RuleSet  `json:"structure"`
}

// RecordAncestor is one link in the chain climbed via parentId to
// establish the actor's relationship ("author of"/"recipient of") with an
// ancestor record.
type RecordAncestor struct {
	ProtocolPath string
	Author       string
	Recipient    string
}

// ResolveRuleSet walks definition.Structure along protocolPath (a
// '/'-joined chain of record type names) to the ruleset governing records
// of that type (spec.md §4.4).
func ResolveRuleSet(def *Definition, protocolPath string) (*RuleSet, error) {
	segments := strings.Split(protocolPath, "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, dwnerrors.New(dwnerrors.ProtocolRuleDenied, "empty protocolPath")
	}

	set, ok := def.Structure[segments[0]]
	if !ok {
		return nil, dwnerrors.Newf(dwnerrors.ProtocolRuleDenied, "no structure entry for type %q", segments[0])
	}
	for _, seg := range segments[1:] {
		child, ok := set.Children[seg]
		if !ok {
			return nil, dwnerrors.Newf(dwnerrors.ProtocolRuleDenied, "no structure entry for type %q", seg)
		}
		set = child
	}
	return set, nil
}

// IsAuthorized reports whether actor may perform action against a record
// whose ancestors (ordered root-first, reachable by climbing parentId) are
// ancestors. At least one rule for action must admit the actor
// (spec.md §4.4).
func IsAuthorized(set *RuleSet, action string, actor string, ancestors []RecordAncestor) bool {
	for _, rule := range set.Rules {
		if rule.Action != action {
			continue
		}
		if ruleAdmits(rule, actor, ancestors) {
			return true
		}
	}
	return false
}

func ruleAdmits(rule Rule, actor string, ancestors []RecordAncestor) bool {
	switch rule.Who {
	case "anyone":
		return true
	case "author":
		ancestor := findAncestor(ancestors, rule.Of)
		return ancestor != nil && ancestor.Author == actor
	case "recipient":
		ancestor := findAncestor(ancestors, rule.Of)
		return ancestor != nil && ancestor.Recipient == actor
	default:
		return false
	}
}

func findAncestor(ancestors []RecordAncestor, protocolPath string) *RecordAncestor {
	for i := range ancestors {
		if ancestors[i].ProtocolPath == protocolPath {
			return &ancestors[i]
		}
	}
	return nil
}
