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

package pgstore

import (
	"sort"

	"github.com/dwn-project/dwn-node/store"
)

// sortAndPaginate orders matched in place per sortBy, CID tiebreak for a
// strict total order.
func sortAndPaginate(matched []store.StoredMessage, sortBy *store.Sort) {
	sort.SliceStable(matched, func(i, j int) bool {
		return lessStoredMessage(matched[i], matched[j], sortBy)
	})
}

func lessStoredMessage(a, b store.StoredMessage, sortBy *store.Sort) bool {
	if sortBy == nil {
		return a.CID < b.CID
	}
	as, aok := a.Indexes[sortBy.Property].(string)
	bs, bok := b.Indexes[sortBy.Property].(string)
	if aok && bok && as != bs {
		if sortBy.Direction == store.Descending {
			return as > bs
		}
		return as < bs
	}
	return a.CID < b.CID
}

func buildQueryResult(matched []store.StoredMessage, page *store.Pagination) *store.QueryResult {
	result := &store.QueryResult{}
	limit := len(matched)
	if page != nil && page.Limit > 0 && page.Limit < limit {
		limit = page.Limit
	}
	result.Messages = matched[:limit]
	if limit < len(matched) {
		result.Cursor = &store.Cursor{MessageCID: matched[limit-1].CID}
	}
	return result
}
