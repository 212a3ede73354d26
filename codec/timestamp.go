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

package codec

import (
	"strings"
	"time"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// timestampLayout is the strict, microsecond-precision UTC ISO-8601 shape
// required by spec.md §3: YYYY-MM-DDTHH:MM:SS.ffffffZ, exactly 6 fractional
// digits, Z suffix.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the current time formatted per the messageTimestamp invariant.
func Now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// ValidateTimestamp enforces the exact shape of the invariant; anything
// else (missing fractional digits, non-UTC offset, extra precision) fails
// with TimestampInvalid.
func ValidateTimestamp(s string) error {
	if len(s) != len(timestampLayout) {
		return dwnerrors.Newf(dwnerrors.TimestampInvalid, "timestamp %q: expected length %d, got %d", s, len(timestampLayout), len(s))
	}
	if !strings.HasSuffix(s, "Z") {
		return dwnerrors.Newf(dwnerrors.TimestampInvalid, "timestamp %q: missing Z suffix", s)
	}
	dot := strings.IndexByte(s, '.')
	if dot < 0 || len(s)-dot-1 != 7 { // 6 digits + "Z"
		return dwnerrors.Newf(dwnerrors.TimestampInvalid, "timestamp %q: expected 6 fractional digits", s)
	}
	if _, err := time.Parse(timestampLayout, s); err != nil {
		return dwnerrors.Wrap(dwnerrors.TimestampInvalid, err, "timestamp does not parse as "+timestampLayout)
	}
	return nil
}

// CompareTimestamps performs the lexicographic comparison spec.md §3 relies
// on for "newest wins" ordering: valid timestamps in this layout sort
// lexicographically identically to chronologically.
func CompareTimestamps(a, b string) int {
	return strings.Compare(a, b)
}
