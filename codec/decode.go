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
	"encoding/binary"
	"math"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Decode reverses Encode. The returned value uses the canonical Go types
// (map[string]any, []any, string, []byte, bool, int64, float64) so that
// re-encoding it reproduces byte-identical output, preserving the
// cid(encode(v)) == cid(encode(decode(encode(v)))) invariant.
func Decode(data []byte) (any, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, dwnerrors.New(dwnerrors.CidInvalid, "trailing bytes after decoded value")
	}
	return v, nil
}

func decodeValue(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, dwnerrors.New(dwnerrors.CidInvalid, "unexpected end of input")
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagFalse:
		return false, rest, nil
	case tagTrue:
		return true, rest, nil
	case tagInt:
		if len(rest) < 8 {
			return nil, nil, dwnerrors.New(dwnerrors.CidInvalid, "truncated int")
		}
		n := int64(binary.BigEndian.Uint64(rest[:8]))
		return n, rest[8:], nil
	case tagFloat:
		if len(rest) < 8 {
			return nil, nil, dwnerrors.New(dwnerrors.CidInvalid, "truncated float")
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(rest[:8]))
		return f, rest[8:], nil
	case tagString:
		b, rest, err := readBytes(rest)
		if err != nil {
			return nil, nil, err
		}
		return string(b), rest, nil
	case tagBytes:
		return readBytes(rest)
	case tagArray:
		n, rest, err := readUvarint(rest)
		if err != nil {
			return nil, nil, err
		}
		arr := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			var el any
			el, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			arr = append(arr, el)
		}
		return arr, rest, nil
	case tagMap:
		n, rest, err := readUvarint(rest)
		if err != nil {
			return nil, nil, err
		}
		m := make(map[string]any, n)
		for i := uint64(0); i < n; i++ {
			var keyBytes []byte
			keyBytes, rest, err = readBytes(rest)
			if err != nil {
				return nil, nil, err
			}
			var val any
			val, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			m[string(keyBytes)] = val
		}
		return m, rest, nil
	default:
		return nil, nil, dwnerrors.Newf(dwnerrors.CidInvalid, "unknown type tag 0x%02x", tag)
	}
}

func readBytes(data []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, dwnerrors.New(dwnerrors.CidInvalid, "truncated byte string")
	}
	return rest[:n], rest[n:], nil
}

func readUvarint(data []byte) (uint64, []byte, error) {
	n, l := binary.Uvarint(data)
	if l <= 0 {
		return 0, nil, dwnerrors.New(dwnerrors.CidInvalid, "invalid varint length prefix")
	}
	return n, data[l:], nil
}
