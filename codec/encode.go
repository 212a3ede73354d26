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

// Package codec implements the canonical, deterministic binary encoding
// used for CID computation and JWS payloads (spec.md §4.1), plus the CID
// and General JWS helpers built on top of it.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dwn-project/dwn-node/dwnerrors"
)

// Major-type tags for the canonical encoding. The exact tag values are an
// implementation detail of this encoder (not a public wire format shared
// with other codecs); what spec.md §4.1 requires is that the shape be
// deterministic (sorted keys, no absent/undefined fields) and that
// cid(encode(decode(encode(v)))) == cid(encode(v)).
const (
	tagNull   = 0x00 // never emitted; Decode rejects it as an unknown tag
	tagFalse  = 0x01
	tagTrue   = 0x02
	tagInt    = 0x03
	tagFloat  = 0x04
	tagString = 0x05
	tagBytes  = 0x06
	tagArray  = 0x07
	tagMap    = 0x08
)

// Encode produces the canonical binary encoding of v. Supported shapes are
// the ones produced by decoding JSON into Go values: nil (rejected), bool,
// string, []byte, any integer/float kind, map[string]any and []any
// (recursively). Anything else — including a value that is itself
// "undefined" in the sense of absent — fails with EncodingUnsupportedValue.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return dwnerrors.New(dwnerrors.EncodingUnsupportedValue, "nil/undefined value is not encodable")
	case bool:
		if val {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
		return nil
	case string:
		buf.WriteByte(tagString)
		writeBytes(buf, []byte(val))
		return nil
	case []byte:
		buf.WriteByte(tagBytes)
		writeBytes(buf, val)
		return nil
	case int:
		return encodeInt(buf, int64(val))
	case int8:
		return encodeInt(buf, int64(val))
	case int16:
		return encodeInt(buf, int64(val))
	case int32:
		return encodeInt(buf, int64(val))
	case int64:
		return encodeInt(buf, val)
	case uint:
		return encodeInt(buf, int64(val))
	case uint8:
		return encodeInt(buf, int64(val))
	case uint16:
		return encodeInt(buf, int64(val))
	case uint32:
		return encodeInt(buf, int64(val))
	case uint64:
		return encodeInt(buf, int64(val))
	case float32:
		return encodeFloat(buf, float64(val))
	case float64:
		return encodeFloat(buf, val)
	case []any:
		buf.WriteByte(tagArray)
		writeUvarint(buf, uint64(len(val)))
		for _, el := range val {
			if el == nil {
				return dwnerrors.New(dwnerrors.EncodingUnsupportedValue, "array element is nil/undefined")
			}
			if err := encodeValue(buf, el); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return encodeMap(buf, val)
	default:
		return dwnerrors.Newf(dwnerrors.EncodingUnsupportedValue, "unsupported type %T", v)
	}
}

func encodeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		// An explicit nil value is treated as an absent field: it is
		// skipped, so the key does not appear in the encoding. (Nil
		// array elements are rejected in encodeValue.)
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte(tagMap)
	writeUvarint(buf, uint64(len(keys)))
	for _, k := range keys {
		writeBytes(buf, []byte(k))
		if err := encodeValue(buf, m[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n int64) error {
	buf.WriteByte(tagInt)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	buf.Write(b[:])
	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	buf.WriteByte(tagFloat)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	buf.Write(b[:])
	return nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:l])
}
