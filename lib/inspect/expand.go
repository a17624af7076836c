// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"

	"github.com/bureau-foundation/hcert/lib/codec"
	"github.com/bureau-foundation/hcert/lib/keyparams"
)

// Entry is one key/value pair of an expanded map.
type Entry struct {
	Key   any
	Value any
}

// Map is an expanded CBOR map. Maps decoded from bytes keep the order
// their entries were encoded in. Maps handed to Expand as Go maps have
// no order and are sorted by the deterministic encoding of their keys.
type Map []Entry

// Get returns the value stored under key. Keys compare by Go equality,
// so integer labels must be given as int64.
func (m Map) Get(key any) (any, bool) {
	if key == nil || !reflect.TypeOf(key).Comparable() {
		return nil, false
	}
	for _, entry := range m {
		if entry.Key == nil || !reflect.TypeOf(entry.Key).Comparable() {
			continue
		}
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// Expand returns a fully materialized copy of value with embedded CBOR
// decoded and remaining byte strings rendered as base64 text. Sequences
// keep their order; maps become a Map; tag contents are expanded in
// place. value is not modified.
func Expand(value any) any {
	switch typed := value.(type) {
	case []byte:
		return expandBytes(typed)

	case []any:
		result := make([]any, len(typed))
		for index, element := range typed {
			result[index] = Expand(element)
		}
		return result

	case Map:
		result := make(Map, len(typed))
		for index, entry := range typed {
			result[index] = Entry{Key: entry.Key, Value: Expand(entry.Value)}
		}
		return result

	case map[any]any:
		result := make(Map, 0, len(typed))
		for key, element := range typed {
			result = append(result, Entry{Key: key, Value: Expand(element)})
		}
		sortEntries(result)
		return result

	case map[string]any:
		result := make(Map, 0, len(typed))
		for key, element := range typed {
			result = append(result, Entry{Key: key, Value: Expand(element)})
		}
		sortEntries(result)
		return result

	case codec.Tag:
		return codec.Tag{Number: typed.Number, Content: Expand(typed.Content)}

	default:
		return value
	}
}

// Envelope decodes raw envelope bytes and expands them.
func Envelope(data []byte) (any, error) {
	value, err := decodeOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("inspect: decoding envelope: %w", err)
	}
	return Expand(value), nil
}

// Diagnose returns RFC 8949 diagnostic notation for envelope bytes,
// with embedded CBOR byte strings shown as nested items.
func Diagnose(data []byte) (string, error) {
	notation, err := codec.DiagnoseNested(data)
	if err != nil {
		return "", fmt.Errorf("inspect: %w", err)
	}
	return notation, nil
}

// expandBytes decodes data as CBOR when it is exactly one well-formed
// item, and otherwise renders it as base64. Each decode strictly
// shrinks the input, so the recursion terminates.
func expandBytes(data []byte) any {
	if decoded, err := decodeOrdered(data); err == nil {
		return Expand(decoded)
	}
	if len(data) == keyparams.KeyIDSize {
		return base64.RawURLEncoding.EncodeToString(data)
	}
	return base64.StdEncoding.EncodeToString(data)
}

// sortEntries orders entries by the deterministic CBOR encoding of
// their keys (bytewise lexicographic, RFC 8949 §4.2.1). Keys that do
// not encode sort last, by their printed form.
func sortEntries(entries Map) {
	encoded := make([][]byte, len(entries))
	for index, entry := range entries {
		if data, err := codec.Marshal(entry.Key); err == nil {
			encoded[index] = data
		}
	}
	indices := make([]int, len(entries))
	for index := range indices {
		indices[index] = index
	}
	sort.SliceStable(indices, func(a, b int) bool {
		left, right := encoded[indices[a]], encoded[indices[b]]
		switch {
		case left == nil && right == nil:
			return fmt.Sprint(entries[indices[a]].Key) < fmt.Sprint(entries[indices[b]].Key)
		case left == nil:
			return false
		case right == nil:
			return true
		}
		return bytes.Compare(left, right) < 0
	})

	sorted := make(Map, len(entries))
	for position, index := range indices {
		sorted[position] = entries[index]
	}
	copy(entries, sorted)
}
