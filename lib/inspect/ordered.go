// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/hcert/lib/codec"
)

// CBOR major types that can contain maps.
const (
	majorArray = 4
	majorMap   = 5
	majorTag   = 6

	breakCode = 0xff
)

var errNotWellformed = errors.New("not a single well-formed CBOR item")

// decodeOrdered decodes one CBOR item like codec.UnmarshalGeneric, except
// that maps become a Map holding their entries in encoded order. Map
// keys are decoded generically and are not walked.
func decodeOrdered(data []byte) (any, error) {
	if !codec.Wellformed(data) {
		return nil, errNotWellformed
	}
	return decodeItem(data)
}

// decodeItem walks one well-formed item.
func decodeItem(data []byte) (any, error) {
	major, argument, headLength, indefinite, err := readHead(data)
	if err != nil {
		return nil, err
	}

	switch major {
	case majorArray:
		items, err := splitItems(data[headLength:], argument, indefinite)
		if err != nil {
			return nil, err
		}
		result := make([]any, len(items))
		for index, item := range items {
			if result[index], err = decodeItem(item); err != nil {
				return nil, err
			}
		}
		return result, nil

	case majorMap:
		items, err := splitItems(data[headLength:], 2*argument, indefinite)
		if err != nil {
			return nil, err
		}
		if len(items)%2 != 0 {
			return nil, fmt.Errorf("map has a key without a value")
		}
		result := make(Map, 0, len(items)/2)
		for index := 0; index < len(items); index += 2 {
			key, err := codec.UnmarshalGeneric(items[index])
			if err != nil {
				return nil, err
			}
			value, err := decodeItem(items[index+1])
			if err != nil {
				return nil, err
			}
			result = append(result, Entry{Key: key, Value: value})
		}
		return result, nil

	case majorTag:
		// Tags the decoder understands (times, bignums) keep their
		// decoded form; the rest are walked so maps inside stay ordered.
		decoded, err := codec.UnmarshalGeneric(data)
		if err != nil {
			return nil, err
		}
		tag, ok := decoded.(codec.Tag)
		if !ok {
			return decoded, nil
		}
		content, err := decodeItem(data[headLength:])
		if err != nil {
			return nil, err
		}
		return codec.Tag{Number: tag.Number, Content: content}, nil

	default:
		return codec.UnmarshalGeneric(data)
	}
}

// readHead parses the initial byte and argument of a data item.
func readHead(data []byte) (major byte, argument uint64, length int, indefinite bool, err error) {
	if len(data) == 0 {
		return 0, 0, 0, false, errNotWellformed
	}
	major = data[0] >> 5
	additional := data[0] & 0x1f

	switch {
	case additional < 24:
		return major, uint64(additional), 1, false, nil
	case additional == 31:
		return major, 0, 1, true, nil
	case additional > 27:
		return 0, 0, 0, false, fmt.Errorf("reserved additional information %d", additional)
	}

	size := 1 << (additional - 24)
	if len(data) < 1+size {
		return 0, 0, 0, false, errNotWellformed
	}
	for _, b := range data[1 : 1+size] {
		argument = argument<<8 | uint64(b)
	}
	return major, argument, 1 + size, false, nil
}

// splitItems returns the raw encodings of the items following a
// container head: count of them, or up to the break code when the
// container has indefinite length.
func splitItems(data []byte, count uint64, indefinite bool) ([]codec.RawMessage, error) {
	var items []codec.RawMessage
	for indefinite || uint64(len(items)) < count {
		if indefinite && len(data) > 0 && data[0] == breakCode {
			return items, nil
		}
		var item codec.RawMessage
		rest, err := codec.UnmarshalFirst(data, &item)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		data = rest
	}
	return items, nil
}
