// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/hcert/lib/codec"
)

// JSON encodes an expanded tree as JSON. Map keys that are not strings
// (CBOR integer labels) are printed with fmt.Sprint, so a claim set
// reads {"1":"AT","-260":{...}}. Tags become {"tag":N,"value":...}.
// When compact is false, output is indented with two spaces.
func JSON(tree any, compact bool) ([]byte, error) {
	output, err := json.Marshal(normalizeValue(tree))
	if err != nil {
		return nil, fmt.Errorf("inspect: encode JSON: %w", err)
	}
	if compact {
		return output, nil
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, output, "", "  "); err != nil {
		return nil, fmt.Errorf("inspect: indent JSON: %w", err)
	}
	return indented.Bytes(), nil
}

// MarshalJSON encodes the map as a JSON object in entry order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for index, entry := range m {
		if index > 0 {
			buffer.WriteByte(',')
		}
		name, err := json.Marshal(keyString(entry.Key))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(normalizeValue(entry.Value))
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", entry.Key, err)
		}
		buffer.Write(name)
		buffer.WriteByte(':')
		buffer.Write(value)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func keyString(key any) string {
	if text, ok := key.(string); ok {
		return text
	}
	return fmt.Sprint(key)
}

// normalizeValue converts values that encoding/json cannot represent
// faithfully: integer-keyed maps and CBOR tags. Map handles its own
// values through MarshalJSON.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case map[any]any:
		result := make(map[string]any, len(value))
		for key, element := range value {
			result[keyString(key)] = normalizeValue(element)
		}
		return result

	case map[string]any:
		result := make(map[string]any, len(value))
		for key, element := range value {
			result[key] = normalizeValue(element)
		}
		return result

	case []any:
		result := make([]any, len(value))
		for index, element := range value {
			result[index] = normalizeValue(element)
		}
		return result

	case codec.Tag:
		return Map{
			{Key: "tag", Value: value.Number},
			{Key: "value", Value: value.Content},
		}

	default:
		return v
	}
}
