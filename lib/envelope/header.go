// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/bureau-foundation/hcert/lib/codec"
	"github.com/bureau-foundation/hcert/lib/cwt"
)

// sign1Tag is the CBOR tag number of COSE_Sign1_Tagged.
const sign1Tag = 18

// ErrUnreadableEnvelope is returned when data is not a CBOR COSE_Sign1
// structure of exactly four elements.
var ErrUnreadableEnvelope = errors.New("envelope: unreadable COSE envelope")

// HeaderLocation records which header map a value came from.
type HeaderLocation int

const (
	// LocationAbsent means neither header carried the value.
	LocationAbsent HeaderLocation = iota
	// LocationProtected means the value came from the protected header.
	LocationProtected
	// LocationUnprotected means the value came from the unprotected
	// header.
	LocationUnprotected
)

// String returns the human-readable name of a header location.
func (location HeaderLocation) String() string {
	switch location {
	case LocationAbsent:
		return "absent"
	case LocationProtected:
		return "protected"
	case LocationUnprotected:
		return "unprotected"
	default:
		return fmt.Sprintf("unknown(%d)", int(location))
	}
}

// HeaderInfo is the metadata readable from an envelope without
// verifying its signature. None of it is trustworthy until the
// signature has been checked.
type HeaderInfo struct {
	// Algorithm is the COSE algorithm, zero when absent.
	Algorithm cose.Algorithm

	// KeyID is the kid header, nil when absent or not a byte string.
	KeyID []byte

	// Issuer is the iss claim of the payload. Empty when the payload
	// could not be decoded or carries no issuer.
	Issuer string

	// Tagged is true when the envelope was wrapped in a CBOR tag.
	Tagged bool

	// AlgorithmLocation and KeyIDLocation record which header
	// supplied each value.
	AlgorithmLocation HeaderLocation
	KeyIDLocation     HeaderLocation
}

// header is a decoded COSE header map keyed by int64 labels (and text
// labels, which COSE also permits).
type header map[any]any

// ExtractHeaderInfo reads alg, kid and issuer from an envelope without
// any cryptographic verification. Protected header values take
// precedence over unprotected ones. A payload that does not decode is
// tolerated and leaves Issuer empty.
func ExtractHeaderInfo(data []byte) (*HeaderInfo, error) {
	elements, tagged, err := sign1Elements(data)
	if err != nil {
		return nil, err
	}

	protected, err := normalizeHeader(elements[0])
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrUnreadableEnvelope, err)
	}
	unprotected, err := normalizeHeader(elements[1])
	if err != nil {
		return nil, fmt.Errorf("%w: unprotected header: %v", ErrUnreadableEnvelope, err)
	}

	info := &HeaderInfo{Tagged: tagged}

	if value, location := lookup(protected, unprotected, cose.HeaderLabelAlgorithm); location != LocationAbsent {
		algorithm, err := algorithmOf(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableEnvelope, err)
		}
		info.Algorithm = algorithm
		info.AlgorithmLocation = location
	}

	if value, location := lookup(protected, unprotected, cose.HeaderLabelKeyID); location != LocationAbsent {
		// A kid of any other type cannot name a certificate; the
		// envelope is read as having none.
		if keyID, ok := value.([]byte); ok {
			info.KeyID = keyID
			info.KeyIDLocation = location
		}
	}

	info.Issuer = payloadIssuer(elements[2])
	return info, nil
}

// sign1Elements decodes the outer structure and returns its four
// elements. A tag (COSE_Sign1_Tagged, or any tag an older issuer
// wrapped the array in) is unwrapped; a bare array is used directly.
func sign1Elements(data []byte) ([]any, bool, error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("%w: empty input", ErrUnreadableEnvelope)
	}

	value, err := codec.UnmarshalGeneric(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnreadableEnvelope, err)
	}

	tagged := false
	if tag, ok := value.(codec.Tag); ok {
		tagged = true
		value = tag.Content
	}

	elements, ok := value.([]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: top-level value is %T, want array", ErrUnreadableEnvelope, value)
	}
	if len(elements) != 4 {
		return nil, false, fmt.Errorf("%w: array has %d elements, want 4", ErrUnreadableEnvelope, len(elements))
	}
	return elements, tagged, nil
}

// normalizeHeader turns a header element into a decoded map. Byte
// strings are CBOR-decoded (the empty byte string is the empty map);
// maps are accepted as already decoded; anything else, including a
// missing header, yields an empty map.
func normalizeHeader(element any) (header, error) {
	switch typed := element.(type) {
	case []byte:
		if len(typed) == 0 {
			return header{}, nil
		}
		decoded, err := codec.UnmarshalGeneric(typed)
		if err != nil {
			return nil, err
		}
		decodedMap, ok := decoded.(map[any]any)
		if !ok {
			return nil, fmt.Errorf("encoded header is %T, want map", decoded)
		}
		return header(decodedMap), nil
	case map[any]any:
		return header(typed), nil
	default:
		return header{}, nil
	}
}

// lookup finds label in the protected header, then the unprotected one.
func lookup(protected, unprotected header, label int64) (any, HeaderLocation) {
	if value, ok := protected[label]; ok {
		return value, LocationProtected
	}
	if value, ok := unprotected[label]; ok {
		return value, LocationUnprotected
	}
	return nil, LocationAbsent
}

// algorithmOf converts an alg header value to a cose.Algorithm. Integer
// identifiers are used as-is; the two names this format issues with are
// accepted as text for envelopes written by tools that did not map them.
func algorithmOf(value any) (cose.Algorithm, error) {
	switch typed := value.(type) {
	case int64:
		return cose.Algorithm(typed), nil
	case string:
		switch typed {
		case "ES256":
			return cose.AlgorithmES256, nil
		case "PS256":
			return cose.AlgorithmPS256, nil
		}
		return 0, fmt.Errorf("unknown algorithm name %q", typed)
	default:
		return 0, fmt.Errorf("alg is %T, want integer", value)
	}
}

// payloadIssuer returns the iss claim of an encoded claim set, or ""
// when the payload is not a decodable map with a text issuer.
func payloadIssuer(element any) string {
	payload, ok := element.([]byte)
	if !ok {
		return ""
	}
	decoded, err := codec.UnmarshalGeneric(payload)
	if err != nil {
		return ""
	}
	claims, ok := decoded.(map[any]any)
	if !ok {
		return ""
	}
	issuer, _ := claims[int64(cwt.LabelIssuer)].(string)
	return issuer
}
