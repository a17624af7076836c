// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"regexp"
)

// Scheme identifies the textual encoding of a token's payload.
type Scheme uint8

const (
	// Base45 is the EU Base45 alphabet (RFC 9285). It packs two bytes
	// into three characters of the QR alphanumeric set and is the
	// default for issuance.
	Base45 Scheme = 0

	// Base32 is the RFC 4648 upper-case alphabet. Tokens are issued
	// unpadded; padded text is accepted on decode.
	Base32 Scheme = 1
)

// String returns the configuration name of a scheme.
func (scheme Scheme) String() string {
	switch scheme {
	case Base45:
		return "base45"
	case Base32:
		return "base32"
	default:
		return fmt.Sprintf("unknown(%d)", scheme)
	}
}

// ParseScheme parses a scheme from its configuration name.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "base45":
		return Base45, nil
	case "base32":
		return Base32, nil
	default:
		return 0, fmt.Errorf("unknown transport scheme: %q", name)
	}
}

var (
	base32Pattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)
	base45Pattern = regexp.MustCompile(`^[A-Z0-9 $%*+./:-]+$`)
)

// DetectScheme classifies token text (with the prefix already removed)
// by alphabet. Base32 is checked first: its alphabet is a subset of
// Base45's, so text made only of A-Z and 2-7 is read as Base32.
func DetectScheme(text string) (Scheme, error) {
	switch {
	case base32Pattern.MatchString(text):
		return Base32, nil
	case base45Pattern.MatchString(text):
		return Base45, nil
	default:
		return 0, ErrUnrecognizedEncoding
	}
}
