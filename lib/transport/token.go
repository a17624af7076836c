// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minvws/base45-go/eubase45"
	"github.com/multiformats/go-base32"
)

// Prefix is the scheme identifier every issued token starts with.
const Prefix = "HC1:"

// prefixName is Prefix without its separating colon. Tokens from older
// issuers carry only this.
const prefixName = "HC1"

var (
	// ErrMalformedToken is returned when token text cannot be turned
	// back into envelope bytes.
	ErrMalformedToken = errors.New("transport: malformed token")

	// ErrUnrecognizedEncoding is returned when the token text matches
	// neither the Base32 nor the Base45 alphabet. It wraps
	// ErrMalformedToken.
	ErrUnrecognizedEncoding = fmt.Errorf("%w: unrecognized textual encoding", ErrMalformedToken)
)

// Encode compresses an envelope, encodes it with scheme and prepends
// the "HC1:" prefix.
func Encode(envelope []byte, scheme Scheme) (string, error) {
	compressed, err := Deflate(envelope)
	if err != nil {
		return "", err
	}

	var text string
	switch scheme {
	case Base45:
		text = string(eubase45.EUBase45Encode(compressed))
	case Base32:
		text = base32.RawStdEncoding.EncodeToString(compressed)
	default:
		return "", fmt.Errorf("unsupported transport scheme: %d", scheme)
	}
	return Prefix + text, nil
}

// Decode turns a token back into envelope bytes. The prefix is
// stripped when present; tokens without it, or with "HC1" but no
// colon, are accepted with a warning on logger. The payload scheme is
// detected from its alphabet and the result is inflated only when it
// starts with the zlib marker. A nil logger discards the warnings.
func Decode(token string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	text, found := strings.CutPrefix(token, prefixName)
	if found {
		if withoutColon, hasColon := strings.CutPrefix(text, ":"); hasColon {
			text = withoutColon
		} else {
			logger.Warn("token prefix has no colon, accepting legacy form")
		}
	} else {
		logger.Warn("token has no HC1 prefix, accepting legacy form")
	}

	scheme, err := DetectScheme(text)
	if err != nil {
		logger.Warn("token payload matches no known encoding", "length", len(text))
		return nil, err
	}

	var decoded []byte
	switch scheme {
	case Base32:
		decoded, err = base32.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	case Base45:
		decoded, err = eubase45.EUBase45Decode([]byte(text))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedToken, scheme, err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedToken)
	}

	if !IsDeflated(decoded) {
		logger.Debug("token payload is not compressed, using as-is", "scheme", scheme.String())
		return decoded, nil
	}
	return Inflate(decoded)
}
