// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veraison/go-cose"

	"github.com/bureau-foundation/hcert/lib/codec"
	"github.com/bureau-foundation/hcert/lib/cwt"
	"github.com/bureau-foundation/hcert/lib/keyparams"
)

// Errors returned by Verify.
var (
	ErrKeyNotFound      = errors.New("envelope: verification key not found")
	ErrSignatureInvalid = errors.New("envelope: signature verification failed")
)

// Resolver maps a key id to a trusted issuer certificate.
//
// keyID is the standard (padded) base64 encoding of the 8-byte kid.
// Implementations return the PEM certificate, or an error wrapping
// ErrKeyNotFound when they have none. Any other error is terminal for
// the verification. Resolve may be called concurrently.
type Resolver interface {
	Resolve(ctx context.Context, keyID string) ([]byte, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, keyID string) ([]byte, error)

// Resolve calls f(ctx, keyID).
func (f ResolverFunc) Resolve(ctx context.Context, keyID string) ([]byte, error) {
	return f(ctx, keyID)
}

// Verifier checks envelope signatures against certificates found
// through a Resolver. A Verifier holds no mutable state and is safe for
// concurrent use when its Resolver is.
type Verifier struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewVerifier creates a Verifier. A nil resolver means only the
// fallback certificate passed to Verify is ever used. A nil logger
// discards diagnostics.
func NewVerifier(resolver Resolver, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{resolver: resolver, logger: logger}
}

// Verify checks the envelope's signature and returns its decoded claim
// set. The certificate is looked up by kid through the resolver; when
// the resolver has none, fallbackCertificatePEM is used if non-empty.
func (v *Verifier) Verify(ctx context.Context, data, fallbackCertificatePEM []byte) (*cwt.Claims, error) {
	info, err := ExtractHeaderInfo(data)
	if err != nil {
		return nil, err
	}
	if info.KeyIDLocation == LocationAbsent {
		v.logger.Debug("envelope carries no usable kid")
	}

	certificatePEM, err := v.certificateFor(ctx, info.KeyID, fallbackCertificatePEM)
	if err != nil {
		return nil, err
	}

	parameters, err := keyparams.FromCertificate(certificatePEM)
	if err != nil {
		return nil, err
	}

	payload, err := verifySignature(data, info, parameters)
	if err != nil {
		return nil, err
	}

	claims, err := cwt.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: decoding claims: %w", err)
	}
	return claims, nil
}

// Valid reports whether the envelope verifies. Every failure is logged
// at warning level and reported as false without distinguishing the
// cause; callers that need the cause use Verify.
func (v *Verifier) Valid(ctx context.Context, data, fallbackCertificatePEM []byte) bool {
	if _, err := v.Verify(ctx, data, fallbackCertificatePEM); err != nil {
		v.logger.Warn("envelope verification failed", "error", err)
		return false
	}
	return true
}

// certificateFor resolves the certificate for keyID, falling back to
// the caller's certificate when the resolver has none.
func (v *Verifier) certificateFor(ctx context.Context, keyID, fallbackCertificatePEM []byte) ([]byte, error) {
	if v.resolver != nil && len(keyID) > 0 {
		encodedKeyID := base64.StdEncoding.EncodeToString(keyID)
		certificatePEM, err := v.resolver.Resolve(ctx, encodedKeyID)
		switch {
		case err == nil && len(certificatePEM) > 0:
			return certificatePEM, nil
		case err != nil && !errors.Is(err, ErrKeyNotFound):
			return nil, fmt.Errorf("envelope: resolving kid %s: %w", encodedKeyID, err)
		}
		v.logger.Debug("kid not in resolver, using fallback certificate",
			"kid", encodedKeyID,
			"fallback", len(fallbackCertificatePEM) > 0,
		)
	}

	if len(fallbackCertificatePEM) == 0 {
		return nil, fmt.Errorf("%w: kid %x", ErrKeyNotFound, keyID)
	}
	return fallbackCertificatePEM, nil
}

// verifySignature runs the COSE verification primitive and returns the
// signed payload bytes. Envelopes with an integer alg in an encoded
// protected header go through go-cose; the rest (alg only in the
// unprotected header, text or absent alg, pre-decoded protected map)
// are checked against a Sig_structure built here.
func verifySignature(data []byte, info *HeaderInfo, parameters keyparams.Parameters) ([]byte, error) {
	publicKey, err := parameters.PublicKey()
	if err != nil {
		return nil, err
	}

	verifier, err := cose.NewVerifier(parameters.Algorithm(), publicKey)
	if err != nil {
		return nil, fmt.Errorf("envelope: creating %v verifier: %w", parameters.Algorithm(), err)
	}

	elements, _, err := sign1Elements(data)
	if err != nil {
		return nil, err
	}
	if !protectedIntegerAlgorithm(elements[0]) {
		return verifyElements(elements, info, verifier)
	}

	if info.Tagged {
		var message cose.Sign1Message
		if err := message.UnmarshalCBOR(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableEnvelope, err)
		}
		if err := message.Verify(nil, verifier); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return message.Payload, nil
	}

	var message cose.UntaggedSign1Message
	if err := message.UnmarshalCBOR(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableEnvelope, err)
	}
	if err := message.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return message.Payload, nil
}

// verifyElements checks the signature over the COSE_Sign1 Sig_structure
// ["Signature1", protected, h'', payload] with empty external data. An
// alg named by either header must match the certificate's.
func verifyElements(elements []any, info *HeaderInfo, verifier cose.Verifier) ([]byte, error) {
	if info.AlgorithmLocation != LocationAbsent && info.Algorithm != verifier.Algorithm() {
		return nil, fmt.Errorf("%w: envelope alg %v does not match certificate alg %v",
			ErrSignatureInvalid, info.Algorithm, verifier.Algorithm())
	}

	protected, err := protectedBytes(elements[0])
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrUnreadableEnvelope, err)
	}
	payload, ok := elements[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %T, want byte string", ErrUnreadableEnvelope, elements[2])
	}
	signature, ok := elements[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: signature is %T, want byte string", ErrUnreadableEnvelope, elements[3])
	}

	toBeSigned, err := codec.Marshal([]any{"Signature1", protected, []byte{}, payload})
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding Sig_structure: %w", err)
	}
	if err := verifier.Verify(toBeSigned, signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return payload, nil
}

// protectedIntegerAlgorithm reports whether the protected header element
// is an encoded map carrying an integer alg.
func protectedIntegerAlgorithm(element any) bool {
	encoded, ok := element.([]byte)
	if !ok {
		return false
	}
	protected, err := normalizeHeader(encoded)
	if err != nil {
		return false
	}
	_, ok = protected[cose.HeaderLabelAlgorithm].(int64)
	return ok
}

// protectedBytes returns the protected header as it enters the
// Sig_structure. A header that arrived as a map is re-encoded
// deterministically; a missing one is the empty byte string.
func protectedBytes(element any) ([]byte, error) {
	switch typed := element.(type) {
	case []byte:
		return typed, nil
	case map[any]any:
		if len(typed) == 0 {
			return []byte{}, nil
		}
		return codec.Marshal(typed)
	default:
		return []byte{}, nil
	}
}
