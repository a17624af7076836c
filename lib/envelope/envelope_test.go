// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/veraison/go-cose"

	"github.com/bureau-foundation/hcert/lib/codec"
	"github.com/bureau-foundation/hcert/lib/cwt"
	"github.com/bureau-foundation/hcert/lib/keyparams"
	"github.com/bureau-foundation/hcert/lib/testutil"
)

var testIssueTime = time.Date(2026, 4, 15, 9, 30, 0, 0, time.UTC)

func testClaims() *cwt.Claims {
	return cwt.MakeAt(testIssueTime, map[string]any{"name": "Doe"},
		cwt.WithExpiryMonths(12), cwt.WithIssuer("AT"))
}

func signTestEnvelope(t *testing.T, pair *testutil.KeyPair) []byte {
	t.Helper()
	data, err := Sign(testClaims(), pair.CertificatePEM, pair.PrivateKeyPEM)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return data
}

// mapResolver resolves from a fixed kid → PEM table.
func mapResolver(entries map[string][]byte) Resolver {
	return ResolverFunc(func(ctx context.Context, keyID string) ([]byte, error) {
		if pem, ok := entries[keyID]; ok {
			return pem, nil
		}
		return nil, ErrKeyNotFound
	})
}

func TestSignAndVerify_Fallback(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	if data[0] != 0xd2 {
		t.Errorf("envelope first byte = %#x, want 0xd2 (tag 18)", data[0])
	}

	claims, err := NewVerifier(nil, nil).Verify(context.Background(), data, pair.CertificatePEM)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Issuer != "AT" {
		t.Errorf("Issuer = %q, want AT", claims.Issuer)
	}
	payload, err := claims.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !reflect.DeepEqual(payload, map[string]any{"name": "Doe"}) {
		t.Errorf("payload = %#v, want name=Doe", payload)
	}
}

func TestSignAndVerify_IntegerKeyedPayload(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data, err := Sign(cwt.MakeAt(testIssueTime, map[int64]any{1: "Doe"}), pair.CertificatePEM, pair.PrivateKeyPEM)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := NewVerifier(nil, nil).Verify(context.Background(), data, pair.CertificatePEM)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	payload, err := claims.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if want := (map[any]any{int64(1): "Doe"}); !reflect.DeepEqual(payload, want) {
		t.Errorf("payload = %#v, want %#v", payload, want)
	}
}

func TestVerify_Resolver(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	parameters, err := keyparams.FromCertificate(pair.CertificatePEM)
	if err != nil {
		t.Fatalf("FromCertificate: %v", err)
	}
	kid := base64.StdEncoding.EncodeToString(parameters.KeyID())

	verifier := NewVerifier(mapResolver(map[string][]byte{kid: pair.CertificatePEM}), nil)
	if _, err := verifier.Verify(context.Background(), data, nil); err != nil {
		t.Fatalf("Verify through resolver: %v", err)
	}

	// The resolver wins over a wrong fallback certificate.
	other := testutil.ECKeyPair(t)
	if _, err := verifier.Verify(context.Background(), data, other.CertificatePEM); err != nil {
		t.Fatalf("Verify with resolver and unrelated fallback: %v", err)
	}
}

func TestVerify_ResolverMissFallsBack(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	verifier := NewVerifier(mapResolver(map[string][]byte{}), nil)
	if _, err := verifier.Verify(context.Background(), data, pair.CertificatePEM); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_KeyNotFound(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	verifier := NewVerifier(mapResolver(map[string][]byte{}), nil)
	_, err := verifier.Verify(context.Background(), data, nil)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Verify without any key: got %v, want ErrKeyNotFound", err)
	}
	if verifier.Valid(context.Background(), data, nil) {
		t.Error("Valid without any key = true, want false")
	}
}

func TestVerify_ResolverErrorIsTerminal(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	unavailable := errors.New("directory unavailable")
	verifier := NewVerifier(ResolverFunc(func(context.Context, string) ([]byte, error) {
		return nil, unavailable
	}), nil)

	_, err := verifier.Verify(context.Background(), data, pair.CertificatePEM)
	if !errors.Is(err, unavailable) {
		t.Errorf("Verify: got %v, want the resolver's error", err)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	// The signature is the final 64 bytes of the envelope.
	for _, offset := range []int{1, 32, 64} {
		tampered := bytes.Clone(data)
		tampered[len(tampered)-offset] ^= 0x01

		verifier := NewVerifier(nil, nil)
		_, err := verifier.Verify(context.Background(), tampered, pair.CertificatePEM)
		if !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("offset %d: Verify got %v, want ErrSignatureInvalid", offset, err)
		}
		if verifier.Valid(context.Background(), tampered, pair.CertificatePEM) {
			t.Errorf("offset %d: Valid = true for tampered envelope", offset)
		}
	}
}

func TestVerify_WrongCertificate(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	other := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	_, err := NewVerifier(nil, nil).Verify(context.Background(), data, other.CertificatePEM)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify with wrong certificate: got %v, want ErrSignatureInvalid", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	verifier := NewVerifier(nil, nil)

	_, err := verifier.Verify(context.Background(), []byte("not cbor at all"), pair.CertificatePEM)
	if !errors.Is(err, ErrUnreadableEnvelope) {
		t.Errorf("Verify garbage: got %v, want ErrUnreadableEnvelope", err)
	}
	if verifier.Valid(context.Background(), nil, pair.CertificatePEM) {
		t.Error("Valid(nil) = true, want false")
	}
}

func TestSign_RSAUnsupported(t *testing.T) {
	pair := testutil.RSAKeyPair(t)

	_, err := Sign(testClaims(), pair.CertificatePEM, pair.PrivateKeyPEM)
	if !errors.Is(err, keyparams.ErrRSAIssuanceUnsupported) {
		t.Errorf("Sign with RSA: got %v, want ErrRSAIssuanceUnsupported", err)
	}
}

// signRSAUntagged produces a PS256 envelope the way a foreign issuer
// might: untagged, alg protected, kid unprotected.
func signRSAUntagged(t *testing.T, pair *testutil.KeyPair) []byte {
	t.Helper()
	parameters, err := keyparams.FromCertificate(pair.CertificatePEM)
	if err != nil {
		t.Fatalf("FromCertificate: %v", err)
	}
	payload, err := testClaims().Marshal()
	if err != nil {
		t.Fatalf("Marshal claims: %v", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmPS256, pair.Signer)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	message := cose.UntaggedSign1Message{
		Headers: cose.Headers{
			Protected:   cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmPS256},
			Unprotected: cose.UnprotectedHeader{cose.HeaderLabelKeyID: parameters.KeyID()},
		},
		Payload: payload,
	}
	if err := message.Sign(rand.Reader, nil, signer); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	data, err := message.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	return data
}

func TestVerify_RSAUntagged(t *testing.T) {
	pair := testutil.RSAKeyPair(t)
	data := signRSAUntagged(t, pair)

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}
	if info.Tagged {
		t.Error("Tagged = true for an untagged envelope")
	}
	if info.Algorithm != cose.AlgorithmPS256 || info.AlgorithmLocation != LocationProtected {
		t.Errorf("alg = %v from %v, want PS256 from protected", info.Algorithm, info.AlgorithmLocation)
	}
	if info.KeyIDLocation != LocationUnprotected {
		t.Errorf("kid location = %v, want unprotected", info.KeyIDLocation)
	}

	claims, err := NewVerifier(nil, nil).Verify(context.Background(), data, pair.CertificatePEM)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Issuer != "AT" {
		t.Errorf("Issuer = %q, want AT", claims.Issuer)
	}
}

func TestExtractHeaderInfo_Signed(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signTestEnvelope(t, pair)

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}

	parameters, err := keyparams.FromCertificate(pair.CertificatePEM)
	if err != nil {
		t.Fatalf("FromCertificate: %v", err)
	}
	if !info.Tagged {
		t.Error("Tagged = false, want true")
	}
	if info.Algorithm != cose.AlgorithmES256 {
		t.Errorf("Algorithm = %v, want ES256", info.Algorithm)
	}
	if !bytes.Equal(info.KeyID, parameters.KeyID()) {
		t.Errorf("KeyID = %x, want %x", info.KeyID, parameters.KeyID())
	}
	if info.Issuer != "AT" {
		t.Errorf("Issuer = %q, want AT", info.Issuer)
	}
}

func TestExtractHeaderInfo_ProtectedWins(t *testing.T) {
	protected, err := codec.Marshal(map[int64]any{1: int64(-7), 4: []byte("PROTKID1")})
	if err != nil {
		t.Fatalf("Marshal protected: %v", err)
	}
	data, err := codec.Marshal([]any{
		protected,
		map[int64]any{1: int64(-37), 4: []byte("UNPRKID1")},
		[]byte{0xff},
		[]byte{0x00},
	})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}
	if info.Algorithm != cose.AlgorithmES256 {
		t.Errorf("Algorithm = %v, want ES256 from protected header", info.Algorithm)
	}
	if string(info.KeyID) != "PROTKID1" {
		t.Errorf("KeyID = %q, want PROTKID1", info.KeyID)
	}
	if info.Issuer != "" {
		t.Errorf("Issuer = %q, want empty for undecodable payload", info.Issuer)
	}
}

func TestExtractHeaderInfo_PreDecodedAndUnprotectedOnly(t *testing.T) {
	data, err := codec.Marshal(codec.Tag{Number: 18, Content: []any{
		map[int64]any{1: "ES256"},
		map[int64]any{4: []byte("UNPRKID1")},
		[]byte{},
		[]byte{},
	}})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}
	if info.Algorithm != cose.AlgorithmES256 || info.AlgorithmLocation != LocationProtected {
		t.Errorf("alg = %v from %v, want ES256 from protected", info.Algorithm, info.AlgorithmLocation)
	}
	if string(info.KeyID) != "UNPRKID1" || info.KeyIDLocation != LocationUnprotected {
		t.Errorf("kid = %q from %v, want UNPRKID1 from unprotected", info.KeyID, info.KeyIDLocation)
	}
}

// signUnprotectedHeaders builds a tagged envelope with an empty
// protected header, so alg and kid are carried only by the unprotected
// one. The signature is always ES256 over the Sig_structure.
func signUnprotectedHeaders(t *testing.T, pair *testutil.KeyPair, algorithm cose.Algorithm, keyID any) []byte {
	t.Helper()
	payload, err := testClaims().Marshal()
	if err != nil {
		t.Fatalf("Marshal claims: %v", err)
	}
	toBeSigned, err := codec.Marshal([]any{"Signature1", []byte{}, []byte{}, payload})
	if err != nil {
		t.Fatalf("Marshal Sig_structure: %v", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, pair.Signer)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	signature, err := signer.Sign(rand.Reader, toBeSigned)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	data, err := codec.Marshal(codec.Tag{Number: 18, Content: []any{
		[]byte{},
		map[int64]any{1: int64(algorithm), 4: keyID},
		payload,
		signature,
	}})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}
	return data
}

func TestVerify_AlgorithmOnlyUnprotected(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	parameters, err := keyparams.FromCertificate(pair.CertificatePEM)
	if err != nil {
		t.Fatalf("FromCertificate: %v", err)
	}
	data := signUnprotectedHeaders(t, pair, cose.AlgorithmES256, parameters.KeyID())

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}
	if info.Algorithm != cose.AlgorithmES256 || info.AlgorithmLocation != LocationUnprotected {
		t.Errorf("alg = %v from %v, want ES256 from unprotected", info.Algorithm, info.AlgorithmLocation)
	}

	resolver := mapResolver(map[string][]byte{
		base64.StdEncoding.EncodeToString(parameters.KeyID()): pair.CertificatePEM,
	})
	claims, err := NewVerifier(resolver, nil).Verify(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Issuer != "AT" {
		t.Errorf("Issuer = %q, want AT", claims.Issuer)
	}

	tampered := bytes.Clone(data)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := NewVerifier(resolver, nil).Verify(context.Background(), tampered, nil); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify tampered: got %v, want ErrSignatureInvalid", err)
	}
}

func TestVerify_UnprotectedAlgorithmMismatch(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	parameters, err := keyparams.FromCertificate(pair.CertificatePEM)
	if err != nil {
		t.Fatalf("FromCertificate: %v", err)
	}
	data := signUnprotectedHeaders(t, pair, cose.AlgorithmPS256, parameters.KeyID())

	_, err = NewVerifier(nil, nil).Verify(context.Background(), data, pair.CertificatePEM)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Verify: got %v, want ErrSignatureInvalid", err)
	}
}

func TestExtractHeaderInfo_KeyIDNotBytes(t *testing.T) {
	pair := testutil.ECKeyPair(t)
	data := signUnprotectedHeaders(t, pair, cose.AlgorithmES256, "text")

	info, err := ExtractHeaderInfo(data)
	if err != nil {
		t.Fatalf("ExtractHeaderInfo: %v", err)
	}
	if info.KeyID != nil || info.KeyIDLocation != LocationAbsent {
		t.Errorf("kid = %q from %v, want nil from absent", info.KeyID, info.KeyIDLocation)
	}

	// With no usable kid the fallback certificate is used.
	if _, err := NewVerifier(nil, nil).Verify(context.Background(), data, pair.CertificatePEM); err != nil {
		t.Errorf("Verify with fallback: %v", err)
	}
}

func TestExtractHeaderInfo_Unreadable(t *testing.T) {
	encode := func(value any) []byte {
		data, err := codec.Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not CBOR", []byte{0xff, 0xfe}},
		{"map", encode(map[string]any{"a": 1})},
		{"three elements", encode([]any{[]byte{}, map[int64]any{}, []byte{}})},
		{"tagged text", encode(codec.Tag{Number: 18, Content: "nope"})},
		{"protected not a map", encode([]any{encode("text"), map[int64]any{}, []byte{}, []byte{}})},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ExtractHeaderInfo(test.data)
			if !errors.Is(err, ErrUnreadableEnvelope) {
				t.Errorf("ExtractHeaderInfo: got %v, want ErrUnreadableEnvelope", err)
			}
		})
	}
}

func TestHeaderLocationString(t *testing.T) {
	if LocationProtected.String() != "protected" {
		t.Errorf("LocationProtected = %q", LocationProtected.String())
	}
	if HeaderLocation(9).String() != "unknown(9)" {
		t.Errorf("HeaderLocation(9) = %q", HeaderLocation(9).String())
	}
}
