// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"crypto/rand"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/bureau-foundation/hcert/lib/codec"
	"github.com/bureau-foundation/hcert/lib/keyparams"
)

// Sign CBOR-encodes claims and signs them with the private key,
// returning a tagged COSE_Sign1 envelope. The protected header carries
// the algorithm and the certificate's key id; the unprotected header is
// empty.
//
// claims is normally a *cwt.Claims but any CBOR-encodable value is
// signed as given. ES256 signatures are randomized, so two calls with
// identical inputs produce different signatures.
func Sign(claims any, certificatePEM, privateKeyPEM []byte) ([]byte, error) {
	parameters, err := keyparams.ForSigning(certificatePEM, privateKeyPEM)
	if err != nil {
		return nil, err
	}

	privateKey, err := parameters.PrivateKey()
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(parameters.Algorithm(), privateKey)
	if err != nil {
		return nil, fmt.Errorf("envelope: creating %v signer: %w", parameters.Algorithm(), err)
	}

	payload, err := codec.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding claims: %w", err)
	}

	message := cose.NewSign1Message()
	message.Headers.Protected.SetAlgorithm(parameters.Algorithm())
	message.Headers.Protected[cose.HeaderLabelKeyID] = parameters.KeyID()
	message.Payload = payload

	if err := message.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("envelope: signing: %w", err)
	}

	data, err := message.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding COSE_Sign1: %w", err)
	}
	return data, nil
}
