// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"sync/atomic"
	"time"
)

// TB is the subset of testing.TB the fixtures need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// KeyPair is an issuer certificate and its private key.
type KeyPair struct {
	// CertificatePEM is the self-signed certificate, PEM type
	// "CERTIFICATE".
	CertificatePEM []byte

	// CertificateDER is the DER encoding inside CertificatePEM.
	CertificateDER []byte

	// PrivateKeyPEM is the PKCS#8 private key, PEM type "PRIVATE KEY".
	PrivateKeyPEM []byte

	// Signer is the parsed private key, for tests that need to sign
	// outside the codec.
	Signer crypto.Signer
}

// ECKeyPair returns a fresh P-256 issuer certificate and key.
func ECKeyPair(t TB) *KeyPair {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating P-256 key: %v", err)
	}
	return selfSigned(t, key, "DSC EC test issuer")
}

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
	rsaErr  error
)

// RSAKeyPair returns a 2048-bit RSA issuer certificate and key. The key
// is shared by every caller in the test binary; the certificate is
// minted per call.
func RSAKeyPair(t TB) *KeyPair {
	t.Helper()
	rsaOnce.Do(func() {
		rsaKey, rsaErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if rsaErr != nil {
		t.Fatalf("generating RSA key: %v", rsaErr)
	}
	return selfSigned(t, rsaKey, "DSC RSA test issuer")
}

var serialCounter atomic.Int64

func selfSigned(t TB, key crypto.Signer, commonName string) *KeyPair {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(serialCounter.Add(1)),
		Subject: pkix.Name{
			CommonName: commonName,
			Country:    []string{"AT"},
		},
		NotBefore: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling PKCS#8 key: %v", err)
	}

	return &KeyPair{
		CertificatePEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		CertificateDER: der,
		PrivateKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		Signer:         key,
	}
}
