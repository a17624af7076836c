// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyparams

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/veraison/go-cose"
	"golang.org/x/crypto/cryptobyte"
	cryptobyteasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// KeyIDSize is the length of a key id in bytes.
const KeyIDSize = 8

// DER offsets into the raw key encodings. These are protocol constants
// shared with every issuer of existing certificates.
const (
	rsaModulusStart   = 9
	rsaModulusTrailer = 5
	rsaExponentSize   = 3

	ecFormatSize     = 1
	ecCoordinateSize = 32

	privateScalarStart = 7
	privateScalarSize  = 32
)

// oidRSAEncryption is the rsaEncryption algorithm identifier
// (1.2.840.113549.1.1.1). Any other SubjectPublicKeyInfo algorithm is
// treated as EC P-256.
var oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// Errors returned by the derivation functions.
var (
	ErrMalformedCertificate   = errors.New("keyparams: malformed certificate")
	ErrMalformedPrivateKey    = errors.New("keyparams: malformed private key")
	ErrRSAIssuanceUnsupported = errors.New("keyparams: issuing with an RSA key is unsupported")
)

// Parameters is the algorithm-tagged key description derived from a
// certificate. The concrete type is *RSAParameters or *ECParameters.
type Parameters interface {
	// Algorithm is the COSE algorithm the key is used with: PS256 for
	// RSA, ES256 for EC.
	Algorithm() cose.Algorithm

	// KeyID is the 8-byte certificate fingerprint.
	KeyID() []byte

	// PublicKey builds a crypto.PublicKey from the raw key material.
	PublicKey() (crypto.PublicKey, error)

	parameters()
}

// RSAParameters describes an RSA public key (PS256).
type RSAParameters struct {
	ID       []byte
	Modulus  []byte
	Exponent []byte
}

func (*RSAParameters) Algorithm() cose.Algorithm { return cose.AlgorithmPS256 }
func (p *RSAParameters) KeyID() []byte          { return p.ID }
func (*RSAParameters) parameters()              {}

// PublicKey returns the *rsa.PublicKey for the modulus and exponent.
func (p *RSAParameters) PublicKey() (crypto.PublicKey, error) {
	exponent := new(big.Int).SetBytes(p.Exponent)
	if !exponent.IsInt64() || exponent.Int64() < 3 || exponent.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("%w: RSA exponent %x out of range", ErrMalformedCertificate, p.Exponent)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(p.Modulus),
		E: int(exponent.Int64()),
	}, nil
}

// ECParameters describes a P-256 key (ES256). D is nil unless the
// parameters were derived for signing.
type ECParameters struct {
	ID     []byte
	Format byte
	X      []byte
	Y      []byte
	D      []byte
}

func (*ECParameters) Algorithm() cose.Algorithm { return cose.AlgorithmES256 }
func (p *ECParameters) KeyID() []byte          { return p.ID }
func (*ECParameters) parameters()              {}

// PublicKey returns the *ecdsa.PublicKey for the point. The point is
// validated against the curve.
func (p *ECParameters) PublicKey() (crypto.PublicKey, error) {
	point := make([]byte, 0, ecFormatSize+2*ecCoordinateSize)
	point = append(point, p.Format)
	point = append(point, p.X...)
	point = append(point, p.Y...)
	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return nil, fmt.Errorf("%w: EC point: %v", ErrMalformedCertificate, err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(p.X),
		Y:     new(big.Int).SetBytes(p.Y),
	}, nil
}

// PrivateKey returns the *ecdsa.PrivateKey for D. The public half is
// recomputed from the scalar, so a key that does not belong to the
// certificate produces signatures the certificate will not verify.
func (p *ECParameters) PrivateKey() (*ecdsa.PrivateKey, error) {
	if len(p.D) != privateScalarSize {
		return nil, fmt.Errorf("%w: no %d-byte private scalar", ErrMalformedPrivateKey, privateScalarSize)
	}
	private, err := ecdh.P256().NewPrivateKey(p.D)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPrivateKey, err)
	}
	point := private.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[ecFormatSize : ecFormatSize+ecCoordinateSize]),
			Y:     new(big.Int).SetBytes(point[ecFormatSize+ecCoordinateSize:]),
		},
		D: new(big.Int).SetBytes(p.D),
	}, nil
}

// KeyID returns the first 8 bytes of SHA-256 over the DER certificate.
func KeyID(certificateDER []byte) []byte {
	digest := sha256.Sum256(certificateDER)
	keyID := make([]byte, KeyIDSize)
	copy(keyID, digest[:KeyIDSize])
	return keyID
}

// FromCertificate parses a PEM certificate and derives its key
// parameters.
func FromCertificate(certificatePEM []byte) (Parameters, error) {
	der, err := decodePEM(certificatePEM, "CERTIFICATE")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCertificate, err)
	}
	return FromCertificateDER(der)
}

// FromCertificateDER derives key parameters from a DER certificate.
func FromCertificateDER(der []byte) (Parameters, error) {
	certificate, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCertificate, err)
	}

	algorithm, keyRaw, err := parseSubjectPublicKeyInfo(certificate.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil, err
	}

	keyID := KeyID(certificate.Raw)

	if algorithm.Equal(oidRSAEncryption) {
		if len(keyRaw) < rsaModulusStart+rsaModulusTrailer+1 {
			return nil, fmt.Errorf("%w: RSA key encoding is %d bytes", ErrMalformedCertificate, len(keyRaw))
		}
		return &RSAParameters{
			ID:       keyID,
			Modulus:  clone(keyRaw[rsaModulusStart : len(keyRaw)-rsaModulusTrailer]),
			Exponent: clone(keyRaw[len(keyRaw)-rsaExponentSize:]),
		}, nil
	}

	if len(keyRaw) < ecFormatSize+2*ecCoordinateSize {
		return nil, fmt.Errorf("%w: EC key encoding is %d bytes", ErrMalformedCertificate, len(keyRaw))
	}
	return &ECParameters{
		ID:     keyID,
		Format: keyRaw[0],
		X:      clone(keyRaw[ecFormatSize : ecFormatSize+ecCoordinateSize]),
		Y:      clone(keyRaw[ecFormatSize+ecCoordinateSize : ecFormatSize+2*ecCoordinateSize]),
	}, nil
}

// PrivateScalar extracts the 32-byte EC private scalar from a PEM
// PKCS#8 private key.
func PrivateScalar(privateKeyPEM []byte) ([]byte, error) {
	der, err := decodePEM(privateKeyPEM, "PRIVATE KEY")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPrivateKey, err)
	}

	keyRaw, err := parsePKCS8(der)
	if err != nil {
		return nil, err
	}
	if len(keyRaw) < privateScalarStart+privateScalarSize {
		return nil, fmt.Errorf("%w: private key encoding is %d bytes", ErrMalformedPrivateKey, len(keyRaw))
	}
	return clone(keyRaw[privateScalarStart : privateScalarStart+privateScalarSize]), nil
}

// ForSigning derives EC parameters carrying the private scalar. RSA
// certificates are rejected with ErrRSAIssuanceUnsupported.
func ForSigning(certificatePEM, privateKeyPEM []byte) (*ECParameters, error) {
	parameters, err := FromCertificate(certificatePEM)
	if err != nil {
		return nil, err
	}

	switch typed := parameters.(type) {
	case *RSAParameters:
		return nil, ErrRSAIssuanceUnsupported
	case *ECParameters:
		scalar, err := PrivateScalar(privateKeyPEM)
		if err != nil {
			return nil, err
		}
		signing := *typed
		signing.D = scalar
		return &signing, nil
	default:
		return nil, fmt.Errorf("keyparams: unexpected parameters type %T", parameters)
	}
}

// decodePEM returns the DER bytes of the first PEM block, which must
// have the given type.
func decodePEM(data []byte, blockType string) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if block.Type != blockType {
		return nil, fmt.Errorf("PEM block type %q, want %q", block.Type, blockType)
	}
	return block.Bytes, nil
}

// parseSubjectPublicKeyInfo reads the algorithm OID and the contents of
// the subjectPublicKey BIT STRING.
//
//	SubjectPublicKeyInfo ::= SEQUENCE {
//	    algorithm         AlgorithmIdentifier,
//	    subjectPublicKey  BIT STRING }
func parseSubjectPublicKeyInfo(spki []byte) (asn1.ObjectIdentifier, []byte, error) {
	input := cryptobyte.String(spki)
	var (
		info       cryptobyte.String
		algorithm  cryptobyte.String
		identifier asn1.ObjectIdentifier
		publicKey  asn1.BitString
	)
	if !input.ReadASN1(&info, cryptobyteasn1.SEQUENCE) ||
		!info.ReadASN1(&algorithm, cryptobyteasn1.SEQUENCE) ||
		!algorithm.ReadASN1ObjectIdentifier(&identifier) ||
		!info.ReadASN1BitString(&publicKey) {
		return nil, nil, fmt.Errorf("%w: unreadable SubjectPublicKeyInfo", ErrMalformedCertificate)
	}
	return identifier, publicKey.RightAlign(), nil
}

// parsePKCS8 returns the contents of the privateKey OCTET STRING.
//
//	PrivateKeyInfo ::= SEQUENCE {
//	    version              INTEGER,
//	    privateKeyAlgorithm  AlgorithmIdentifier,
//	    privateKey           OCTET STRING,
//	    attributes           [0] IMPLICIT Attributes OPTIONAL }
func parsePKCS8(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var (
		info      cryptobyte.String
		version   int64
		algorithm cryptobyte.String
		key       cryptobyte.String
	)
	if !input.ReadASN1(&info, cryptobyteasn1.SEQUENCE) ||
		!info.ReadASN1Integer(&version) ||
		!info.ReadASN1(&algorithm, cryptobyteasn1.SEQUENCE) ||
		!info.ReadASN1(&key, cryptobyteasn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: unreadable PKCS#8 structure", ErrMalformedPrivateKey)
	}
	return []byte(key), nil
}

func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}
