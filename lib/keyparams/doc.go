// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyparams derives algorithm-tagged key material from issuer
// certificates and private keys.
//
// A [Parameters] value is a closed sum type: either [*RSAParameters]
// (PS256, modulus and exponent) or [*ECParameters] (ES256, P-256 point
// and optionally the private scalar). The variant is chosen once from
// the certificate's SubjectPublicKeyInfo algorithm identifier; callers
// switch on the concrete type rather than probing for fields.
//
// # Key identifier
//
// The key id is a fingerprint, not a certificate field: the first 8
// bytes of SHA-256 over the DER-encoded certificate. Signer and verifier
// recompute it independently and must agree byte for byte.
//
// # Fixed offsets
//
// Key material is sliced out of the DER encodings at fixed offsets, the
// way already-issued certificates were produced:
//
//   - RSA: the subjectPublicKey BIT STRING holds an RSAPublicKey
//     SEQUENCE. The modulus is bytes [9, len-5) and the exponent is the
//     final 3 bytes. These offsets hold for 2048-bit moduli with the
//     exponent 65537.
//   - EC: the BIT STRING holds an uncompressed point: one format byte,
//     then 32 bytes of X and 32 bytes of Y.
//   - Private key: the PKCS#8 privateKey OCTET STRING holds an
//     ECPrivateKey SEQUENCE whose 32-byte scalar starts at offset 7.
//
// The private-key offset is P-256 specific. RSA certificates can be
// verified but not issued with; [ForSigning] rejects them with
// [ErrRSAIssuanceUnsupported].
package keyparams
