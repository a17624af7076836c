// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope signs claim sets into COSE_Sign1 envelopes and
// verifies them.
//
// # Wire format
//
// An envelope is a CBOR array of four elements, normally wrapped in
// tag 18 (COSE_Sign1_Tagged):
//
//	[ protected:   bstr .cbor {1: alg, 4: kid},
//	  unprotected: {},
//	  payload:     bstr .cbor claims,
//	  signature:   bstr ]
//
// [Sign] always writes the tagged form with alg and kid in the
// protected header. Readers accept what older issuers produced: the
// untagged array, alg and kid in either header, and header maps that
// arrive as encoded bytes or already decoded. Header lookup goes through
// one normalization step that decodes both headers and lets protected
// values win.
//
// # Verification
//
// [Verifier.Verify] reads the kid without touching the signature, asks
// the [Resolver] for a trusted certificate under the standard base64 of
// the kid, and falls back to a caller-supplied certificate when the
// resolver has none. The verification algorithm comes from the
// certificate, not from the envelope. The signature primitive itself is
// github.com/veraison/go-cose.
//
// [Verifier.Valid] is the boolean convenience: every failure (parse,
// key lookup, cryptographic mismatch) is logged and reported as false.
//
// Only EC P-256 keys can sign. RSA certificates verify (PS256) but
// [Sign] rejects them with keyparams.ErrRSAIssuanceUnsupported.
package envelope
