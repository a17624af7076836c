// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration for the
// health-certificate codec.
//
// Every CBOR byte the module produces goes through [Marshal], which uses
// Core Deterministic Encoding (RFC 8949 §4.2). Decoding comes in two
// flavours:
//
//   - [Unmarshal] for certificate payloads and claim sets. Untyped maps
//     become map[string]any, matching the JSON shape of health
//     certificate documents.
//   - [UnmarshalGeneric] for structures keyed by integer labels (COSE
//     headers, the COSE_Sign1 array) and for the debug decoder, which
//     must accept whatever an issuer put on the wire.
//
// Both decoders turn every CBOR integer into int64, so callers compare
// labels such as 1 (alg), 4 (kid) or -260 (hcert) against int64 only.
package codec
