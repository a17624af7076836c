// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trustlist is an in-memory directory of trusted issuer
// certificates keyed by key id.
//
// A [Directory] implements envelope.Resolver: verification looks up
// the kid from an envelope header (standard base64 of the first 8
// bytes of the certificate's SHA-256) and gets back the issuer's PEM
// certificate. Key ids are always recomputed from the certificate
// itself; a list that claims a different kid for a certificate is
// rejected rather than trusted.
//
// Trust lists are loaded from YAML, JSON, or JSONC files:
//
//	certificates:
//	  - country: AT
//	    kid: "d0Ng5cYxYtc="
//	    certificate: |
//	      -----BEGIN CERTIFICATE-----
//	      ...
//
// The kid and country fields are optional. [Directory.Digest] returns
// a BLAKE3 digest over the current contents so operators can confirm
// two processes trust the same set.
package trustlist
