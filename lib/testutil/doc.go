// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test fixtures for the codec packages.
//
// [ECKeyPair] and [RSAKeyPair] mint self-signed issuer certificates with
// matching PKCS#8 private keys, PEM encoded exactly as issuers hand them
// to the codec. EC pairs are generated fresh per call. The RSA pair is
// generated once per test binary because 2048-bit key generation is
// slow, and tests only ever read it.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no dependencies on other packages of this module.
package testutil
