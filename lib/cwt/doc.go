// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cwt builds and reads the CBOR Web Token claim set that wraps a
// health-certificate payload.
//
// Claims use the integer labels of RFC 8392 plus the hcert extension:
//
//	1     iss   issuer (country code)
//	2     sub   subject
//	3     aud   audience
//	4     exp   expiration, seconds since the epoch
//	5     nbf   not before
//	6     iat   issued at
//	7     cti   claim id
//	-260  hcert map from version tag 1 to the payload
//
// The payload is opaque to this package. It is reachable only through
// the two-level lookup claims[-260][1]; [Claims.Payload] fails with
// [ErrMissingHealthClaim] when either level is absent.
package cwt
