// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inspect renders decoded envelopes for humans.
//
// [Expand] walks a CBOR-decoded value and replaces every byte string
// that itself holds CBOR with its decoded, expanded form, so the
// protected header and claim set nested inside an envelope appear as
// structures rather than opaque bytes. Byte strings that are not CBOR
// become base64 text: 8-byte strings (key ids) use the URL-safe
// alphabet without padding, everything else standard base64. Maps are
// returned as [Map], an entry list in the order the map was encoded.
//
// Nothing here verifies signatures. The output describes what an
// envelope claims, not whether the claim is authentic.
package inspect
