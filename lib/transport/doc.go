// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport converts signed envelopes to and from the compact
// text tokens carried in QR codes and other low-capacity channels.
//
// A token is the literal prefix "HC1:" followed by the zlib-compressed
// envelope in one of two textual schemes: Base45 (the default, sized
// for QR alphanumeric mode) or Base32. [Encode] always compresses.
// [Decode] accepts the legacy forms older issuers produced: a missing
// prefix, a prefix without its colon, and uncompressed envelopes. Each
// legacy acceptance is logged as a warning on the caller's logger.
//
// Text that matches neither scheme's alphabet is rejected with
// [ErrUnrecognizedEncoding] rather than passed downstream.
package transport
