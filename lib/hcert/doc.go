// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hcert issues and verifies digital health-certificate tokens.
//
// A [Codec] composes the pipeline: claims are built around a payload
// (lib/cwt), signed into a COSE_Sign1 envelope (lib/envelope), and
// compressed and text-encoded into an "HC1:" token (lib/transport).
// Verification runs the same steps in reverse, resolving the issuer
// certificate by key id through an envelope.Resolver, typically a
// lib/trustlist Directory.
//
// Two families of operations exist. [Codec.Issue], [Codec.SignAndEncode]
// and [Codec.DecodeAndVerify] return errors whose sentinels identify
// the failing stage. [Codec.UnpackAndVerify] reports only success or
// failure, logging the cause, for callers that treat every bad token
// alike.
//
// A Codec holds no mutable state after construction; all methods are
// safe for concurrent use when the Resolver is.
package hcert
