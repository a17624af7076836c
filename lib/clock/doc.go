// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Code that stamps claims accepts a Clock instead of calling time.Now
// directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a clock that moves only when the
// test says so:
//
//	c := clock.Fake(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC))
//	codec := hcert.New(hcert.Options{Clock: c})
//	c.Advance(24 * time.Hour)
package clock
