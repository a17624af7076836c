// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cwt

import (
	"errors"
	"time"

	"github.com/bureau-foundation/hcert/lib/codec"
)

// Claim labels. These are protocol constants.
const (
	LabelIssuer         = 1
	LabelSubject        = 2
	LabelAudience       = 3
	LabelExpiration     = 4
	LabelNotBefore      = 5
	LabelIssuedAt       = 6
	LabelClaimID        = 7
	LabelHealthCert     = -260
	HealthCertVersionV1 = 1
)

// ErrMissingHealthClaim is returned when a claim set lacks the
// claims[-260][1] payload.
var ErrMissingHealthClaim = errors.New("cwt: missing health certificate claim")

// Claims is a CWT claim set carrying a health certificate. Zero-valued
// optional claims are omitted from the encoding.
type Claims struct {
	Issuer     string `cbor:"1,keyasint,omitempty"`
	Subject    string `cbor:"2,keyasint,omitempty"`
	Audience   string `cbor:"3,keyasint,omitempty"`
	Expiration int64  `cbor:"4,keyasint,omitempty"`
	NotBefore  int64  `cbor:"5,keyasint,omitempty"`
	IssuedAt   int64  `cbor:"6,keyasint,omitempty"`
	ClaimID    []byte `cbor:"7,keyasint,omitempty"`

	// HealthCertificate maps a version tag to the payload. Only
	// version 1 is defined.
	HealthCertificate map[int64]any `cbor:"-260,keyasint,omitempty"`
}

// Option configures optional claims for Make and MakeAt.
type Option func(*options)

type options struct {
	expiryMonths int
	issuer       string
	claimID      []byte
}

// WithExpiryMonths sets the expiration to the issue time plus months
// calendar months. Zero leaves the expiration unset.
func WithExpiryMonths(months int) Option {
	return func(o *options) { o.expiryMonths = months }
}

// WithIssuer sets the issuer claim. An empty issuer leaves it unset.
func WithIssuer(issuer string) Option {
	return func(o *options) { o.issuer = issuer }
}

// WithClaimID sets the claim id (cti).
func WithClaimID(id []byte) Option {
	return func(o *options) { o.claimID = id }
}

// Make builds a claim set for payload issued now.
func Make(payload any, opts ...Option) *Claims {
	return MakeAt(time.Now(), payload, opts...)
}

// MakeAt is like Make but stamps the claims with an explicit issue
// time. This supports deterministic testing and clock injection.
func MakeAt(now time.Time, payload any, opts ...Option) *Claims {
	var configured options
	for _, option := range opts {
		option(&configured)
	}

	claims := &Claims{
		IssuedAt: now.Unix(),
		HealthCertificate: map[int64]any{
			HealthCertVersionV1: payload,
		},
	}
	if configured.expiryMonths != 0 {
		claims.Expiration = now.AddDate(0, configured.expiryMonths, 0).Unix()
	}
	if configured.issuer != "" {
		claims.Issuer = configured.issuer
	}
	if configured.claimID != nil {
		claims.ClaimID = configured.claimID
	}
	return claims
}

// Payload returns the health-certificate payload at claims[-260][1].
func (c *Claims) Payload() (any, error) {
	if c == nil || c.HealthCertificate == nil {
		return nil, ErrMissingHealthClaim
	}
	payload, ok := c.HealthCertificate[HealthCertVersionV1]
	if !ok {
		return nil, ErrMissingHealthClaim
	}
	return payload, nil
}

// ExtractPayload is the functional form of Claims.Payload.
func ExtractPayload(claims *Claims) (any, error) {
	return claims.Payload()
}

// ExpiresAt returns the expiration as a time, and false when the claim
// set has no expiration.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c.Expiration == 0 {
		return time.Time{}, false
	}
	return time.Unix(c.Expiration, 0), true
}

// Marshal encodes the claim set with the module's deterministic CBOR
// encoding.
func (c *Claims) Marshal() ([]byte, error) {
	return codec.Marshal(c)
}

// Unmarshal decodes a CBOR claim set. Payload maps decode as
// map[string]any when every key is text, and as map[any]any otherwise.
func Unmarshal(data []byte) (*Claims, error) {
	var claims Claims
	if err := codec.Unmarshal(data, &claims); err == nil {
		return &claims, nil
	}

	claims = Claims{}
	if err := codec.UnmarshalGenericInto(data, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}
