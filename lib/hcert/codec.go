// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hcert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bureau-foundation/hcert/lib/clock"
	"github.com/bureau-foundation/hcert/lib/config"
	"github.com/bureau-foundation/hcert/lib/cwt"
	"github.com/bureau-foundation/hcert/lib/envelope"
	"github.com/bureau-foundation/hcert/lib/inspect"
	"github.com/bureau-foundation/hcert/lib/transport"
	"github.com/bureau-foundation/hcert/lib/trustlist"
)

// Options configures a Codec. The zero value issues Base45 tokens with
// no expiration and no issuer, reads the real clock, discards logs,
// and verifies only against fallback certificates.
type Options struct {
	// Clock supplies issued-at times. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives legacy-format and verification warnings. Nil
	// discards them.
	Logger *slog.Logger

	// Resolver looks up issuer certificates by key id. Nil means only
	// the fallback certificate passed to each call is used.
	Resolver envelope.Resolver

	// Scheme is the transport encoding Issue uses.
	Scheme transport.Scheme

	// ExpiryMonths is added to the issued-at time to form the
	// expiration claim. Zero omits the claim.
	ExpiryMonths int

	// Issuer is the iss claim. Empty omits the claim.
	Issuer string

	// ClaimID sets a random 16-byte cti claim on every issued
	// certificate.
	ClaimID bool
}

// Codec issues and verifies tokens.
type Codec struct {
	clock        clock.Clock
	logger       *slog.Logger
	verifier     *envelope.Verifier
	scheme       transport.Scheme
	expiryMonths int
	issuer       string
	claimID      bool
}

// New creates a Codec.
func New(options Options) *Codec {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Codec{
		clock:        options.Clock,
		logger:       options.Logger,
		verifier:     envelope.NewVerifier(options.Resolver, options.Logger),
		scheme:       options.Scheme,
		expiryMonths: options.ExpiryMonths,
		issuer:       options.Issuer,
		claimID:      options.ClaimID,
	}
}

// NewFromConfig validates cfg and creates a Codec from it. When the
// configuration names a trust list, it is loaded into a trustlist
// Directory that becomes the Codec's resolver.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	options := Options{
		Logger:       logger,
		Scheme:       scheme,
		ExpiryMonths: cfg.Codec.ExpiryMonths,
		Issuer:       cfg.Codec.Issuer,
		ClaimID:      cfg.Codec.ClaimID,
	}

	if cfg.TrustList.Path != "" {
		directory := trustlist.New()
		count, err := directory.LoadFile(cfg.TrustList.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("trust list loaded",
			"path", cfg.TrustList.Path,
			"certificates", count,
			"digest", directory.Digest(),
		)
		options.Resolver = directory
	}

	return New(options), nil
}

// Issue wraps payload in a claim set using the configured issuer,
// expiry and claim id settings, signs it, and encodes it with the
// configured scheme.
func (c *Codec) Issue(payload any, certificatePEM, privateKeyPEM []byte) (string, error) {
	var options []cwt.Option
	if c.expiryMonths != 0 {
		options = append(options, cwt.WithExpiryMonths(c.expiryMonths))
	}
	if c.issuer != "" {
		options = append(options, cwt.WithIssuer(c.issuer))
	}
	if c.claimID {
		id := uuid.New()
		options = append(options, cwt.WithClaimID(id[:]))
	}

	claims := cwt.MakeAt(c.clock.Now(), payload, options...)
	token, err := c.SignAndEncode(claims, certificatePEM, privateKeyPEM, c.scheme)
	if err != nil {
		return "", err
	}

	c.logger.Debug("health certificate issued",
		"issuer", c.issuer,
		"scheme", c.scheme.String(),
		"length", len(token),
	)
	return token, nil
}

// SignAndEncode signs an already-built claim set and encodes the
// envelope as a token in scheme. Building the claims is the caller's
// responsibility.
func (c *Codec) SignAndEncode(claims any, certificatePEM, privateKeyPEM []byte, scheme transport.Scheme) (string, error) {
	data, err := envelope.Sign(claims, certificatePEM, privateKeyPEM)
	if err != nil {
		return "", err
	}
	return transport.Encode(data, scheme)
}

// DecodeAndVerify decodes a token, verifies its signature and returns
// the claim set. fallbackCertificatePEM is used when the resolver does
// not know the envelope's key id; it may be nil.
func (c *Codec) DecodeAndVerify(ctx context.Context, token string, fallbackCertificatePEM []byte) (*cwt.Claims, error) {
	data, err := transport.Decode(token, c.logger)
	if err != nil {
		return nil, err
	}
	return c.verifier.Verify(ctx, data, fallbackCertificatePEM)
}

// UnpackAndVerify is DecodeAndVerify for callers that only need to
// know whether a token is good. Every failure is logged at warning
// level and reported as (nil, false).
func (c *Codec) UnpackAndVerify(ctx context.Context, token string, fallbackCertificatePEM []byte) (*cwt.Claims, bool) {
	claims, err := c.DecodeAndVerify(ctx, token, fallbackCertificatePEM)
	if err != nil {
		c.logger.Warn("token verification failed", "error", err)
		return nil, false
	}
	return claims, true
}

// Debug decodes a token without verifying it and returns the expanded
// envelope tree (see inspect.Expand).
func (c *Codec) Debug(token string) (any, error) {
	data, err := transport.Decode(token, c.logger)
	if err != nil {
		return nil, err
	}
	return inspect.Envelope(data)
}

// HeaderInfo decodes a token without verifying it and returns the
// envelope's algorithm, key id and claimed issuer.
func (c *Codec) HeaderInfo(token string) (*envelope.HeaderInfo, error) {
	data, err := transport.Decode(token, c.logger)
	if err != nil {
		return nil, err
	}
	return envelope.ExtractHeaderInfo(data)
}
