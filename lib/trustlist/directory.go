// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trustlist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/hcert/lib/envelope"
	"github.com/bureau-foundation/hcert/lib/keyparams"
)

var (
	// ErrNotFound is returned by Resolve for an unknown key id. It
	// wraps envelope.ErrKeyNotFound so verifiers fall back to the
	// caller's certificate.
	ErrNotFound = fmt.Errorf("trustlist: %w", envelope.ErrKeyNotFound)

	// ErrKeyIDMismatch is returned when a declared key id does not
	// match the one computed from the certificate.
	ErrKeyIDMismatch = errors.New("trustlist: declared kid does not match certificate")
)

// digestDomainKey separates trust-list digests from any other BLAKE3
// use of the same bytes. ASCII "hcert.trustlist", zero-padded.
var digestDomainKey = [32]byte{
	'h', 'c', 'e', 'r', 't', '.', 't', 'r', 'u', 's', 't', 'l', 'i', 's', 't', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

type entry struct {
	certificatePEM []byte
	country        string
}

// Directory is a thread-safe kid → certificate map. The zero value is
// not usable; create one with New.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		entries: make(map[string]entry),
	}
}

var _ envelope.Resolver = (*Directory)(nil)

// Add trusts a certificate under its computed key id and returns that
// id in standard base64. Adding the same certificate twice is a no-op.
func (d *Directory) Add(certificatePEM []byte) (string, error) {
	keyID, _, err := d.add(certificatePEM, "")
	return keyID, err
}

// AddWithKeyID trusts a certificate whose key id has been declared by
// an outside source. The declared id must equal the computed one.
func (d *Directory) AddWithKeyID(keyID string, certificatePEM []byte) error {
	computed, err := computeKeyID(certificatePEM)
	if err != nil {
		return err
	}
	if keyID != computed {
		return fmt.Errorf("%w: declared %s, computed %s", ErrKeyIDMismatch, keyID, computed)
	}
	_, _, err = d.add(certificatePEM, "")
	return err
}

// add stores the certificate under its computed key id and reports
// whether the id was new to the directory.
func (d *Directory) add(certificatePEM []byte, country string) (string, bool, error) {
	keyID, err := computeKeyID(certificatePEM)
	if err != nil {
		return "", false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, existed := d.entries[keyID]
	d.entries[keyID] = entry{
		certificatePEM: bytes.Clone(certificatePEM),
		country:        country,
	}
	return keyID, !existed, nil
}

// Resolve returns the certificate trusted under keyID, or an error
// wrapping ErrNotFound.
func (d *Directory) Resolve(ctx context.Context, keyID string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	found, exists := d.entries[keyID]
	if !exists {
		return nil, fmt.Errorf("%w: kid %s", ErrNotFound, keyID)
	}
	return bytes.Clone(found.certificatePEM), nil
}

// Country returns the issuing country recorded for keyID, or "" when
// none was recorded.
func (d *Directory) Country(keyID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[keyID].country
}

// Remove stops trusting keyID. It reports whether the id was present.
func (d *Directory) Remove(keyID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.entries[keyID]
	delete(d.entries, keyID)
	return exists
}

// KeyIDs returns the trusted key ids in sorted order.
func (d *Directory) KeyIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keyIDs := make([]string, 0, len(d.entries))
	for keyID := range d.entries {
		keyIDs = append(keyIDs, keyID)
	}
	slices.Sort(keyIDs)
	return keyIDs
}

// Len returns the number of trusted certificates.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Digest returns the hex BLAKE3 keyed digest of the directory
// contents. Entries are hashed in key id order, so the digest depends
// only on which certificates are trusted, not on insertion order.
func (d *Directory) Digest() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keyIDs := make([]string, 0, len(d.entries))
	for keyID := range d.entries {
		keyIDs = append(keyIDs, keyID)
	}
	slices.Sort(keyIDs)

	hasher, err := blake3.NewKeyed(digestDomainKey[:])
	if err != nil {
		panic("trustlist: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, keyID := range keyIDs {
		hasher.Write([]byte(keyID))
		hasher.Write([]byte{0})
		hasher.Write(d.entries[keyID].certificatePEM)
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// computeKeyID parses certificatePEM and returns its key id in
// standard base64, the form envelope verifiers resolve by.
func computeKeyID(certificatePEM []byte) (string, error) {
	parameters, err := keyparams.FromCertificate(certificatePEM)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(parameters.KeyID()), nil
}
