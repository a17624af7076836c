// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trustlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// File is the on-disk trust list format.
type File struct {
	Certificates []FileEntry `yaml:"certificates" json:"certificates"`
}

// FileEntry is one trusted certificate.
type FileEntry struct {
	// KeyID is the declared kid in standard base64. Optional; when
	// present it must match the certificate.
	KeyID string `yaml:"kid,omitempty" json:"kid,omitempty"`

	// Country is the issuing country code. Informational.
	Country string `yaml:"country,omitempty" json:"country,omitempty"`

	// Certificate is the PEM-encoded X.509 certificate.
	Certificate string `yaml:"certificate" json:"certificate"`
}

// Parse decodes a trust list. Files named *.json or *.jsonc are read
// as JSON with comments and trailing commas allowed; anything else is
// read as YAML.
func Parse(name string, data []byte) (*File, error) {
	var file File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
			return nil, fmt.Errorf("parsing trust list %s: %w", name, err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing trust list %s: %w", name, err)
		}
	}
	return &file, nil
}

// LoadFile reads a trust list from path and adds every certificate in
// it. Entries are validated before any is added: a list with one bad
// entry changes nothing. Returns the number of certificates added.
func (d *Directory) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading trust list: %w", err)
	}
	file, err := Parse(path, data)
	if err != nil {
		return 0, err
	}
	return d.Load(file)
}

// Load adds every certificate in file after validating all of them. It
// returns the number of key ids that were new to the directory, so a
// certificate listed twice or already trusted is not counted.
func (d *Directory) Load(file *File) (int, error) {
	var errs []error
	for index, fileEntry := range file.Certificates {
		if strings.TrimSpace(fileEntry.Certificate) == "" {
			errs = append(errs, fmt.Errorf("entry %d: certificate is required", index))
			continue
		}
		computed, err := computeKeyID([]byte(fileEntry.Certificate))
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", index, err))
			continue
		}
		if fileEntry.KeyID != "" && fileEntry.KeyID != computed {
			errs = append(errs, fmt.Errorf("entry %d: %w: declared %s, computed %s",
				index, ErrKeyIDMismatch, fileEntry.KeyID, computed))
		}
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	added := 0
	for _, fileEntry := range file.Certificates {
		_, isNew, err := d.add([]byte(fileEntry.Certificate), fileEntry.Country)
		if err != nil {
			return added, err
		}
		if isNew {
			added++
		}
	}
	return added, nil
}
