// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/hcert/lib/transport"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the codec configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Codec configures token issuance.
	Codec CodecConfig `yaml:"codec"`

	// TrustList configures the trusted issuer certificates.
	TrustList TrustListConfig `yaml:"trust_list"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Codec     *CodecOverrides  `yaml:"codec,omitempty"`
	TrustList *TrustListConfig `yaml:"trust_list,omitempty"`
}

// CodecOverrides mirrors CodecConfig with pointer fields, so an
// override can set a number to zero or a flag to false.
type CodecOverrides struct {
	Scheme       string `yaml:"scheme,omitempty"`
	ExpiryMonths *int   `yaml:"expiry_months,omitempty"`
	Issuer       string `yaml:"issuer,omitempty"`
	ClaimID      *bool  `yaml:"claim_id,omitempty"`
}

// CodecConfig configures token issuance.
type CodecConfig struct {
	// Scheme is the transport encoding for issued tokens.
	// Values: "base45", "base32". Default: base45
	Scheme string `yaml:"scheme"`

	// ExpiryMonths is how many calendar months after issuance a
	// certificate expires. Zero omits the expiration claim.
	// Default: 12
	ExpiryMonths int `yaml:"expiry_months"`

	// Issuer is the iss claim, normally an ISO 3166 country code.
	// Default: empty (claim omitted)
	Issuer string `yaml:"issuer"`

	// ClaimID sets a random 16-byte cti claim on every issued
	// certificate. Default: false (development), true (production)
	ClaimID bool `yaml:"claim_id"`
}

// TrustListConfig configures the trusted issuer certificates.
type TrustListConfig struct {
	// Path is a YAML, JSON, or JSONC trust list loaded at startup.
	// Default: empty (no directory; only fallback certificates verify)
	Path string `yaml:"path"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Codec: CodecConfig{
			Scheme:       transport.Base45.String(),
			ExpiryMonths: 12,
		},
	}
}

// Load loads configuration from HCERT_CONFIG environment variable.
//
// There are no fallbacks or defaults - if HCERT_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("HCERT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HCERT_CONFIG environment variable not set; " +
			"set it to the path of your hcert.yaml config file")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// variables in the trust list path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: every certificate carries a claim id.
		if overrides == nil {
			claimID := true
			overrides = &ConfigOverrides{
				Codec: &CodecOverrides{ClaimID: &claimID},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Codec != nil {
		if overrides.Codec.Scheme != "" {
			c.Codec.Scheme = overrides.Codec.Scheme
		}
		if overrides.Codec.ExpiryMonths != nil {
			c.Codec.ExpiryMonths = *overrides.Codec.ExpiryMonths
		}
		if overrides.Codec.Issuer != "" {
			c.Codec.Issuer = overrides.Codec.Issuer
		}
		if overrides.Codec.ClaimID != nil {
			c.Codec.ClaimID = *overrides.Codec.ClaimID
		}
	}

	if overrides.TrustList != nil {
		if overrides.TrustList.Path != "" {
			c.TrustList.Path = overrides.TrustList.Path
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.TrustList.Path = expandVars(c.TrustList.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Scheme returns the parsed transport scheme.
func (c *Config) Scheme() (transport.Scheme, error) {
	return transport.ParseScheme(c.Codec.Scheme)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if _, err := c.Scheme(); err != nil {
		errs = append(errs, fmt.Errorf("codec.scheme: %w", err))
	}

	if c.Codec.ExpiryMonths < 0 {
		errs = append(errs, fmt.Errorf("codec.expiry_months must not be negative, got %d", c.Codec.ExpiryMonths))
	}

	if c.TrustList.Path != "" {
		if _, err := os.Stat(c.TrustList.Path); err != nil {
			errs = append(errs, fmt.Errorf("trust_list.path: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
