// Package config loads the externally supplied configuration surface from
// the environment. The credential core itself only ever sees the derived
// auth.Policy; process bootstrap stays out of it.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"gatekeep.org/internal/auth"
	"gatekeep.org/internal/directory/ldapdir"
)

// Config is the full environment-driven configuration.
type Config struct {
	DatabaseDSN string `env:"GATEKEEP_PG_DSN"`
	Debug       bool   `env:"GATEKEEP_DEBUG" envDefault:"false"`

	MinUsernameLen int `env:"GATEKEEP_MIN_USERNAME_LEN" envDefault:"3"`
	MinSecretLen   int `env:"GATEKEEP_MIN_SECRET_LEN" envDefault:"8"`

	DirectoryLogin  bool   `env:"GATEKEEP_DIRECTORY_LOGIN" envDefault:"false"`
	DirectorySuffix string `env:"GATEKEEP_DIRECTORY_SUFFIX"`
	DirectoryGroup  string `env:"GATEKEEP_DIRECTORY_GROUP"`

	LDAPURL          string        `env:"GATEKEEP_LDAP_URL"`
	LDAPBaseDN       string        `env:"GATEKEEP_LDAP_BASE_DN"`
	LDAPUserDNFormat string        `env:"GATEKEEP_LDAP_USER_DN_FORMAT"`
	LDAPStartTLS     bool          `env:"GATEKEEP_LDAP_STARTTLS" envDefault:"false"`
	LDAPTimeout      time.Duration `env:"GATEKEEP_LDAP_TIMEOUT" envDefault:"5s"`
}

// Load parses and validates configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinUsernameLen < 1 {
		return errors.New("GATEKEEP_MIN_USERNAME_LEN must be at least 1")
	}
	if c.MinSecretLen < 1 {
		return errors.New("GATEKEEP_MIN_SECRET_LEN must be at least 1")
	}
	if c.DirectoryLogin {
		if c.DirectorySuffix == "" {
			return errors.New("GATEKEEP_DIRECTORY_SUFFIX is required when directory login is enabled")
		}
		if c.DirectoryGroup == "" {
			return errors.New("GATEKEEP_DIRECTORY_GROUP is required when directory login is enabled")
		}
		if c.LDAPURL == "" {
			return errors.New("GATEKEEP_LDAP_URL is required when directory login is enabled")
		}
		if c.LDAPUserDNFormat == "" {
			return errors.New("GATEKEEP_LDAP_USER_DN_FORMAT is required when directory login is enabled")
		}
	}
	return nil
}

// Policy derives the read-only policy the credential core consumes.
func (c Config) Policy() auth.Policy {
	return auth.Policy{
		MinUsernameLen: c.MinUsernameLen,
		MinSecretLen:   c.MinSecretLen,
		Directory: auth.DirectoryPolicy{
			Enabled: c.DirectoryLogin,
			Suffix:  c.DirectorySuffix,
			Group:   c.DirectoryGroup,
		},
	}
}

// LDAP derives the directory adapter configuration.
func (c Config) LDAP() ldapdir.Config {
	return ldapdir.Config{
		URL:          c.LDAPURL,
		BaseDN:       c.LDAPBaseDN,
		UserDNFormat: c.LDAPUserDNFormat,
		StartTLS:     c.LDAPStartTLS,
		Timeout:      c.LDAPTimeout,
	}
}
