package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEKEEP_PG_DSN", "postgres://localhost/gatekeep")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinUsernameLen != 3 || cfg.MinSecretLen != 8 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DirectoryLogin || cfg.Debug {
		t.Fatalf("toggles must default to off: %+v", cfg)
	}

	policy := cfg.Policy()
	if policy.MinUsernameLen != 3 || policy.Directory.Enabled {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestLoadDirectory(t *testing.T) {
	t.Setenv("GATEKEEP_DIRECTORY_LOGIN", "true")
	t.Setenv("GATEKEEP_DIRECTORY_SUFFIX", "@corp")
	t.Setenv("GATEKEEP_DIRECTORY_GROUP", "login-users")
	t.Setenv("GATEKEEP_LDAP_URL", "ldap://ldap.corp:389")
	t.Setenv("GATEKEEP_LDAP_BASE_DN", "dc=corp,dc=example")
	t.Setenv("GATEKEEP_LDAP_USER_DN_FORMAT", "uid=%s,ou=people,dc=corp,dc=example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	policy := cfg.Policy()
	if !policy.Directory.Enabled || policy.Directory.Suffix != "@corp" || policy.Directory.Group != "login-users" {
		t.Fatalf("unexpected directory policy %+v", policy.Directory)
	}
	ldapCfg := cfg.LDAP()
	if ldapCfg.URL != "ldap://ldap.corp:389" || !strings.Contains(ldapCfg.UserDNFormat, "%s") {
		t.Fatalf("unexpected ldap config %+v", ldapCfg)
	}
}

func TestLoadDirectoryIncomplete(t *testing.T) {
	t.Setenv("GATEKEEP_DIRECTORY_LOGIN", "true")
	t.Setenv("GATEKEEP_DIRECTORY_SUFFIX", "@corp")

	if _, err := Load(); err == nil {
		t.Fatal("directory login without group/ldap settings must fail")
	}
}

func TestLoadRejectsZeroLengths(t *testing.T) {
	t.Setenv("GATEKEEP_MIN_USERNAME_LEN", "0")
	if _, err := Load(); err == nil {
		t.Fatal("zero minimum username length must fail")
	}
}
