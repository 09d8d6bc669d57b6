package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_MissingServerURI(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.ServerURI = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for missing server URI")
	}
}

func TestValidate_MissingTenant(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Tenant = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for missing tenant")
	}
}

func TestValidate_InvalidAuthType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Auth.Type = "kerberos5"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown auth type")
	}
}

func TestValidate_KeytabAuthAllowsMissingKeytabPath(t *testing.T) {
	// The keytab file is optional: without one the client falls back to
	// the ambient ticket cache. Strategy completeness (principal) is the
	// catalog client's job at connect time.
	cfg := GetDefaultConfig()
	cfg.Metadata.Auth.Type = "keytab"
	cfg.Metadata.Auth.Principal = "svc@REALM"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected keytab auth without keytab_path to validate, got: %v", err)
	}

	cfg.Metadata.Auth.KeytabPath = "/etc/filesetfs/svc.keytab"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected keytab auth with keytab_path to validate, got: %v", err)
	}
}

func TestValidate_NonPositiveCacheBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Cache.MaxCapacity = 0 }},
		{"negative capacity", func(c *Config) { c.Cache.MaxCapacity = -5 }},
		{"zero expiry", func(c *Config) { c.Cache.ExpireAfterAccess = 0 }},
		{"negative expiry", func(c *Config) { c.Cache.ExpireAfterAccess = -time.Minute }},
		{"zero sweep interval", func(c *Config) { c.Cache.SweepInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Drivers.Enabled = []string{"file", "tape"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown driver")
	}
}

func TestValidate_DuplicateDriver(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Drivers.Enabled = []string{"file", "file"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for duplicate driver")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Expected duplicate driver error, got: %v", err)
	}
}

func TestValidate_NoDriversEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Drivers.Enabled = []string{}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for empty driver list")
	}
}
