package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beachbev/beachbev-site/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Site.HTTPSPort != DefaultHTTPSPort {
		t.Errorf("Site.HTTPSPort = %d, want %d", cfg.Site.HTTPSPort, DefaultHTTPSPort)
	}
	if cfg.Site.HTTPPort != DefaultHTTPPort {
		t.Errorf("Site.HTTPPort = %d, want %d", cfg.Site.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Storage.Bucket != DefaultBucket {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, DefaultBucket)
	}
	if cfg.Storage.Region != DefaultRegion {
		t.Errorf("Storage.Region = %q, want %q", cfg.Storage.Region, DefaultRegion)
	}
	if cfg.Storage.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("Storage.MaxUploadBytes = %d, want %d", cfg.Storage.MaxUploadBytes, DefaultMaxUploadBytes)
	}
	if cfg.Client.Heartbeat != 30*time.Second {
		t.Errorf("Client.Heartbeat = %v, want 30s", cfg.Client.Heartbeat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	var coded *errors.Error
	if !stderrors.As(err, &coded) || coded.Code != errors.CodeConfigNotFound {
		t.Fatalf("Load(missing) error = %v, want %s", err, errors.CodeConfigNotFound)
	}

	configYAML := `
site:
  https_port: 8443
  http_port: 8080
  static_dir: www
  read_timeout: 5s
client:
  url: wss://example.test/ws
  heartbeat: 0s
reconnect:
  max_attempts: 0
storage:
  bucket: other-bucket
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.HTTPSPort != 8443 {
		t.Errorf("Site.HTTPSPort = %d, want 8443", cfg.Site.HTTPSPort)
	}
	if cfg.Site.HTTPPort != 8080 {
		t.Errorf("Site.HTTPPort = %d, want 8080", cfg.Site.HTTPPort)
	}
	if cfg.Site.ReadTimeout != 5*time.Second {
		t.Errorf("Site.ReadTimeout = %v, want 5s", cfg.Site.ReadTimeout)
	}
	if cfg.Client.URL != "wss://example.test/ws" {
		t.Errorf("Client.URL = %q", cfg.Client.URL)
	}
	if cfg.Client.Heartbeat != 0 {
		t.Errorf("Client.Heartbeat = %v, want 0", cfg.Client.Heartbeat)
	}
	if cfg.Reconnect.MaxAttempts != 0 {
		t.Errorf("Reconnect.MaxAttempts = %d, want 0", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Storage.Bucket != "other-bucket" {
		t.Errorf("Storage.Bucket = %q, want other-bucket", cfg.Storage.Bucket)
	}

	// Unset values keep their defaults.
	if cfg.Storage.Region != DefaultRegion {
		t.Errorf("Storage.Region = %q, want %q", cfg.Storage.Region, DefaultRegion)
	}
	if cfg.Client.RequestTimeout != 15*time.Second {
		t.Errorf("Client.RequestTimeout = %v, want 15s", cfg.Client.RequestTimeout)
	}

	if cfg.Dir() != tmpDir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}
	if want := filepath.Join(tmpDir, "www"); cfg.StaticPath() != want {
		t.Errorf("StaticPath() = %q, want %q", cfg.StaticPath(), want)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("site: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	var coded *errors.Error
	if !stderrors.As(err, &coded) || coded.Code != errors.CodeConfigInvalid {
		t.Fatalf("LoadFile() error = %v, want %s", err, errors.CodeConfigInvalid)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_CERT_DIR", "/etc/certs")

	path := filepath.Join(t.TempDir(), ConfigFileName)
	configYAML := "site:\n  cert_file: ${TEST_CERT_DIR}/fullchain.pem\n  key_file: ${TEST_CERT_DIR}/privkey.pem\n"
	if err := os.WriteFile(path, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Site.CertFile != "/etc/certs/fullchain.pem" {
		t.Errorf("Site.CertFile = %q", cfg.Site.CertFile)
	}
	if cfg.Site.KeyFile != "/etc/certs/privkey.pem" {
		t.Errorf("Site.KeyFile = %q", cfg.Site.KeyFile)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BEACHBEV_SITE_HTTPS_PORT", "9443")
	t.Setenv("BEACHBEV_SITE_INSECURE", "true")
	t.Setenv("BEACHBEV_CLIENT_URL", "ws://localhost:9000/")
	t.Setenv("BEACHBEV_CLIENT_REQUEST_TIMEOUT", "2s")
	t.Setenv("BEACHBEV_STORAGE_REGION", "eu-west-1")
	t.Setenv("BEACHBEV_RECONNECT_MAX_ATTEMPTS", "not-a-number")

	cfg := New()
	cfg.ApplyEnv()

	if cfg.Site.HTTPSPort != 9443 {
		t.Errorf("Site.HTTPSPort = %d, want 9443", cfg.Site.HTTPSPort)
	}
	if !cfg.Site.Insecure {
		t.Error("Site.Insecure should be true")
	}
	if cfg.Client.URL != "ws://localhost:9000/" {
		t.Errorf("Client.URL = %q", cfg.Client.URL)
	}
	if cfg.Client.RequestTimeout != 2*time.Second {
		t.Errorf("Client.RequestTimeout = %v, want 2s", cfg.Client.RequestTimeout)
	}
	if cfg.Storage.Region != "eu-west-1" {
		t.Errorf("Storage.Region = %q, want eu-west-1", cfg.Storage.Region)
	}
	// Unparseable values are ignored.
	if cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("Reconnect.MaxAttempts = %d, want 5", cfg.Reconnect.MaxAttempts)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("BEACHBEV_STORAGE_BUCKET", "from-env")

	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("storage:\n  bucket: from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Bucket != "from-env" {
		t.Errorf("Storage.Bucket = %q, want from-env", cfg.Storage.Bucket)
	}
}

func TestResolve(t *testing.T) {
	// The package directory has no beachbev.yaml.
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error = %v", err)
	}
	if cfg.Storage.Bucket != DefaultBucket {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, DefaultBucket)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}

	_, err = Resolve(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Resolve(missing path) should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		detail string
	}{
		{"https port zero", func(c *Config) { c.Site.HTTPSPort = 0 }, "https_port"},
		{"https port range", func(c *Config) { c.Site.HTTPSPort = 70000 }, "https_port"},
		{"http port range", func(c *Config) { c.Site.HTTPPort = -1 }, "http_port"},
		{"same ports", func(c *Config) { c.Site.HTTPPort = 443 }, "must differ"},
		{"cert without key", func(c *Config) { c.Site.CertFile = "cert.pem" }, "together"},
		{"negative attempts", func(c *Config) { c.Reconnect.MaxAttempts = -1 }, "max_attempts"},
		{"delay order", func(c *Config) { c.Reconnect.MaxDelay = time.Millisecond }, "max_delay"},
		{"negative timeout", func(c *Config) { c.Client.RequestTimeout = -time.Second }, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)

			err := cfg.Validate()
			var coded *errors.Error
			if !stderrors.As(err, &coded) {
				t.Fatalf("Validate() error = %v, want *errors.Error", err)
			}
			if coded.Code != errors.CodeConfigValue {
				t.Errorf("Code = %s, want %s", coded.Code, errors.CodeConfigValue)
			}
			if !strings.Contains(coded.Detail, tt.detail) {
				t.Errorf("Detail = %q, want it to mention %q", coded.Detail, tt.detail)
			}
		})
	}

	t.Run("http disabled", func(t *testing.T) {
		cfg := New()
		cfg.Site.HTTPPort = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}
