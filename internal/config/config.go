package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beachbev/beachbev-site/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "beachbev.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BEACHBEV_"

	DefaultHTTPSPort = 443
	DefaultHTTPPort  = 80
	DefaultStaticDir = "public"

	DefaultBucket         = "beachbev-resumes"
	DefaultRegion         = "us-west-1"
	DefaultMaxListKeys    = 100
	DefaultMaxUploadBytes = 2_000_000
)

// Config is the complete beachbev.yaml configuration.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Client    ClientConfig    `yaml:"client"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SiteConfig configures the static site server.
type SiteConfig struct {
	// Host is the address both listeners bind to ("" for all interfaces).
	Host string `yaml:"host"`

	// HTTPSPort serves the static directory over TLS.
	HTTPSPort int `yaml:"https_port"`

	// HTTPPort answers every request with a redirect to HTTPS.
	// 0 disables the plaintext listener.
	HTTPPort int `yaml:"http_port"`

	// StaticDir is the directory of public assets.
	StaticDir string `yaml:"static_dir"`

	// CertFile and KeyFile hold the PEM certificate chain and key.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Insecure serves the static directory over plain HTTP on HTTPSPort.
	// Used for local development without certificates.
	Insecure bool `yaml:"insecure"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ClientConfig configures the packet connection.
type ClientConfig struct {
	// URL is the websocket endpoint of the packet server.
	URL string `yaml:"url"`

	// Origin is sent with the websocket handshake.
	Origin string `yaml:"origin"`

	// SchemaFile is an optional FileDescriptorSet replacing the built-in
	// packet schema.
	SchemaFile string `yaml:"schema_file"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	// Heartbeat is the ping interval. 0 disables pings.
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// ReconnectConfig bounds automatic reconnection.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed reconnects before
	// giving up. 0 disables reconnection.
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// StorageConfig configures résumé object storage.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint (S3-compatible stores, tests).
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`

	// MaxAttempts bounds SDK retries of transient failures.
	MaxAttempts int `yaml:"max_attempts"`

	MaxListKeys    int32 `yaml:"max_list_keys"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Development selects zap's development config. APP_ENV=development
	// has the same effect.
	Development bool `yaml:"development"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Site: SiteConfig{
			HTTPSPort:       DefaultHTTPSPort,
			HTTPPort:        DefaultHTTPPort,
			StaticDir:       DefaultStaticDir,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   15 * time.Second,
			WriteTimeout:     10 * time.Second,
			Heartbeat:        30 * time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
		},
		Storage: StorageConfig{
			Bucket:         DefaultBucket,
			Region:         DefaultRegion,
			MaxAttempts:    3,
			MaxListKeys:    DefaultMaxListKeys,
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

// Load reads beachbev.yaml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path. ${VAR} references in the file
// are expanded from the environment before parsing, and BEACHBEV_*
// variables override parsed values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that the file is valid YAML")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnv()

	return cfg, nil
}

// Resolve loads path, or beachbev.yaml from the working directory when path
// is empty. With no file at all it returns the defaults with environment
// overrides applied.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if Exists(".") {
		return Load(".")
	}
	cfg := New()
	cfg.ApplyEnv()
	return cfg, nil
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults restores defaults for values a file explicitly zeroed where
// zero is not meaningful.
func (c *Config) applyDefaults() {
	d := New()
	if c.Site.HTTPSPort == 0 {
		c.Site.HTTPSPort = d.Site.HTTPSPort
	}
	if c.Site.StaticDir == "" {
		c.Site.StaticDir = d.Site.StaticDir
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = d.Storage.Bucket
	}
	if c.Storage.Region == "" {
		c.Storage.Region = d.Storage.Region
	}
	if c.Storage.MaxAttempts <= 0 {
		c.Storage.MaxAttempts = d.Storage.MaxAttempts
	}
	if c.Storage.MaxListKeys <= 0 {
		c.Storage.MaxListKeys = d.Storage.MaxListKeys
	}
	if c.Storage.MaxUploadBytes <= 0 {
		c.Storage.MaxUploadBytes = d.Storage.MaxUploadBytes
	}
	if c.Reconnect.BaseDelay <= 0 {
		c.Reconnect.BaseDelay = d.Reconnect.BaseDelay
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = d.Reconnect.MaxDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

// ApplyEnv overrides values from BEACHBEV_* environment variables.
func (c *Config) ApplyEnv() {
	envString("SITE_HOST", &c.Site.Host)
	envInt("SITE_HTTPS_PORT", &c.Site.HTTPSPort)
	envInt("SITE_HTTP_PORT", &c.Site.HTTPPort)
	envString("SITE_STATIC_DIR", &c.Site.StaticDir)
	envString("SITE_CERT_FILE", &c.Site.CertFile)
	envString("SITE_KEY_FILE", &c.Site.KeyFile)
	envBool("SITE_INSECURE", &c.Site.Insecure)

	envString("CLIENT_URL", &c.Client.URL)
	envString("CLIENT_ORIGIN", &c.Client.Origin)
	envString("CLIENT_SCHEMA_FILE", &c.Client.SchemaFile)
	envDuration("CLIENT_REQUEST_TIMEOUT", &c.Client.RequestTimeout)

	envInt("RECONNECT_MAX_ATTEMPTS", &c.Reconnect.MaxAttempts)

	envString("STORAGE_BUCKET", &c.Storage.Bucket)
	envString("STORAGE_REGION", &c.Storage.Region)
	envString("STORAGE_ENDPOINT", &c.Storage.Endpoint)

	envString("LOG_LEVEL", &c.Logging.Level)
	envBool("METRICS_ENABLED", &c.Metrics.Enabled)
	envString("METRICS_ADDR", &c.Metrics.Addr)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validPort(c.Site.HTTPSPort) || c.Site.HTTPSPort == 0 {
		return errors.New(errors.CodeConfigValue).
			WithDetail("site.https_port must be between 1 and 65535")
	}
	if !validPort(c.Site.HTTPPort) {
		return errors.New(errors.CodeConfigValue).
			WithDetail("site.http_port must be between 0 and 65535")
	}
	if c.Site.HTTPPort != 0 && c.Site.HTTPPort == c.Site.HTTPSPort {
		return errors.New(errors.CodeConfigValue).
			WithDetail("site.http_port and site.https_port must differ")
	}
	if !c.Site.Insecure && (c.Site.CertFile == "") != (c.Site.KeyFile == "") {
		return errors.New(errors.CodeConfigValue).
			WithDetail("site.cert_file and site.key_file must be set together")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New(errors.CodeConfigValue).
			WithDetail("reconnect.max_attempts must not be negative")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return errors.New(errors.CodeConfigValue).
			WithDetail("reconnect.max_delay must not be below reconnect.base_delay")
	}
	if c.Client.RequestTimeout < 0 || c.Client.Heartbeat < 0 {
		return errors.New(errors.CodeConfigValue).
			WithDetail("client timeouts must not be negative")
	}
	return nil
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}

// StaticPath returns the static directory, resolved against the config
// file's directory when relative.
func (c *Config) StaticPath() string {
	if filepath.IsAbs(c.Site.StaticDir) || c.Dir() == "" {
		return c.Site.StaticDir
	}
	return filepath.Join(c.Dir(), c.Site.StaticDir)
}
