// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file for Load.
const EnvironmentVariable = "PYPISERVER_CONFIG"

// Environment is the deployment type.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete server configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Catalog   CatalogConfig   `yaml:"catalog"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// CatalogConfig locates the metadata database.
type CatalogConfig struct {
	// Path is the SQLite file.
	Path string `yaml:"path"`

	// PoolSize is the number of database connections; zero picks the
	// default.
	PoolSize int `yaml:"pool_size"`
}

// ArtifactsConfig locates package bytes.
type ArtifactsConfig struct {
	// Root is an existing, writeable directory.
	Root string `yaml:"root"`
}

// HTTPConfig configures cmd/pypiserver.
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Metrics enables GET /metrics.
	Metrics bool `yaml:"metrics"`

	// PackagesPrefix is the URL path under which artifacts are served.
	// It must begin and end with "/".
	PackagesPrefix string `yaml:"packages_prefix"`

	// MaxUploadBytes caps the size of an upload request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LogConfig configures lib/logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is auto, text or json.
	Format string `yaml:"format"`
}

// Overrides holds the fields an environment section may change. Empty
// strings and zero numbers leave the base value alone.
type Overrides struct {
	Catalog   *CatalogConfig   `yaml:"catalog,omitempty"`
	Artifacts *ArtifactsConfig `yaml:"artifacts,omitempty"`
	HTTP      *HTTPOverrides   `yaml:"http,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// HTTPOverrides is HTTPConfig with Metrics optional, so that a section
// can turn metrics off.
type HTTPOverrides struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         *bool         `yaml:"metrics"`
	PackagesPrefix  string        `yaml:"packages_prefix"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// Default returns the values used before the file is read.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".cache", "pypiserver")

	return &Config{
		Environment: Development,
		Catalog: CatalogConfig{
			Path: filepath.Join(root, "catalog.db"),
		},
		Artifacts: ArtifactsConfig{
			Root: filepath.Join(root, "packages"),
		},
		HTTP: HTTPConfig{
			Address:         "127.0.0.1:8080",
			ShutdownTimeout: 10 * time.Second,
			Metrics:         true,
			PackagesPrefix:  "/packages/",
			MaxUploadBytes:  512 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads the file named by PYPISERVER_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your pypiserver.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path. The result is not yet
// validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and applies overrides and
// variable expansion.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{Log: &LogConfig{Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if catalog := overrides.Catalog; catalog != nil {
		setString(&c.Catalog.Path, catalog.Path)
		if catalog.PoolSize != 0 {
			c.Catalog.PoolSize = catalog.PoolSize
		}
	}
	if artifacts := overrides.Artifacts; artifacts != nil {
		setString(&c.Artifacts.Root, artifacts.Root)
	}
	if http := overrides.HTTP; http != nil {
		setString(&c.HTTP.Address, http.Address)
		setString(&c.HTTP.PackagesPrefix, http.PackagesPrefix)
		if http.ShutdownTimeout != 0 {
			c.HTTP.ShutdownTimeout = http.ShutdownTimeout
		}
		if http.Metrics != nil {
			c.HTTP.Metrics = *http.Metrics
		}
		if http.MaxUploadBytes != 0 {
			c.HTTP.MaxUploadBytes = http.MaxUploadBytes
		}
	}
	if log := overrides.Log; log != nil {
		setString(&c.Log.Level, log.Level)
		setString(&c.Log.Format, log.Format)
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Catalog.Path = expandVars(c.Catalog.Path, vars)
	c.Artifacts.Root = expandVars(c.Artifacts.Root, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}, looking in vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog.path is required"))
	}
	if c.Catalog.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("catalog.pool_size must not be negative, got %d", c.Catalog.PoolSize))
	}
	if c.Artifacts.Root == "" {
		errs = append(errs, errors.New("artifacts.root is required"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.shutdown_timeout must be positive, got %v", c.HTTP.ShutdownTimeout))
	}
	if prefix := c.HTTP.PackagesPrefix; !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") ||
		prefix == "/" || prefix == "/simple/" {
		errs = append(errs, fmt.Errorf("http.packages_prefix must be a path like /packages/, got %q", prefix))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max_upload_bytes must be positive, got %d", c.HTTP.MaxUploadBytes))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", logLevels, c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %v, got %q", logFormats, c.Log.Format))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the catalog's parent directory.
func (c *Config) EnsurePaths() error {
	directory := filepath.Dir(c.Catalog.Path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
