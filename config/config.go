// Package config provides YAML configuration parsing for appletdev.
//
// A configuration file is optional: [Default] returns the settings used
// when none is given, and command-line flags override either.
//
// Example configuration:
//
//	port: 4002
//	root: ${APPLET_DIR:-.}
//	entry: AI SimCity.html
//	debounce: 300ms
//	keepalive: 30s
//
//	reconnect:
//	  max_attempts: 10
//	  base_backoff: 1s
//
//	build:
//	  dist: dist
//	  author: ryo
//
//	log:
//	  level: info
//	  file: ${HOME}/.appletdev/appletdev.log
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort        = 4002
	defaultRoot        = "."
	defaultEntry       = "index.html"
	defaultDebounce    = 300 * time.Millisecond
	defaultKeepAlive   = 30 * time.Second
	defaultMaxAttempts = 10
	defaultBaseBackoff = time.Second
	defaultDist        = "dist"
	defaultAuthor      = "ryo"
	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
	defaultLogMaxSize  = 10
)

// minDebounce keeps editors that save in several writes from triggering
// more than one reload.
const minDebounce = 10 * time.Millisecond

// Config is the root configuration structure for appletdev.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `yaml:"host"`

	// Port is the HTTP server port. Defaults to 4002.
	Port int `yaml:"port"`

	// Root is the served and watched directory. Defaults to ".".
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Root string `yaml:"root"`

	// Entry is the HTML file served at "/". Defaults to index.html.
	Entry string `yaml:"entry"`

	// Debounce is the quiet period before a reload. Defaults to 300ms.
	Debounce Duration `yaml:"debounce"`

	// KeepAlive is the keepalive interval on reload channels.
	// Defaults to 30s.
	KeepAlive Duration `yaml:"keepalive"`

	// Reconnect is the browser retry policy.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Build configures the manifest builder.
	Build BuildConfig `yaml:"build"`

	// Log configures CLI logging.
	Log LogConfig `yaml:"log"`
}

// ReconnectConfig is the browser's retry policy.
type ReconnectConfig struct {
	// MaxAttempts is the number of retries before giving up. Defaults to 10.
	// A pointer so that an explicit 0 (never retry) is kept.
	MaxAttempts *int `yaml:"max_attempts"`

	// BaseBackoff is the linear backoff step. Defaults to 1s.
	BaseBackoff Duration `yaml:"base_backoff"`
}

// Attempts returns the configured attempt budget.
func (r ReconnectConfig) Attempts() int {
	if r.MaxAttempts == nil {
		return defaultMaxAttempts
	}
	return *r.MaxAttempts
}

// BuildConfig configures `appletdev build`.
type BuildConfig struct {
	// Dist is the output directory, relative to the working directory.
	// Defaults to "dist".
	Dist string `yaml:"dist"`

	// Author is written as createdBy in every manifest. Defaults to "ryo".
	Author string `yaml:"author"`

	// Concurrency bounds parallel file processing. 0 uses the CPU count.
	Concurrency int `yaml:"concurrency"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is json or text. Defaults to json.
	Format string `yaml:"format"`

	// File, if set, receives logs instead of stderr and is rotated.
	// Supports environment variable substitution.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated. Defaults to 10.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. 0 keeps all.
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept. 0 keeps them forever.
	MaxAgeDays int `yaml:"max_age_days"`
}

// SlogLevel returns the parsed log level.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		value, exists := os.LookupEnv(name)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, or returns [Default] if path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Root and Log.File. Unset fields
// take their defaults before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Root == "" {
		c.Root = defaultRoot
	}
	if c.Entry == "" {
		c.Entry = defaultEntry
	}
	if c.Debounce == 0 {
		c.Debounce = Duration(defaultDebounce)
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = Duration(defaultKeepAlive)
	}
	if c.Reconnect.BaseBackoff == 0 {
		c.Reconnect.BaseBackoff = Duration(defaultBaseBackoff)
	}
	if c.Build.Dist == "" {
		c.Build.Dist = defaultDist
	}
	if c.Build.Author == "" {
		c.Build.Author = defaultAuthor
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = defaultLogMaxSize
	}
}

// Validate checks every field. It is called by [Parse] and again by the CLI
// after flag overrides are applied.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if strings.ContainsAny(c.Entry, `/\`) {
		return fmt.Errorf("entry must be a file name, got %q", c.Entry)
	}
	if c.Debounce.Duration() < minDebounce {
		return fmt.Errorf("debounce must be at least %s, got %s", minDebounce, c.Debounce.Duration())
	}
	if c.KeepAlive.Duration() < time.Second {
		return fmt.Errorf("keepalive must be at least 1s, got %s", c.KeepAlive.Duration())
	}

	if n := c.Reconnect.Attempts(); n < 0 {
		return fmt.Errorf("reconnect.max_attempts cannot be negative, got %d", n)
	}
	if c.Reconnect.BaseBackoff.Duration() <= 0 {
		return fmt.Errorf("reconnect.base_backoff must be positive, got %s", c.Reconnect.BaseBackoff.Duration())
	}

	if c.Build.Concurrency < 0 {
		return fmt.Errorf("build.concurrency cannot be negative, got %d", c.Build.Concurrency)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits cannot be negative")
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	root, err := expandEnvVars(c.Root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	c.Root = root

	file, err := expandEnvVars(c.Log.File)
	if err != nil {
		return fmt.Errorf("log.file: %w", err)
	}
	c.Log.File = file

	return c.Validate()
}
