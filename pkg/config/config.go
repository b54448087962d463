package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// ConfigPathEnvVar can point at an optional YAML file that is layered between
// the defaults and the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

// minJWTSecretBytes is the minimum length of the token signing secret.
const minJWTSecretBytes = 32

// Config is a frozen snapshot of everything the server needs. It is
// constructed once at start and never mutated.
type Config struct {
	JWTSecret                 string
	LibraryDirectories        []string
	ServerHost                string
	ServerPort                int
	DatabaseFilePath          string
	DatabaseDebug             bool
	DatabaseMaxRetries        int
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseBusyTimeout       time.Duration
	ScanInterval              time.Duration
	CleanupInterval           time.Duration
	ArchiveRetention          time.Duration
	ExternalMetadataUserAgent string
	GoogleBooksAPIKey         string
	WebClientDir              string
	RateLimitPerSecond        float64
	Development               bool
}

// EnrichmentEnabled reports whether external metadata lookups should run.
func (c *Config) EnrichmentEnabled() bool {
	return c.GoogleBooksAPIKey != ""
}

// New loads configuration from defaults, an optional YAML file, and the
// environment, in that order of precedence. It fails on missing or invalid
// required options.
func New() (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"PORT":                         4001,
		"DATABASE_URL":                 "./dust.sqlite",
		"SCAN_INTERVAL_MINUTES":        5,
		"CLEANUP_INTERVAL_MINUTES":     60,
		"ARCHIVE_RETENTION_DAYS":       365,
		"EXTERNAL_METADATA_USER_AGENT": "dust/1.0",
		"RATE_LIMIT_PER_SECOND":        0.0,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file: %s", path)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		JWTSecret:                 k.String("JWT_SECRET"),
		ServerHost:                k.String("HOST"),
		ServerPort:                k.Int("PORT"),
		DatabaseFilePath:          k.String("DATABASE_URL"),
		DatabaseDebug:             k.Bool("DATABASE_DEBUG"),
		DatabaseMaxRetries:        5,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseBusyTimeout:       5 * time.Second,
		ScanInterval:              time.Duration(k.Int("SCAN_INTERVAL_MINUTES")) * time.Minute,
		CleanupInterval:           time.Duration(k.Int("CLEANUP_INTERVAL_MINUTES")) * time.Minute,
		ArchiveRetention:          time.Duration(k.Int("ARCHIVE_RETENTION_DAYS")) * 24 * time.Hour,
		ExternalMetadataUserAgent: k.String("EXTERNAL_METADATA_USER_AGENT"),
		GoogleBooksAPIKey:         k.String("GOOGLE_BOOKS_API_KEY"),
		WebClientDir:              k.String("WEB_CLIENT_DIR"),
		RateLimitPerSecond:        k.Float64("RATE_LIMIT_PER_SECOND"),
		Development:               k.Bool("DEVELOPMENT"),
	}

	for _, dir := range strings.Split(k.String("DUST_DIRS"), ":") {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid library directory: %s", dir)
		}
		cfg.LibraryDirectories = append(cfg.LibraryDirectories, abs)
	}

	if !filepath.IsAbs(cfg.DatabaseFilePath) {
		abs, err := filepath.Abs(cfg.DatabaseFilePath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		cfg.DatabaseFilePath = abs
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < minJWTSecretBytes {
		return errors.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretBytes)
	}
	if len(c.LibraryDirectories) == 0 {
		return errors.New("DUST_DIRS must name at least one library directory")
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return errors.Errorf("PORT %d is out of range", c.ServerPort)
	}
	if c.ScanInterval <= 0 {
		return errors.New("SCAN_INTERVAL_MINUTES must be positive")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("CLEANUP_INTERVAL_MINUTES must be positive")
	}
	return nil
}
