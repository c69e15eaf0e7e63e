package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-auth/internal/constants"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	Descriptor DescriptorConfig `yaml:"descriptor"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Storage    StorageConfig    `yaml:"storage"`
	Detector   DetectorConfig   `yaml:"detector"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
}

type DescriptorConfig struct {
	Size int `yaml:"size" env:"DESCRIPTOR_SIZE"` // length fixed by the face model
}

type MatcherConfig struct {
	Threshold float64 `yaml:"threshold" env:"MATCH_THRESHOLD"` // maximum accepted Euclidean distance (exclusive)
}

type StorageConfig struct {
	Backend      string `yaml:"backend" env:"STORAGE_BACKEND"`
	Path         string `yaml:"path" env:"STORAGE_PATH"` // file and sqlite backends
	URL          string `yaml:"url" env:"DATABASE_URL"`  // postgres URL or MariaDB DSN
	RecordKey    string `yaml:"record_key" env:"STORAGE_RECORD_KEY"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
}

type DetectorConfig struct {
	URL          string        `yaml:"url" env:"DETECTOR_URL"`
	MaxImageSize int           `yaml:"max_image_size" env:"DETECTOR_MAX_IMAGE_SIZE"` // longest edge in pixels sent to the detector
	Timeout      time.Duration `yaml:"timeout" env:"DETECTOR_TIMEOUT"`
}

type WebConfig struct {
	Host           string   `yaml:"host" env:"WEB_HOST"`
	Port           int      `yaml:"port" env:"WEB_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"WEB_ALLOWED_ORIGINS" envSeparator:","`
}

type LogConfig struct {
	Mode string `yaml:"mode" env:"LOG_MODE"`
}

// Load builds the configuration from the embedded defaults, an optional YAML
// file named by CONFIG_FILE and finally environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// Embedded file, only a broken build gets here.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from trusted env
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that would make the service unusable.
func (c *Config) Validate() error {
	if c.Descriptor.Size <= 0 {
		return fmt.Errorf("descriptor size must be positive, got %d", c.Descriptor.Size)
	}
	if math.IsNaN(c.Matcher.Threshold) || c.Matcher.Threshold <= 0 {
		return fmt.Errorf("match threshold must be positive, got %v", c.Matcher.Threshold)
	}
	if c.Detector.MaxImageSize > constants.MaxImageSize {
		return fmt.Errorf("detector max image size must be at most %d, got %d", constants.MaxImageSize, c.Detector.MaxImageSize)
	}
	if c.Storage.RecordKey == "" {
		return errors.New("storage record key is required")
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required for the %s backend", c.Storage.Backend)
		}
	case BackendPostgres, BackendMariaDB:
		if c.Storage.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// Addr returns the listen address of the web server.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
