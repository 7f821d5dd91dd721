package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/openweathermap-exporter/internal/common"
)

const (
	envPrefix = "OWM_EXPORTER"

	DefaultConfigFile     = "/etc/prometheus/openweathermap-exporter.yaml"
	DefaultBreakerOpenFor = 5 * time.Minute
)

var validate = validator.New()

// ErrorType categorizes configuration failures.
type ErrorType string

const (
	ErrMissingFile ErrorType = "MISSING_FILE"
	ErrParsing     ErrorType = "PARSING_FAILED"
	ErrValidation  ErrorType = "VALIDATION_FAILED"
)

// ConfigurationError is returned for any configuration problem. The process
// must not start when it sees one.
type ConfigurationError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Settings are process-level options read from OWM_EXPORTER_* environment variables.
type Settings struct {
	ConfigFile    string `envconfig:"CONFIG_FILE"`
	ListenAddress string `envconfig:"LISTEN_ADDRESS"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	AppEnv        string `envconfig:"APP_ENV" default:"prod" validate:"oneof=dev prod"`
	// APIKey overrides api_key from the configuration file.
	APIKey string `envconfig:"API_KEY"`

	Level slog.Level `ignored:"true"`
}

// LoadSettings reads Settings from the environment, after loading a .env file
// from the working directory when one exists.
func LoadSettings() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	var s Settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return Settings{}, &ConfigurationError{Type: ErrParsing, Message: "invalid environment", Err: err}
	}
	if s.ConfigFile == "" {
		s.ConfigFile = DefaultConfigFile
	}
	if s.ListenAddress == "" {
		s.ListenAddress = common.DefaultListenAddress
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, &ConfigurationError{Type: ErrValidation, Message: "invalid environment", Err: err}
	}

	level, err := ParseLogLevel(s.LogLevel)
	if err != nil {
		return Settings{}, &ConfigurationError{Type: ErrValidation, Message: "invalid environment", Err: err}
	}
	s.Level = level
	return s, nil
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// Configuration is the exporter configuration file.
type Configuration struct {
	APIKey      string        `yaml:"api_key" validate:"required"`
	Locations   []string      `yaml:"locations" validate:"required,min=1,dive,required"`
	Units       string        `yaml:"units" validate:"omitempty,oneof=standard metric imperial"`
	Timeout     uint64        `yaml:"timeout"` // seconds
	CAFile      string        `yaml:"ca_file"`
	MetricsPath string        `yaml:"metrics_path" validate:"omitempty,startswith=/,ne=/"`
	Parallelism int           `yaml:"parallelism" validate:"gte=0,lte=32"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the optional per-location circuit breaker. It is off
// unless failures is set above zero.
type BreakerConfig struct {
	Failures uint32 `yaml:"failures"`
	OpenFor  uint64 `yaml:"open_for"` // seconds
}

// Load reads, validates and returns the configuration file at path. A
// non-empty apiKey replaces the file's api_key before validation.
func Load(path, apiKey string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Type: ErrMissingFile, Message: fmt.Sprintf("can't read %s", path), Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without validating it. Unknown keys are rejected.
func Parse(data []byte) (*Configuration, error) {
	var cfg Configuration

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Type: ErrParsing, Message: "can't parse configuration", Err: err}
	}

	for i, loc := range cfg.Locations {
		cfg.Locations[i] = strings.TrimSpace(loc)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &cfg, nil
}

// Validate checks the rules the exporter cannot run without: an API key and
// at least one location.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return &ConfigurationError{
				Type:    ErrValidation,
				Message: "invalid configuration: " + strings.Join(fields, ", "),
				Err:     err,
			}
		}
		return &ConfigurationError{Type: ErrValidation, Message: "invalid configuration", Err: err}
	}
	return nil
}

func (c *Configuration) UnitSystem() string {
	if c.Units == "" {
		return common.DefaultUnits
	}
	return c.Units
}

func (c *Configuration) RequestTimeout() time.Duration {
	if c.Timeout == 0 {
		return common.DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c *Configuration) Path() string {
	if c.MetricsPath == "" {
		return common.MetricsPath
	}
	return c.MetricsPath
}

// BreakerFailures is the number of consecutive failures that opens a
// location's breaker. Zero, the default, disables it so that every scrape
// queries every location.
func (c *Configuration) BreakerFailures() uint32 {
	return c.Breaker.Failures
}

func (c *Configuration) BreakerOpenFor() time.Duration {
	if c.Breaker.OpenFor == 0 {
		return DefaultBreakerOpenFor
	}
	return time.Duration(c.Breaker.OpenFor) * time.Second
}
