package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matheusjcandido/transcription/internal/audio"
)

// Environment variables understood by the service
const (
	EnvAPIKey      = "OPENAI_API_KEY"
	EnvDeployment  = "TRANSCRIBER_DEPLOYMENT"
	EnvHTTPAddress = "TRANSCRIBER_HTTP_ADDRESS"
	EnvHTTPPort    = "TRANSCRIBER_HTTP_PORT"
	EnvLogLevel    = "TRANSCRIBER_LOG_LEVEL"
	EnvProvider    = "TRANSCRIBER_PROVIDER"
	EnvBaseURL     = "TRANSCRIBER_BASE_URL"
	EnvTempDir     = "TRANSCRIBER_TEMP_DIR"
)

const (
	// ProductionMode is the deployment mode that trusts the environment credential
	ProductionMode = "production"

	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"

	DefaultModel    = "whisper-1"
	defaultLanguage = "pt"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Upload        UploadConfig        `yaml:"upload"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Deployment    DeploymentConfig    `yaml:"deployment"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Address      string `yaml:"address"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// UploadConfig contains upload and staging parameters
type UploadConfig struct {
	TempDir           string   `yaml:"temp_dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	RecommendedMaxMB  int      `yaml:"recommended_max_mb"`
	EnforceMaxSize    bool     `yaml:"enforce_max_size"`
	MaxBodyMB         int      `yaml:"max_body_mb"`
}

// TranscriptionConfig contains transcription provider configuration
type TranscriptionConfig struct {
	Provider        string `yaml:"provider"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api_key"`
	Timeout         int    `yaml:"timeout"` // seconds, 0 keeps the client default
	DefaultLanguage string `yaml:"default_language"`
}

// DeploymentConfig controls how the credential is sourced
type DeploymentConfig struct {
	Mode string `yaml:"mode"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      "0.0.0.0",
			Port:         8501,
			ReadTimeout:  60,
			WriteTimeout: 300,
		},
		Upload: UploadConfig{
			TempDir:           ".",
			AllowedExtensions: []string{"mp3", "wav", "m4a", "ogg"},
			RecommendedMaxMB:  25,
			MaxBodyMB:         100,
		},
		Transcription: TranscriptionConfig{
			Provider:        ProviderOpenAI,
			Model:           DefaultModel,
			DefaultLanguage: defaultLanguage,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if path
// is not empty) and the environment, then validates it.
func Load(path string, getenv func(string) string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if getenv != nil {
		if err := config.ApplyEnv(getenv); err != nil {
			return nil, fmt.Errorf("environment overrides: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values with environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvAPIKey); v != "" {
		c.Transcription.APIKey = v
	}
	if v := getenv(EnvDeployment); v != "" {
		c.Deployment.Mode = v
	}
	if v := getenv(EnvHTTPAddress); v != "" {
		c.HTTP.Address = v
	}
	if v := getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got '%s'", EnvHTTPPort, v)
		}
		c.HTTP.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvProvider); v != "" {
		c.Transcription.Provider = strings.ToLower(v)
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.Transcription.BaseURL = v
	}
	if v := getenv(EnvTempDir); v != "" {
		c.Upload.TempDir = v
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Upload.Validate(); err != nil {
		return fmt.Errorf("upload config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// EnvCredentialOnly reports whether the manual key entry must be suppressed:
// the deployment runs in production mode and a credential came from the
// environment.
func (c *Config) EnvCredentialOnly() bool {
	return c.Deployment.Mode == ProductionMode && c.Transcription.APIKey != ""
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 0 || h.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	return nil
}

// Validate validates upload configuration
func (u *UploadConfig) Validate() error {
	if u.TempDir == "" {
		return fmt.Errorf("temp_dir cannot be empty")
	}

	if len(u.AllowedExtensions) == 0 {
		return fmt.Errorf("allowed_extensions cannot be empty")
	}

	for _, ext := range u.AllowedExtensions {
		if strings.TrimPrefix(ext, ".") == "" {
			return fmt.Errorf("allowed_extensions contains an empty entry")
		}
	}

	if u.RecommendedMaxMB < 1 {
		return fmt.Errorf("recommended_max_mb must be at least 1, got %d", u.RecommendedMaxMB)
	}

	if u.MaxBodyMB < u.RecommendedMaxMB {
		return fmt.Errorf("max_body_mb (%d) must not be smaller than recommended_max_mb (%d)",
			u.MaxBodyMB, u.RecommendedMaxMB)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Provider {
	case ProviderOpenAI:
	case ProviderHTTP:
		if t.BaseURL == "" {
			return fmt.Errorf("base_url cannot be empty for the http provider")
		}
	default:
		return fmt.Errorf("provider must be '%s' or '%s', got '%s'", ProviderOpenAI, ProviderHTTP, t.Provider)
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", t.Timeout)
	}

	if !audio.IsSupportedLanguage(t.DefaultLanguage) {
		return fmt.Errorf("default_language must be one of %v, got '%s'", audio.SupportedLanguages(), t.DefaultLanguage)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetRecommendedMaxBytes returns the advisory upload size in bytes
func (u *UploadConfig) GetRecommendedMaxBytes() int64 {
	return int64(u.RecommendedMaxMB) << 20
}

// GetMaxBodyBytes returns the hard request body limit in bytes
func (u *UploadConfig) GetMaxBodyBytes() int64 {
	return int64(u.MaxBodyMB) << 20
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
