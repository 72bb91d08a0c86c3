package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"starter/internal/models"
	"starter/internal/ratelimit"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "STARTER_"

// Load loads configuration from defaults, an optional YAML file, an optional
// .env file and environment variables, in that order, then validates it.
// Variables already present in the environment win over the .env file.
func Load(configPath, envFile string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	// Override with environment variables
	if err := loadFromEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// envReader collects the first parse error so a mistyped variable fails
// startup instead of being silently ignored.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		*dst = strings.ToLower(v) == "true"
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) error {
	env := &envReader{}

	// Server configuration
	env.integer("PORT", &config.Server.Port)
	env.str("HOST", &config.Server.Host)
	env.duration("READ_TIMEOUT", &config.Server.ReadTimeout)
	env.duration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	env.duration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	env.str("STATIC_DIR", &config.Server.StaticDir)
	env.boolean("CORS_ENABLED", &config.Server.CORS.Enabled)
	if origins, ok := env.lookup("CORS_ALLOWED_ORIGINS"); ok {
		config.Server.CORS.AllowedOrigins = splitAndTrim(origins)
	}

	// Rate limit configuration
	rl := &config.RateLimit
	env.boolean("RATE_LIMIT_ENABLED", &rl.Enabled)
	env.str("RATE_LIMIT_KEY_STRATEGY", &rl.KeyStrategy)
	env.str("RATE_LIMIT_KEY_HEADER", &rl.KeyHeader)
	env.str("RATE_LIMIT_SWEEP_MODE", &rl.SweepMode)
	env.duration("RATE_LIMIT_SWEEP_INTERVAL", &rl.SweepInterval)
	for name, preset := range map[string]*models.PresetConfig{
		"GENERAL": &rl.General,
		"STRICT":  &rl.Strict,
		"AUTH":    &rl.Auth,
	} {
		env.duration("RATE_LIMIT_"+name+"_WINDOW", &preset.Window)
		env.integer("RATE_LIMIT_"+name+"_MAX_REQUESTS", &preset.MaxRequests)
		env.str("RATE_LIMIT_"+name+"_MESSAGE", &preset.Message)
	}

	// Logging configuration
	env.str("LOG_LEVEL", &config.Logging.Level)
	env.str("LOG_FORMAT", &config.Logging.Format)
	env.str("LOG_OUTPUT", &config.Logging.Output)
	env.str("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	env.boolean("METRICS_ENABLED", &config.Metrics.Enabled)
	env.str("METRICS_PATH", &config.Metrics.Path)
	env.integer("METRICS_PORT", &config.Metrics.Port)

	// Observability configuration
	env.str("SERVICE_NAME", &config.Observability.ServiceName)
	env.boolean("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	env.str("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	env.str("TRACING_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	env.float("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)

	return env.err
}

func splitAndTrim(s string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with the preset values spelled out
	config := models.NewDefaultConfig()
	for _, p := range []struct {
		dst  *models.PresetConfig
		base ratelimit.Config
	}{
		{&config.RateLimit.General, ratelimit.General()},
		{&config.RateLimit.Strict, ratelimit.Strict()},
		{&config.RateLimit.Auth, ratelimit.Auth()},
	} {
		*p.dst = models.PresetConfig{
			Window:      p.base.Window,
			MaxRequests: p.base.MaxRequests,
			Message:     p.base.Message,
		}
	}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
