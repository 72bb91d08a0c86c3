// Package models - Service configuration and operational settings.
// This file defines the configuration tree for the starter service.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, rate limiting, logging, etc.)
// - Defaults that work out of the box for local development
// - Validation that catches misconfigurations at startup
// - Zero-valued rate limit preset fields keep the built-in preset values
package models

import (
	"errors"
	"fmt"
	"time"
)

// Rate limit key strategies and sweep modes accepted in configuration.
const (
	KeyStrategyRemoteAddr = "remote_addr"
	KeyStrategyForwarded  = "forwarded"
	KeyStrategyHeader     = "header"

	SweepModeBackground = "background"
	SweepModeInline     = "inline"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`       // Admission control
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	StaticDir    string        `yaml:"static_dir" json:"static_dir"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// RateLimitConfig configures the three limiter presets and how callers are keyed.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	KeyStrategy   string        `yaml:"key_strategy" json:"key_strategy"`
	KeyHeader     string        `yaml:"key_header" json:"key_header"`
	SweepMode     string        `yaml:"sweep_mode" json:"sweep_mode"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"` // 0 sweeps once per window
	General       PresetConfig  `yaml:"general" json:"general"`
	Strict        PresetConfig  `yaml:"strict" json:"strict"`
	Auth          PresetConfig  `yaml:"auth" json:"auth"`
}

// PresetConfig overrides one limiter preset. Zero values keep the preset default.
type PresetConfig struct {
	Window      time.Duration `yaml:"window" json:"window"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Message     string        `yaml:"message" json:"message"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with development-friendly defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port, matches the container health probe
// - Rate limiting enabled and keyed by connection address
// - Preset blocks left empty so the built-in preset values apply
// - Permissive CORS so the browser client can run on its own dev server
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			StaticDir:    "static",
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			KeyStrategy: KeyStrategyRemoteAddr,
			KeyHeader:   "X-API-Key",
			SweepMode:   SweepModeBackground,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "starter",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}

	switch rc.KeyStrategy {
	case KeyStrategyRemoteAddr, KeyStrategyForwarded:
	case KeyStrategyHeader:
		if rc.KeyHeader == "" {
			return errors.New("key header is required when key strategy is header")
		}
	default:
		return fmt.Errorf("invalid key strategy: %s", rc.KeyStrategy)
	}

	if rc.SweepMode != SweepModeBackground && rc.SweepMode != SweepModeInline {
		return fmt.Errorf("invalid sweep mode: %s", rc.SweepMode)
	}

	if rc.SweepInterval < 0 {
		return errors.New("sweep interval cannot be negative")
	}

	presets := []struct {
		name string
		cfg  PresetConfig
	}{
		{"general", rc.General},
		{"strict", rc.Strict},
		{"auth", rc.Auth},
	}
	for _, p := range presets {
		if err := p.cfg.Validate(); err != nil {
			return fmt.Errorf("%s preset: %w", p.name, err)
		}
	}

	return nil
}

func (pc *PresetConfig) Validate() error {
	if pc.Window < 0 {
		return errors.New("window cannot be negative")
	}
	if pc.MaxRequests < 0 {
		return errors.New("max requests cannot be negative")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validOutputs, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required when exporter is otlp")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
