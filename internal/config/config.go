// Package config loads relay settings with the precedence
// file > environment > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env       string           `json:"env"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Activity  *ActivityConfig  `json:"activity"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	CORSOrigins  []string      `json:"cors_origins"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// ActivityConfig controls the sqlite room-activity log. An empty Path
// disables it entirely.
type ActivityConfig struct {
	Path string `json:"path"`
}

// DefaultConfig returns settings sized for classroom use: one teacher and
// a few dozen students per room.
func DefaultConfig() *Config {
	return &Config{
		Env: "dev",
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Activity: &ActivityConfig{
			Path: "./chalkboard.db",
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Activity == nil {
		return fmt.Errorf("activity configuration is required")
	}
	return nil
}

// LoadFromEnv overlays CHALKBOARD_* environment variables on the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if env := os.Getenv("CHALKBOARD_ENV"); env != "" {
		cfg.Env = env
	}
	if host := os.Getenv("CHALKBOARD_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("CHALKBOARD_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("CHALKBOARD_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("CHALKBOARD_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("CHALKBOARD_WS_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("CHALKBOARD_WS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("CHALKBOARD_WS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("CHALKBOARD_WS_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebSocket.BufferSize = n
		}
	}
	if v, ok := os.LookupEnv("CHALKBOARD_ACTIVITY_PATH"); ok {
		cfg.Activity.Path = v
	}

	return cfg
}

// fileConfig mirrors Config with string durations for JSON parsing.
type fileConfig struct {
	Env  string `json:"env"`
	HTTP *struct {
		Host         string   `json:"host"`
		Port         int      `json:"port"`
		ReadTimeout  string   `json:"read_timeout"`
		WriteTimeout string   `json:"write_timeout"`
		CORSOrigins  []string `json:"cors_origins"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Activity *struct {
		Path string `json:"path"`
	} `json:"activity"`
}

// LoadFromFile overlays a JSON config file onto the env-derived config.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := LoadFromEnv()

	if fc.Env != "" {
		cfg.Env = fc.Env
	}
	if fc.HTTP != nil {
		if fc.HTTP.Host != "" {
			cfg.HTTP.Host = fc.HTTP.Host
		}
		if fc.HTTP.Port > 0 {
			cfg.HTTP.Port = fc.HTTP.Port
		}
		if d, err := time.ParseDuration(fc.HTTP.ReadTimeout); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
		if d, err := time.ParseDuration(fc.HTTP.WriteTimeout); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
		if len(fc.HTTP.CORSOrigins) > 0 {
			cfg.HTTP.CORSOrigins = fc.HTTP.CORSOrigins
		}
	}
	if fc.WebSocket != nil {
		if d, err := time.ParseDuration(fc.WebSocket.PingInterval); err == nil {
			cfg.WebSocket.PingInterval = d
		}
		if d, err := time.ParseDuration(fc.WebSocket.ReadTimeout); err == nil {
			cfg.WebSocket.ReadTimeout = d
		}
		if d, err := time.ParseDuration(fc.WebSocket.WriteTimeout); err == nil {
			cfg.WebSocket.WriteTimeout = d
		}
		if fc.WebSocket.BufferSize > 0 {
			cfg.WebSocket.BufferSize = fc.WebSocket.BufferSize
		}
	}
	if fc.Activity != nil {
		cfg.Activity.Path = fc.Activity.Path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves configuration with the documented precedence. A missing or
// unreadable file falls back to env/defaults.
func Load(path string) *Config {
	if path != "" {
		if cfg, err := LoadFromFile(path); err == nil {
			return cfg
		}
	}
	return LoadFromEnv()
}
