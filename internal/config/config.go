package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the system-wide settings coordinator for the signaling server and
// the classctl client. Sections mirror the components they feed.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
	Audit     *AuditConfig     `json:"audit"`
	ICE       *ICEConfig       `json:"ice"`
}

// HTTPConfig covers the combined API + signaling HTTP server.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig covers per-connection transport timings.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
}

// AuthConfig carries the HMAC secret shared with the platform's auth service.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// AuditConfig locates the SQLite signaling journal.
type AuditConfig struct {
	Path string `json:"path"`
}

// ICEConfig is handed to clients for their peer connections. The server never
// relays media; these are candidate-discovery endpoints only.
type ICEConfig struct {
	STUNURLs       []string `json:"stun_urls"`
	TURNURL        string   `json:"turn_url"`
	TURNUsername   string   `json:"turn_username"`
	TURNCredential string   `json:"turn_credential"`
}

// DefaultConfig returns production-ready defaults: signaling on :8080, 30s
// heartbeat, journal beside the binary, public STUN.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
		},
		Auth: &AuthConfig{
			JWTSecret: "classlink_dev_secret",
		},
		Audit: &AuditConfig{
			Path: "./classlink-audit.db",
		},
		ICE: &ICEConfig{
			STUNURLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// Validate rejects configurations that would fail at runtime.
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
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
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

	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret cannot be empty")
	}

	if c.Audit == nil || c.Audit.Path == "" {
		return fmt.Errorf("audit journal path cannot be empty")
	}

	if c.ICE == nil || len(c.ICE.STUNURLs) == 0 {
		return fmt.Errorf("at least one STUN URL is required")
	}

	return nil
}

// LoadFromEnv overlays CLASSLINK_* environment variables on the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("CLASSLINK_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("CLASSLINK_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if readTimeout := os.Getenv("CLASSLINK_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("CLASSLINK_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if pingInterval := os.Getenv("CLASSLINK_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsReadTimeout := os.Getenv("CLASSLINK_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}

	if secret := os.Getenv("CLASSLINK_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if auditPath := os.Getenv("CLASSLINK_AUDIT_PATH"); auditPath != "" {
		config.Audit.Path = auditPath
	}

	if stun := os.Getenv("CLASSLINK_STUN_URLS"); stun != "" {
		config.ICE.STUNURLs = strings.Split(stun, ",")
	}
	if turn := os.Getenv("CLASSLINK_TURN_URL"); turn != "" {
		config.ICE.TURNURL = turn
	}
	if turnUser := os.Getenv("CLASSLINK_TURN_USERNAME"); turnUser != "" {
		config.ICE.TURNUsername = turnUser
	}
	if turnCred := os.Getenv("CLASSLINK_TURN_CREDENTIAL"); turnCred != "" {
		config.ICE.TURNCredential = turnCred
	}

	return config
}

// ConfigFile is the JSON file form; durations are strings ("30s").
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Auth      *AuthConfig          `json:"auth"`
	Audit     *AuditConfig         `json:"audit"`
	ICE       *ICEConfig           `json:"ice"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
}

// LoadFromFile reads and validates a JSON configuration file.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.HTTP != nil {
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
	}

	if configFile.Auth != nil && configFile.Auth.JWTSecret != "" {
		config.Auth.JWTSecret = configFile.Auth.JWTSecret
	}
	if configFile.Audit != nil && configFile.Audit.Path != "" {
		config.Audit.Path = configFile.Audit.Path
	}
	if configFile.ICE != nil {
		if len(configFile.ICE.STUNURLs) > 0 {
			config.ICE.STUNURLs = configFile.ICE.STUNURLs
		}
		config.ICE.TURNURL = configFile.ICE.TURNURL
		config.ICE.TURNUsername = configFile.ICE.TURNUsername
		config.ICE.TURNCredential = configFile.ICE.TURNCredential
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are silently ignored so environment/defaults still
// bring the server up.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
