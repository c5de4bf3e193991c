package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default configuration must validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"negative read timeout", func(c *Config) { c.HTTP.ReadTimeout = -time.Second }},
		{"missing websocket section", func(c *Config) { c.WebSocket = nil }},
		{"read timeout below ping interval", func(c *Config) {
			c.WebSocket.PingInterval = time.Minute
			c.WebSocket.ReadTimeout = 30 * time.Second
		}},
		{"empty JWT secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"empty audit path", func(c *Config) { c.Audit.Path = "" }},
		{"no STUN servers", func(c *Config) { c.ICE.STUNURLs = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLASSLINK_HTTP_HOST", "127.0.0.1")
	t.Setenv("CLASSLINK_HTTP_PORT", "9090")
	t.Setenv("CLASSLINK_WEBSOCKET_PING_INTERVAL", "10s")
	t.Setenv("CLASSLINK_WEBSOCKET_READ_TIMEOUT", "25s")
	t.Setenv("CLASSLINK_JWT_SECRET", "env-secret")
	t.Setenv("CLASSLINK_STUN_URLS", "stun:one.example.com:3478,stun:two.example.com:3478")
	t.Setenv("CLASSLINK_TURN_URL", "turn:turn.example.com:3478")

	config := LoadFromEnv()
	if config.HTTP.Host != "127.0.0.1" || config.HTTP.Port != 9090 {
		t.Errorf("HTTP overrides not applied: %+v", config.HTTP)
	}
	if config.WebSocket.PingInterval != 10*time.Second {
		t.Errorf("Expected 10s ping interval, got %v", config.WebSocket.PingInterval)
	}
	if config.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env secret, got %q", config.Auth.JWTSecret)
	}
	if len(config.ICE.STUNURLs) != 2 {
		t.Errorf("Expected 2 STUN URLs, got %v", config.ICE.STUNURLs)
	}
	if config.ICE.TURNURL != "turn:turn.example.com:3478" {
		t.Errorf("TURN URL not applied: %q", config.ICE.TURNURL)
	}
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CLASSLINK_HTTP_PORT", "not-a-number")
	t.Setenv("CLASSLINK_WEBSOCKET_PING_INTERVAL", "soon")

	config := LoadFromEnv()
	defaults := DefaultConfig()
	if config.HTTP.Port != defaults.HTTP.Port {
		t.Errorf("Malformed port should keep default, got %d", config.HTTP.Port)
	}
	if config.WebSocket.PingInterval != defaults.WebSocket.PingInterval {
		t.Errorf("Malformed duration should keep default, got %v", config.WebSocket.PingInterval)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"http": {"host": "10.0.0.5", "port": 8443, "read_timeout": "45s"},
		"websocket": {"ping_interval": "20s", "read_timeout": "50s"},
		"auth": {"jwt_secret": "file-secret"},
		"audit": {"path": "/var/lib/classlink/audit.db"},
		"ice": {"stun_urls": ["stun:stun.example.com:3478"]}
	}`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.HTTP.Host != "10.0.0.5" || config.HTTP.Port != 8443 {
		t.Errorf("HTTP settings not loaded: %+v", config.HTTP)
	}
	if config.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("Expected 45s read timeout, got %v", config.HTTP.ReadTimeout)
	}
	if config.Auth.JWTSecret != "file-secret" {
		t.Errorf("Expected file secret, got %q", config.Auth.JWTSecret)
	}
	// Unspecified sections keep their defaults.
	if config.HTTP.WriteTimeout != 30*time.Second {
		t.Errorf("Expected default write timeout, got %v", config.HTTP.WriteTimeout)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing file")
	}

	path := writeConfigFile(t, `{not json`)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed JSON")
	}

	path = writeConfigFile(t, `{"auth": {"jwt_secret": ""}, "http": {"port": -1}}`)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected validation error for invalid values")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("CLASSLINK_JWT_SECRET", "env-secret")

	// File wins over environment.
	path := writeConfigFile(t, `{"auth": {"jwt_secret": "file-secret"}}`)
	config := LoadConfigWithPrecedence(path)
	if config.Auth.JWTSecret != "file-secret" {
		t.Errorf("File should take precedence, got %q", config.Auth.JWTSecret)
	}

	// A broken file falls back to the environment.
	config = LoadConfigWithPrecedence("/nonexistent/config.json")
	if config.Auth.JWTSecret != "env-secret" {
		t.Errorf("Missing file should fall back to env, got %q", config.Auth.JWTSecret)
	}

	// No file argument uses environment over defaults.
	config = LoadConfigWithPrecedence("")
	if config.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env secret, got %q", config.Auth.JWTSecret)
	}
}
