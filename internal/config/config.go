// Package config loads client configuration from an HCL file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Environment variables recognized as overrides
const (
	// EnvServer overrides the server websocket URL
	EnvServer = "POKERLIVE_SERVER"

	// EnvToken supplies a bearer token directly, bypassing the profile store
	EnvToken = "POKERLIVE_TOKEN"

	// EnvProfile overrides the credential file path
	EnvProfile = "POKERLIVE_PROFILE"
)

// Config is the complete client configuration
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Profile ProfileSettings `hcl:"profile,block"`
	UI      UISettings      `hcl:"ui,block"`
}

// fileConfig is the decode target for the HCL file; every block is optional
// so partial files merge over the defaults.
type fileConfig struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Profile *ProfileSettings `hcl:"profile,block"`
	UI      *UISettings      `hcl:"ui,block"`
}

// ServerSettings contains connection settings
type ServerSettings struct {
	URL               string `hcl:"url,optional"`
	ReconnectAttempts int    `hcl:"reconnect_attempts,optional"`
	ReconnectDelayMS  int    `hcl:"reconnect_delay_ms,optional"`
}

// ProfileSettings locates the persisted credential file
type ProfileSettings struct {
	Path string `hcl:"path,optional"`
}

// UISettings contains terminal UI settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	Theme    string `hcl:"theme,optional"`
}

// Default returns the default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerSettings{
			URL:               "ws://localhost:8000",
			ReconnectAttempts: 5,
			ReconnectDelayMS:  3000,
		},
		Profile: ProfileSettings{
			Path: filepath.Join(home, ".pokerlive", "profile.json"),
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "",
			Theme:    "default",
		},
	}
}

// Load reads configuration from an HCL file. A missing file yields defaults;
// fields absent from the file fall back to their defaults. Environment
// overrides are applied last.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse config: %s", diags.Error())
		}

		var parsed fileConfig
		diags = gohcl.DecodeBody(file.Body, nil, &parsed)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
		}
		merge(cfg, &parsed)
	}

	if v := os.Getenv(EnvServer); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv(EnvProfile); v != "" {
		cfg.Profile.Path = v
	}

	return cfg, cfg.Validate()
}

// merge lays the file's declared values over the defaults in cfg. Zero values
// within a declared block mean "not set" and keep their default.
func merge(cfg *Config, parsed *fileConfig) {
	if s := parsed.Server; s != nil {
		if s.URL != "" {
			cfg.Server.URL = s.URL
		}
		if s.ReconnectAttempts != 0 {
			cfg.Server.ReconnectAttempts = s.ReconnectAttempts
		}
		if s.ReconnectDelayMS != 0 {
			cfg.Server.ReconnectDelayMS = s.ReconnectDelayMS
		}
	}
	if p := parsed.Profile; p != nil && p.Path != "" {
		cfg.Profile.Path = p.Path
	}
	if u := parsed.UI; u != nil {
		if u.LogLevel != "" {
			cfg.UI.LogLevel = u.LogLevel
		}
		if u.LogFile != "" {
			cfg.UI.LogFile = u.LogFile
		}
		if u.Theme != "" {
			cfg.UI.Theme = u.Theme
		}
	}
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Server.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts cannot be negative")
	}
	if c.Server.ReconnectDelayMS <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	switch c.UI.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}
	return nil
}

// ReconnectDelay returns the reconnect delay as a duration
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Server.ReconnectDelayMS) * time.Millisecond
}
