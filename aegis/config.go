// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration surface. Every recognized option
// maps onto a functional Option, so file-driven and code-driven
// construction compose:
//
//	cfg, _ := aegis.LoadConfig("aegis.yaml")
//	client, err := aegis.New(ctx, append(cfg.Options(), aegis.WithLogger(logger))...)
type FileConfig struct {
	Credentials       Credentials  `yaml:"credentials"`
	Endpoints         *Endpoints   `yaml:"endpoints,omitempty"`
	Services          *ServiceURLs `yaml:"services,omitempty"`
	UserAgent         string       `yaml:"user_agent,omitempty"`
	AutoRefresh       *bool        `yaml:"auto_refresh,omitempty"`
	KillOtherSessions bool         `yaml:"kill_other_sessions,omitempty"`
	ShutdownHook      bool         `yaml:"shutdown_hook,omitempty"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data.
func ParseConfig(data []byte) (*FileConfig, error) {
	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// Options translates the file configuration into client options.
func (fc *FileConfig) Options() []Option {
	opts := []Option{WithCredentials(fc.Credentials)}
	if fc.Endpoints != nil {
		opts = append(opts, WithEndpoints(*fc.Endpoints))
	}
	if fc.Services != nil {
		opts = append(opts, WithServiceURLs(*fc.Services))
	}
	if fc.UserAgent != "" {
		opts = append(opts, WithUserAgent(fc.UserAgent))
	}
	if fc.AutoRefresh != nil {
		opts = append(opts, WithAutoRefresh(*fc.AutoRefresh))
	}
	if fc.KillOtherSessions {
		opts = append(opts, WithKillOtherSessions(true))
	}
	if fc.ShutdownHook {
		opts = append(opts, WithShutdownHook(true))
	}
	return opts
}

// CredentialsFromEnv builds credentials from environment variables,
// loading the given dotenv files first (or ./.env when none are given,
// silently skipped if absent). Recognized variables:
//
//	AEGIS_GRANT          password | exchange_code | refresh_token
//	AEGIS_EMAIL          AEGIS_PASSWORD
//	AEGIS_TWO_FACTOR     literal one-time code
//	AEGIS_TOTP_SECRET    secret to mint codes from
//	AEGIS_EXCHANGE_CODE  AEGIS_REFRESH_TOKEN  AEGIS_CLIENT_TOKEN
func CredentialsFromEnv(files ...string) (Credentials, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Credentials{}, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Credentials{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	return Credentials{
		Grant:         GrantType(os.Getenv("AEGIS_GRANT")),
		Email:         os.Getenv("AEGIS_EMAIL"),
		Password:      os.Getenv("AEGIS_PASSWORD"),
		TwoFactorCode: os.Getenv("AEGIS_TWO_FACTOR"),
		TOTPSecret:    os.Getenv("AEGIS_TOTP_SECRET"),
		ExchangeCode:  os.Getenv("AEGIS_EXCHANGE_CODE"),
		RefreshToken:  os.Getenv("AEGIS_REFRESH_TOKEN"),
		ClientToken:   os.Getenv("AEGIS_CLIENT_TOKEN"),
	}, nil
}
