// Package config loads daemon settings from YAML with OMNI_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"omni/go-backend/internal/platform/ratelimiter"
)

const (
	DefaultName   = "omni"
	DefaultListen = "127.0.0.1:8000"
)

type Config struct {
	Server   ServerConfig
	Accounts AccountsConfig
}

type ServerConfig struct {
	Name       string
	Listen     string
	GRPCListen string
	KeyFile    string
	// KeyPassphrase is only read from the environment.
	KeyPassphrase string
	RateLimit     RateLimitConfig
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type AccountsConfig struct {
	Enabled   bool
	StatePath string
	// Passphrase encrypts the state file; only read from the environment.
	Passphrase string
}

// fileConfig mirrors the YAML layout. Pointers distinguish "unset" from zero.
type fileConfig struct {
	Server   fileServerConfig   `yaml:"server"`
	Accounts fileAccountsConfig `yaml:"accounts"`
}

type fileServerConfig struct {
	Name       string              `yaml:"name"`
	Listen     string              `yaml:"listen"`
	GRPCListen string              `yaml:"grpcListen"`
	KeyFile    string              `yaml:"keyFile"`
	RateLimit  fileRateLimitConfig `yaml:"rateLimit"`
}

type fileRateLimitConfig struct {
	Enabled *bool    `yaml:"enabled"`
	RPS     *float64 `yaml:"rps"`
	Burst   *int     `yaml:"burst"`
}

type fileAccountsConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	StatePath string `yaml:"statePath"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:      DefaultName,
			Listen:    DefaultListen,
			RateLimit: RateLimitConfig{Enabled: false, RPS: 20, Burst: 40},
		},
		Accounts: AccountsConfig{Enabled: true},
	}
}

// Load reads configPath, or the first default candidate that exists when
// configPath is empty, then applies environment overrides. A missing
// default candidate is not an error; a missing explicit path is.
func Load(configPath string) (Config, error) {
	cfg := Default()

	candidates := []string{"configs/config.yaml", "config.yaml"}
	if configPath != "" {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && configPath == "" {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		merge(&cfg, parsed)
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func merge(dst *Config, src fileConfig) {
	if src.Server.Name != "" {
		dst.Server.Name = src.Server.Name
	}
	if src.Server.Listen != "" {
		dst.Server.Listen = src.Server.Listen
	}
	if src.Server.GRPCListen != "" {
		dst.Server.GRPCListen = src.Server.GRPCListen
	}
	if src.Server.KeyFile != "" {
		dst.Server.KeyFile = src.Server.KeyFile
	}
	if src.Server.RateLimit.Enabled != nil {
		dst.Server.RateLimit.Enabled = *src.Server.RateLimit.Enabled
	}
	if src.Server.RateLimit.RPS != nil {
		dst.Server.RateLimit.RPS = *src.Server.RateLimit.RPS
	}
	if src.Server.RateLimit.Burst != nil {
		dst.Server.RateLimit.Burst = *src.Server.RateLimit.Burst
	}
	if src.Accounts.Enabled != nil {
		dst.Accounts.Enabled = *src.Accounts.Enabled
	}
	if src.Accounts.StatePath != "" {
		dst.Accounts.StatePath = src.Accounts.StatePath
	}
}

// ApplyEnvOverrides applies OMNI_* variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Name, "OMNI_NAME")
	setString(&cfg.Server.Listen, "OMNI_LISTEN")
	setString(&cfg.Server.GRPCListen, "OMNI_GRPC_LISTEN")
	setString(&cfg.Server.KeyFile, "OMNI_KEY_FILE")
	setString(&cfg.Accounts.StatePath, "OMNI_ACCOUNTS_STATE_PATH")
	cfg.Server.KeyPassphrase = os.Getenv("OMNI_KEY_PASSPHRASE")
	cfg.Accounts.Passphrase = os.Getenv("OMNI_ACCOUNTS_PASSPHRASE")

	if raw, ok := lookup("OMNI_RATE_LIMIT_ENABLED"); ok {
		v, err := parseBoolEnv(raw)
		if err != nil {
			return fmt.Errorf("OMNI_RATE_LIMIT_ENABLED: %w", err)
		}
		cfg.Server.RateLimit.Enabled = v
	}
	if raw, ok := lookup("OMNI_RATE_LIMIT_RPS"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("OMNI_RATE_LIMIT_RPS: %w", err)
		}
		cfg.Server.RateLimit.RPS = v
	}
	if raw, ok := lookup("OMNI_RATE_LIMIT_BURST"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("OMNI_RATE_LIMIT_BURST: %w", err)
		}
		cfg.Server.RateLimit.Burst = v
	}
	if raw, ok := lookup("OMNI_ACCOUNTS_ENABLED"); ok {
		v, err := parseBoolEnv(raw)
		if err != nil {
			return fmt.Errorf("OMNI_ACCOUNTS_ENABLED: %w", err)
		}
		cfg.Accounts.Enabled = v
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen is required")
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return errors.New("server.rateLimit needs positive rps and burst when enabled")
	}
	return nil
}

// Limiter converts the rate limit section for the transports.
func (r RateLimitConfig) Limiter() ratelimiter.Config {
	return ratelimiter.Config{Enabled: r.Enabled, RPS: r.RPS, Burst: r.Burst}
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func parseBoolEnv(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}
