package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/lthms/sitewise-mcp/internal/sitewise"
	"github.com/lthms/sitewise-mcp/internal/tools"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr      = "127.0.0.1:8000"
	defaultKeepalive = 30 * time.Second
	defaultLogLevel  = "info"
)

// Config is loaded from ~/.config/sitewise-mcp/config.yaml.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	AWS      AWSConfig     `yaml:"aws"`
	Server   ServerConfig  `yaml:"server"`
	Journal  JournalConfig `yaml:"journal"`
	Tools    []string      `yaml:"tools"` // empty = all
}

// AWSConfig configures the telemetry client. Empty fields fall back to the
// AWS SDK's own environment and shared-config resolution.
type AWSConfig struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	VerifyIdentity  *bool  `yaml:"verify_identity"` // default true
	Concurrency     int    `yaml:"concurrency"`
}

// ServerConfig configures the HTTP daemon.
type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	Keepalive time.Duration `yaml:"keepalive"`
}

// JournalConfig configures the call journal.
type JournalConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

func (c AWSConfig) client() sitewise.Config {
	verify := true
	if c.VerifyIdentity != nil {
		verify = *c.VerifyIdentity
	}
	return sitewise.Config{
		Region:          c.Region,
		Profile:         c.Profile,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		VerifyIdentity:  verify,
		Concurrency:     c.Concurrency,
	}
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".config", "sitewise-mcp", "config.yaml"), nil
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "sitewise-mcp", "calls.db")
}

// loadConfig reads the config file at path, or the default location when
// path is empty, and applies defaults. A missing default file yields the
// defaults; a missing explicit file is an error.
func loadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Keepalive == 0 {
		c.Server.Keepalive = defaultKeepalive
	}
	if c.Journal.Path == "" {
		c.Journal.Path = defaultJournalPath()
	}
}

func (c *Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.AWS.Concurrency < 0 {
		return errors.New("aws.concurrency must not be negative")
	}
	if c.Server.Keepalive < 0 {
		return errors.New("server.keepalive must not be negative")
	}
	known := tools.Names()
	for _, name := range c.Tools {
		if !slices.Contains(known, name) {
			return fmt.Errorf("tools: unknown tool %q", name)
		}
	}
	return nil
}
