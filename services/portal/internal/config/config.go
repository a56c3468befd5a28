package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPIBaseURL  = "https://api.faydo.ir/api"
	defaultHTTPTimeout = 15 * time.Second
	defaultStubAddr    = ":8089"
)

// Config holds everything the portal needs at startup. Values come from an
// optional YAML file, with environment variables taking precedence.
type Config struct {
	APIBaseURL      string        `yaml:"api_base_url"`
	CredentialsFile string        `yaml:"credentials_file"`
	AgeIdentity     string        `yaml:"age_identity"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	StubListenAddr  string        `yaml:"stub_listen_addr"`
}

// Load resolves the configuration: defaults, then the YAML file named by
// FAYDO_CONFIG (or ~/.config/faydo/config.yaml when present), then FAYDO_*
// environment variables on top.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:     defaultAPIBaseURL,
		HTTPTimeout:    defaultHTTPTimeout,
		StubListenAddr: defaultStubAddr,
	}
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.CredentialsFile = filepath.Join(dir, "faydo", "credentials.json")
	}

	if err := cfg.mergeFile(); err != nil {
		return Config{}, err
	}
	cfg.mergeEnv()

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, errors.New("api base url is required (FAYDO_API_BASE_URL)")
	}
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return Config{}, errors.New("credentials file path is required (FAYDO_CREDENTIALS_FILE)")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("http timeout must be positive, got %s", cfg.HTTPTimeout)
	}

	return cfg, nil
}

func (c *Config) mergeFile() error {
	path := os.Getenv("FAYDO_CONFIG")
	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, "faydo", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if explicit {
			return fmt.Errorf("read FAYDO_CONFIG: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	if v := os.Getenv("FAYDO_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("FAYDO_CREDENTIALS_FILE"); v != "" {
		c.CredentialsFile = v
	}
	if v := os.Getenv("FAYDO_AGE_IDENTITY"); v != "" {
		c.AgeIdentity = v
	}
	if v := os.Getenv("FAYDO_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = d
		}
	}
	if v := os.Getenv("FAYDO_STUB_LISTEN_ADDR"); v != "" {
		c.StubListenAddr = v
	}
}
