package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type Config struct {
	ServerURL      string `yaml:"server_url"`
	APIToken       string `yaml:"api_token,omitempty"`
	PageSize       int    `yaml:"page_size,omitempty"`
	RequestTimeout string `yaml:"request_timeout,omitempty"`
	MaxRetries     *int   `yaml:"max_retries,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`
}

// Token returns the resolved API token (config or env var).
func (c *Config) Token() string {
	if c.APIToken != "" {
		return c.APIToken
	}
	return os.Getenv("READER_API_TOKEN")
}

func (c *Config) GetPageSize() int {
	if c.PageSize <= 0 {
		return 20
	}
	return c.PageSize
}

func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetMaxRetries returns the rate-limit retry budget, defaulting to 3.
func (c *Config) GetMaxRetries() int {
	if c.MaxRetries == nil || *c.MaxRetries < 0 {
		return 3
	}
	return *c.MaxRetries
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "reader", "config.yaml")
}

func StatePath() string {
	return filepath.Join(xdg.CacheHome, "reader", "state.db")
}

func LogPath() string {
	return filepath.Join(xdg.StateHome, "reader", "reader.log")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := *defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.RequestTimeout != "" {
		if _, err := time.ParseDuration(cfg.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", cfg.RequestTimeout, err)
		}
	}
	return nil
}
