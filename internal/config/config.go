// Package config loads the hostpin bootstrap file.
//
// The config file says where things live and what a fresh install starts
// with. Runtime-mutable settings (pool, domains, interval...) are kept in
// the database and seeded from Defaults the first time it is opened.
//
// Config file locations (priority order):
//  1. --config flag
//  2. $HOSTPIN_CONFIG
//  3. ./hostpin.yaml
//  4. ~/.config/hostpin/config.yaml
//  5. /etc/hostpin/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

// DefaultListen is where the daemon serves the API when unset.
const DefaultListen = "127.0.0.1:8765"

// DefaultAddresses is the candidate pool a fresh install starts with.
var DefaultAddresses = []string{
	"119.28.13.121",
	"154.40.44.47",
	"101.32.183.34",
	"43.128.3.53",
	"104.18.22.110",
	"104.26.4.98",
	"104.18.39.102",
	"104.21.34.55",
	"172.67.202.131",
	"104.16.249.45",
	"208.103.161.2",
}

// DefaultDomains is the domain set a fresh install starts with.
var DefaultDomains = []string{
	"www.notion.so",
	"msgstore.www.notion.so",
}

// Config is the on-disk bootstrap configuration.
type Config struct {
	HostsPath      string   `yaml:"hosts_path,omitempty"`
	DBPath         string   `yaml:"db_path,omitempty"`
	Listen         string   `yaml:"listen,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty"`
	PrivilegeCheck *bool    `yaml:"privilege_check,omitempty"`
	Defaults       Defaults `yaml:"defaults"`
}

// Defaults seed the runtime settings of a new database.
type Defaults struct {
	Addresses  []string `yaml:"addresses,omitempty"`
	Domains    []string `yaml:"domains,omitempty"`
	Interval   Duration `yaml:"interval,omitempty"`
	Workers    int      `yaml:"workers,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	Strategy   string   `yaml:"strategy,omitempty"`
	BackupKeep *int     `yaml:"backup_keep,omitempty"`
}

// Load finds and loads the config file, or returns defaults if none found.
// A non-empty explicit path must exist.
func Load(explicit string) (*Config, string, error) {
	if explicit != "" {
		return LoadFromPath(explicit)
	}

	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, path, nil
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PrivilegeCheck == nil {
		enabled := true
		c.PrivilegeCheck = &enabled
	}

	d := &c.Defaults
	if len(d.Addresses) == 0 {
		d.Addresses = append([]string(nil), DefaultAddresses...)
	}
	if len(d.Domains) == 0 {
		d.Domains = append([]string(nil), DefaultDomains...)
	}
	if d.Workers == 0 {
		d.Workers = 16
	}
	if d.Timeout == 0 {
		d.Timeout = Duration(3 * time.Second)
	}
	if d.Strategy == "" {
		d.Strategy = "https"
	}
	if d.BackupKeep == nil {
		keep := 10
		d.BackupKeep = &keep
	}
}

// Validate checks the seed settings with the same rules the settings store
// applies.
func (c *Config) Validate() error {
	return storage.ValidateSettings(c.Settings())
}

// Settings returns Defaults as a typed settings record.
func (c *Config) Settings() *models.Settings {
	d := c.Defaults
	keep := 0
	if d.BackupKeep != nil {
		keep = *d.BackupKeep
	}
	return &models.Settings{
		Addresses:  models.Dedup(d.Addresses),
		Domains:    models.Dedup(d.Domains),
		Interval:   d.Interval.Duration(),
		Workers:    d.Workers,
		Timeout:    d.Timeout.Duration(),
		Strategy:   d.Strategy,
		BackupKeep: keep,
	}
}

// SeedSettings returns Defaults as settings table rows.
func (c *Config) SeedSettings() map[string]string {
	return storage.EncodeSettings(c.Settings())
}

// PrivilegeCheckEnabled reports whether runs verify elevation first.
func (c *Config) PrivilegeCheckEnabled() bool {
	return c.PrivilegeCheck == nil || *c.PrivilegeCheck
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
