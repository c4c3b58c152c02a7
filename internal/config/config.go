// Package config loads the YAML configuration shared by the commands.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/w1xm/slew_interface/settle"
	"github.com/w1xm/slew_interface/slewtest"
)

type MountConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	InitDelay      time.Duration `yaml:"init_delay"`
	// StrictInit aborts a test when connect or enable fails.
	StrictInit bool `yaml:"strict_init"`
}

type SlewConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ToleranceDeg float64       `yaml:"tolerance_deg"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RecordConfig struct {
	Path string `yaml:"path"`
}

// InfluxConfig is disabled when URL is empty.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type StatusLogConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Dir        string        `yaml:"dir"`
	StatusFile string        `yaml:"status_file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

type Config struct {
	Mount     MountConfig     `yaml:"mount"`
	Slew      SlewConfig      `yaml:"slew"`
	Record    RecordConfig    `yaml:"record"`
	Influx    InfluxConfig    `yaml:"influx"`
	StatusLog StatusLogConfig `yaml:"status_log"`
	Server    ServerConfig    `yaml:"server"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Mount.BaseURL == "" {
		c.Mount.BaseURL = "http://localhost:8220"
	}
	if c.Mount.RequestTimeout <= 0 {
		c.Mount.RequestTimeout = 5 * time.Second
	}
	if c.Mount.InitDelay == 0 {
		c.Mount.InitDelay = 300 * time.Millisecond
	}
	if c.Slew.PollInterval == 0 {
		c.Slew.PollInterval = 10 * time.Millisecond
	}
	if c.Slew.ToleranceDeg == 0 {
		c.Slew.ToleranceDeg = 0.05
	}
	if c.Slew.Timeout == 0 {
		c.Slew.Timeout = 120 * time.Second
	}
	if c.Record.Path == "" {
		c.Record.Path = "slew_speed_log.txt"
	}
	if c.Influx.Org == "" {
		c.Influx.Org = "w1xm"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "slew"
	}
	if c.StatusLog.Interval <= 0 {
		c.StatusLog.Interval = time.Second
	}
	if c.StatusLog.Dir == "" {
		c.StatusLog.Dir = "logs"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8503"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Mount.BaseURL == "" {
		return fmt.Errorf("mount.base_url must be set")
	}
	if c.Mount.InitDelay < 0 {
		return fmt.Errorf("mount.init_delay must be >= 0, got %v", c.Mount.InitDelay)
	}
	if c.Slew.PollInterval <= 0 {
		return fmt.Errorf("slew.poll_interval must be > 0, got %v", c.Slew.PollInterval)
	}
	if c.Slew.ToleranceDeg <= 0 {
		return fmt.Errorf("slew.tolerance_deg must be > 0, got %.4f", c.Slew.ToleranceDeg)
	}
	if c.Slew.Timeout <= 0 {
		return fmt.Errorf("slew.timeout must be > 0, got %v", c.Slew.Timeout)
	}
	switch c.Tracing.Exporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("tracing.exporter must be stdout or none, got %q", c.Tracing.Exporter)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Runner returns the slew test settings.
func (c *Config) Runner() slewtest.Config {
	return slewtest.Config{
		Settle: settle.Config{
			Timeout:  c.Slew.Timeout,
			Interval: c.Slew.PollInterval,
		},
		Tolerance:  c.Slew.ToleranceDeg,
		InitDelay:  c.Mount.InitDelay,
		StrictInit: c.Mount.StrictInit,
	}
}
