package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/w1xm/slew_interface/settle"
	"github.com/w1xm/slew_interface/slewtest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Errorf("defaults: got(+)/want(-):\n%s", diff)
	}
	if cfg.Slew.ToleranceDeg != 0.05 || cfg.Slew.Timeout != 120*time.Second || cfg.Slew.PollInterval != 10*time.Millisecond {
		t.Errorf("unexpected slew defaults: %+v", cfg.Slew)
	}
	if cfg.Mount.BaseURL != "http://localhost:8220" {
		t.Errorf("base_url = %q", cfg.Mount.BaseURL)
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mount:
  base_url: http://mount:8220
  init_delay: 1s
  strict_init: true
slew:
  poll_interval: 250ms
  tolerance_deg: 0.1
  timeout: 2m
record:
  path: /var/log/slew.txt
influx:
  url: http://influx:8086
  token: secret
status_log:
  interval: 5s
  dir: /var/log/mount
tracing:
  enabled: true
  exporter: none
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := slewtest.Config{
		Settle:     settle.Config{Timeout: 2 * time.Minute, Interval: 250 * time.Millisecond},
		Tolerance:  0.1,
		InitDelay:  time.Second,
		StrictInit: true,
	}
	if diff := cmp.Diff(want, cfg.Runner()); diff != "" {
		t.Errorf("Runner(): got(+)/want(-):\n%s", diff)
	}
	if cfg.Influx.URL != "http://influx:8086" || cfg.Influx.Org != "w1xm" || cfg.Influx.Bucket != "slew" {
		t.Errorf("influx = %+v", cfg.Influx)
	}
	if cfg.StatusLog.Interval != 5*time.Second || cfg.StatusLog.Dir != "/var/log/mount" {
		t.Errorf("status_log = %+v", cfg.StatusLog)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, test := range []struct {
		name, body, want string
	}{
		{"bad yaml", "slew: [", "unmarshal yaml"},
		{"negative tolerance", "slew: {tolerance_deg: -1}", "tolerance_deg"},
		{"negative timeout", "slew: {timeout: -1s}", "timeout"},
		{"negative interval", "slew: {poll_interval: -1s}", "poll_interval"},
		{"exporter", "tracing: {exporter: jaeger}", "exporter"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.body))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Load error = %v, want mention of %q", err, test.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty base_url", func(c *Config) { c.Mount.BaseURL = "" }, "mount.base_url"},
		{"zero poll_interval", func(c *Config) { c.Slew.PollInterval = 0 }, "slew.poll_interval must be > 0"},
		{"zero tolerance", func(c *Config) { c.Slew.ToleranceDeg = 0 }, "slew.tolerance_deg must be > 0"},
		{"zero timeout", func(c *Config) { c.Slew.Timeout = 0 }, "slew.timeout must be > 0"},
		{"negative init_delay", func(c *Config) { c.Mount.InitDelay = -time.Second }, "mount.init_delay must be >= 0"},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Validate error = %v, want mention of %q", err, test.want)
			}
		})
	}
	cfg := Default()
	cfg.Mount.InitDelay = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero init_delay rejected: %v", err)
	}
	cfg = Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
}
