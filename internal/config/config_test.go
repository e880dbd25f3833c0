package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONITOR_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://google.com" || cfg.Hostname != "google.com" || cfg.TLSPort != 443 {
		t.Fatalf("target defaults wrong: %+v", cfg)
	}
	if len(cfg.PingHosts) != 3 || cfg.PingHosts[2] != "nonexistentwebsite.com" {
		t.Fatalf("ping hosts wrong: %v", cfg.PingHosts)
	}
	if cfg.MTBFCooldown != 3601*time.Second || cfg.MTBFWindow != 10*time.Second || cfg.MTBFInterval != 2*time.Second {
		t.Fatalf("mtbf defaults wrong: %+v", cfg)
	}
	if cfg.DBPath != "service_monitoring.db" || cfg.APIAddr != "" {
		t.Fatalf("storage/api defaults wrong: %+v", cfg)
	}
	if !cfg.AllowTLS13 {
		t.Fatal("TLS 1.3 must be allowed by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MONITOR_URL", "https://example.org/health")
	t.Setenv("MONITOR_HOSTNAME", "example.org")
	t.Setenv("MONITOR_TLS_PORT", "8443")
	t.Setenv("PING_HOSTS", " a.test , ,b.test ")
	t.Setenv("PING_DELAY_MS", "1500")
	t.Setenv("PROBE_ROUNDS", "4")
	t.Setenv("FS_ALLOW_TLS13", "false")
	t.Setenv("DB_PATH", "memory")
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("API_KEYS", "k1,k2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://example.org/health" || cfg.Hostname != "example.org" || cfg.TLSPort != 8443 {
		t.Fatalf("targets wrong: %+v", cfg)
	}
	if strings.Join(cfg.PingHosts, "|") != "a.test|b.test" {
		t.Fatalf("ping hosts wrong: %q", cfg.PingHosts)
	}
	if cfg.PingDelay != 1500*time.Millisecond || cfg.Rounds != 4 || cfg.AllowTLS13 {
		t.Fatalf("cadence wrong: %+v", cfg)
	}
	if cfg.DBPath != "memory" || cfg.APIAddr != ":9090" || len(cfg.APIKeys) != 2 {
		t.Fatalf("storage/api wrong: %+v", cfg)
	}
}

func TestLoad_AggregatesErrors(t *testing.T) {
	t.Setenv("PING_DELAY_MS", "soon")
	t.Setenv("MONITOR_URL", "ftp://example.org")
	t.Setenv("MONITOR_TLS_PORT", "70000")

	_, err := Load()
	if err == nil {
		t.Fatal("want error")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Fatalf("want 3 aggregated errors, got %d: %v", n, err)
	}
}

func TestValidate_ClampsTimeoutsBelowPeriod(t *testing.T) {
	cfg := Default()
	cfg.PingDelay = 2 * time.Second
	cfg.PingTimeout = 5 * time.Second
	cfg.ProbeDelay = 0
	cfg.ProbeTimeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.PingTimeout != time.Second {
		t.Fatalf("want ping timeout clamped to 1s, got %v", cfg.PingTimeout)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("zero delay must not clamp, got %v", cfg.ProbeTimeout)
	}
	if got := cfg.MTBFTimeout(); got != time.Second {
		t.Fatalf("want mtbf request timeout below 2s interval, got %v", got)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	body := `
url: https://yaml.example
ping_hosts: [one.test]
probe_delay: 30s
mtbf_window: 1m
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MONITOR_CONFIG", path)
	t.Setenv("PROBE_DELAY_MS", "45000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://yaml.example" || len(cfg.PingHosts) != 1 || cfg.MTBFWindow != time.Minute {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.ProbeDelay != 45*time.Second {
		t.Fatalf("env must win over yaml, got %v", cfg.ProbeDelay)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err != ErrNoConfig {
		t.Fatalf("want ErrNoConfig, got %v", err)
	}
}
