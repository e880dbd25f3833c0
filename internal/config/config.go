package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// targets
	URL       string   `yaml:"url"`      // HSTS and MTBF target
	Hostname  string   `yaml:"hostname"` // forward secrecy target
	TLSPort   int      `yaml:"tls_port"`
	PingHosts []string `yaml:"ping_hosts"`

	// cadence
	PingDelay    time.Duration `yaml:"ping_delay"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	ProbeDelay   time.Duration `yaml:"probe_delay"` // HSTS and forward secrecy
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	MTBFWindow   time.Duration `yaml:"mtbf_window"`
	MTBFInterval time.Duration `yaml:"mtbf_interval"`
	MTBFCooldown time.Duration `yaml:"mtbf_cooldown"`
	Rounds       int           `yaml:"rounds"` // 0 = run until stopped

	// false caps the forward secrecy handshake at TLS 1.2
	AllowTLS13 bool `yaml:"allow_tls13"`

	// storage: DatabaseURL wins, then DBPath ("memory" for the in-process store)
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	// read API, disabled when APIAddr is empty
	APIAddr  string   `yaml:"api_addr"`
	APIKeys  []string `yaml:"api_keys"`
	APIRPM   int      `yaml:"api_rpm"`
	APIBurst int      `yaml:"api_burst"`
}

func Default() Config {
	return Config{
		URL:          "https://google.com",
		Hostname:     "google.com",
		TLSPort:      443,
		PingHosts:    []string{"google.com", "github.com", "nonexistentwebsite.com"},
		PingDelay:    10 * time.Second,
		PingTimeout:  5 * time.Second,
		ProbeDelay:   10 * time.Second,
		ProbeTimeout: 5 * time.Second,
		MTBFWindow:   10 * time.Second,
		MTBFInterval: 2 * time.Second,
		MTBFCooldown: 3601 * time.Second,
		AllowTLS13:   true,
		DBPath:       "service_monitoring.db",
		LogDir:       "logs",
		LogLevel:     "info",
		APIRPM:       120,
		APIBurst:     20,
	}
}

// Load builds the config from defaults, an optional .env file, the YAML file
// named by MONITOR_CONFIG, and finally environment variables. Every problem
// found is reported in the returned error, not just the first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return Config{}, err
		}
	}

	err := cfg.applyEnv()
	err = multierr.Append(err, cfg.Validate())
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	ms := func(key string, dst *time.Duration) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = time.Duration(n) * time.Millisecond
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	str("MONITOR_URL", &c.URL)
	str("MONITOR_HOSTNAME", &c.Hostname)
	num("MONITOR_TLS_PORT", &c.TLSPort)
	list("PING_HOSTS", &c.PingHosts)

	ms("PING_DELAY_MS", &c.PingDelay)
	ms("PING_TIMEOUT_MS", &c.PingTimeout)
	ms("PROBE_DELAY_MS", &c.ProbeDelay)
	ms("PROBE_TIMEOUT_MS", &c.ProbeTimeout)
	ms("MTBF_WINDOW_MS", &c.MTBFWindow)
	ms("MTBF_INTERVAL_MS", &c.MTBFInterval)
	ms("MTBF_COOLDOWN_MS", &c.MTBFCooldown)
	num("PROBE_ROUNDS", &c.Rounds)

	if v := os.Getenv("FS_ALLOW_TLS13"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("FS_ALLOW_TLS13: %w", err))
		} else {
			c.AllowTLS13 = b
		}
	}

	str("DB_PATH", &c.DBPath)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_DIR", &c.LogDir)
	str("LOG_LEVEL", &c.LogLevel)

	str("API_ADDR", &c.APIAddr)
	list("API_KEYS", &c.APIKeys)
	num("API_RPM", &c.APIRPM)
	num("API_BURST", &c.APIBurst)
	return errs
}

// Validate checks every field and clamps timeouts below the period they
// run in, so a slow target can't stretch a probe's cadence.
func (c *Config) Validate() error {
	var errs error
	bad := func(format string, a ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, a...))
	}

	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		bad("url %q must be an absolute http(s) URL", c.URL)
	}
	if c.Hostname == "" {
		bad("hostname is required")
	}
	if c.TLSPort < 1 || c.TLSPort > 65535 {
		bad("tls port %d out of range", c.TLSPort)
	}
	if len(c.PingHosts) == 0 {
		bad("at least one ping host is required")
	}
	for i, h := range c.PingHosts {
		if strings.TrimSpace(h) == "" {
			bad("ping host %d is empty", i)
		}
	}

	for name, d := range map[string]time.Duration{
		"ping delay":    c.PingDelay,
		"probe delay":   c.ProbeDelay,
		"mtbf cooldown": c.MTBFCooldown,
	} {
		if d < 0 {
			bad("%s must not be negative", name)
		}
	}
	if c.MTBFWindow <= 0 {
		bad("mtbf window must be positive")
	}
	if c.MTBFInterval <= 0 {
		bad("mtbf interval must be positive")
	}
	if c.PingTimeout <= 0 {
		bad("ping timeout must be positive")
	}
	if c.ProbeTimeout <= 0 {
		bad("probe timeout must be positive")
	}
	if c.Rounds < 0 {
		bad("rounds must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		bad("log level: %w", err)
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		bad("either DATABASE_URL or DB_PATH is required")
	}
	if c.APIAddr != "" {
		if c.APIRPM <= 0 {
			bad("api rpm must be positive")
		}
		if c.APIBurst <= 0 {
			bad("api burst must be positive")
		}
	}

	c.PingTimeout = clampBelow(c.PingTimeout, c.PingDelay)
	c.ProbeTimeout = clampBelow(c.ProbeTimeout, c.ProbeDelay)
	return errs
}

// MTBFTimeout is the per-request timeout inside an MTBF window.
func (c Config) MTBFTimeout() time.Duration {
	return clampBelow(c.ProbeTimeout, c.MTBFInterval)
}

// clampBelow halves timeout down to below period; a zero period leaves it as is.
func clampBelow(timeout, period time.Duration) time.Duration {
	if period <= 0 || timeout < period {
		return timeout
	}
	if period/2 < time.Millisecond {
		return time.Millisecond
	}
	return period / 2
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ErrNoConfig is returned by LoadFile when path does not exist.
var ErrNoConfig = errors.New("config file not found")

// LoadFile reads only a YAML file on top of defaults, without env overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, ErrNoConfig
	}
	if err := cfg.mergeYAML(path); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}
