package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenAddr   = ":8000"
	DefaultInterval     = 30 * time.Second
	DefaultScheme       = "https"
	DefaultMaxRetries   = 2
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultTokenTTL     = 10 * time.Minute
	DefaultSafetyMargin = 30 * time.Second
)

// Config is the top-level exporter configuration.
type Config struct {
	// ListenAddr is the exposition bind address (host:port).
	ListenAddr string `yaml:"listen_addr" validate:"required"`

	// Interval is the default poll period; targets may override it.
	Interval time.Duration `yaml:"interval" validate:"gt=0"`

	// StaleAfter is the age past which a sample is flagged stale.
	// Defaults to three poll intervals.
	StaleAfter time.Duration `yaml:"stale_after" validate:"gte=0"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Retry RetryConfig `yaml:"retry"`
	Token TokenConfig `yaml:"token"`

	// Single-target shorthand: when targets is empty, these top-level fields
	// define one implicit target.
	Host        string   `yaml:"host"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	PasswordEnv string   `yaml:"password_env"`
	Variables   []string `yaml:"variables"`

	Targets []Target `yaml:"targets" validate:"dive"`
}

// RetryConfig is the per-cycle retry budget for poll failures.
type RetryConfig struct {
	// MaxRetries caps in-cycle retries; the budget resets every tick.
	MaxRetries uint64 `yaml:"max_retries"`

	// BaseDelay and MaxDelay bound the exponential backoff between retries.
	BaseDelay time.Duration `yaml:"base_delay" validate:"gt=0"`
	MaxDelay  time.Duration `yaml:"max_delay" validate:"gt=0"`
}

// TokenConfig tunes the OAuth token lifecycle.
type TokenConfig struct {
	// TTL is the assumed token lifetime when the access token carries no
	// exp claim.
	TTL time.Duration `yaml:"ttl" validate:"gt=0"`

	// SafetyMargin is how long before expiry a token is refreshed.
	SafetyMargin time.Duration `yaml:"safety_margin" validate:"gte=0"`
}

// Target describes one PADM API instance to poll.
type Target struct {
	// Name identifies the target in logs and the "target" metric label.
	// Defaults to the host.
	Name string `yaml:"name"`

	Host   string `yaml:"host" validate:"required"`
	Port   int    `yaml:"port" validate:"gte=0,lte=65535"`
	Scheme string `yaml:"scheme" validate:"omitempty,oneof=http https"`

	// TLSInsecure disables certificate verification; PADM devices commonly
	// ship self-signed certificates.
	TLSInsecure bool `yaml:"tls_insecure"`

	// Interval overrides the top-level poll period for this target.
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	Username string `yaml:"username" validate:"required"`

	// Password is the literal password; PasswordEnv names an environment
	// variable holding it. Exactly one should be set.
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`

	// Variables is the list of PADM variable labels to track.
	// Empty tracks every label in the built-in catalog.
	Variables []string `yaml:"variables"`

	// CustomVariables extend (or override) the built-in catalog.
	CustomVariables []CustomVariable `yaml:"custom_variables" validate:"dive"`
}

// CustomVariable declares a variable label absent from the built-in catalog.
type CustomVariable struct {
	// Label is the upstream variable label.
	Label string `yaml:"label" validate:"required"`

	// Name is the exported metric name.
	Name string `yaml:"name" validate:"required"`

	// Type is gauge (default) or counter.
	Type string `yaml:"type" validate:"omitempty,oneof=gauge counter"`

	Help string `yaml:"help"`
}

// BaseURL returns scheme://host[:port] for API calls.
func (t Target) BaseURL() string {
	u := t.Scheme + "://" + t.Host
	if t.Port != 0 {
		u = fmt.Sprintf("%s:%d", u, t.Port)
	}
	return u
}

// ResolvedPassword returns the literal password or, when PasswordEnv is set,
// the value of that environment variable.
func (t Target) ResolvedPassword() string {
	if t.PasswordEnv != "" {
		return os.Getenv(t.PasswordEnv)
	}
	return t.Password
}

// SlogLevel maps the configured log level onto slog's scale.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults; the single-target
// shorthand is promoted to a one-element target list.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	normalize(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Interval:   DefaultInterval,
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
			MaxDelay:   DefaultMaxDelay,
		},
		Token: TokenConfig{
			TTL:          DefaultTokenTTL,
			SafetyMargin: DefaultSafetyMargin,
		},
	}
}

// normalize promotes the single-target shorthand and fills per-target
// defaults so downstream code never re-derives them.
func normalize(cfg *Config) {
	if len(cfg.Targets) == 0 && cfg.Host != "" {
		cfg.Targets = []Target{{
			Host:        cfg.Host,
			Username:    cfg.Username,
			Password:    cfg.Password,
			PasswordEnv: cfg.PasswordEnv,
			Variables:   cfg.Variables,
		}}
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.Name == "" {
			t.Name = t.Host
		}
		if t.Scheme == "" {
			t.Scheme = DefaultScheme
		}
		if t.Interval == 0 {
			t.Interval = cfg.Interval
		}
	}

	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 3 * cfg.Interval
	}
}

// validate checks struct tags and cross-field constraints.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required (targets list or top-level host)")
	}

	seen := make(map[string]bool, len(cfg.Targets))
	for i, t := range cfg.Targets {
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate target name %q", i, t.Name)
		}
		seen[t.Name] = true

		if t.Password == "" && t.PasswordEnv == "" {
			return fmt.Errorf("targets[%d] %q: password or password_env is required", i, t.Name)
		}
		if t.Password != "" && t.PasswordEnv != "" {
			return fmt.Errorf("targets[%d] %q: password and password_env are mutually exclusive", i, t.Name)
		}
	}
	return nil
}
