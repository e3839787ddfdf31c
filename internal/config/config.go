package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig     `json:"app"`
	Scan    ScanConfig    `json:"scan"`
	Alert   AlertConfig   `json:"alert"`
	Metrics MetricsConfig `json:"metrics"`
	History HistoryConfig `json:"history"`
	Server  ServerConfig  `json:"server"`
	Cache   CacheConfig   `json:"cache"`
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name      string `json:"name"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	// Output is the report format written to stdout: text or json.
	Output string `json:"output"`
	// ShowVersion asks the binary to print its build information and exit.
	ShowVersion bool `json:"-"`
}

// ScanConfig controls how targets are probed.
type ScanConfig struct {
	TargetsPath         string        `json:"targets_path"`
	ProbeTimeout        time.Duration `json:"probe_timeout"`
	LivenessTimeout     time.Duration `json:"liveness_timeout"`
	Concurrency         int           `json:"concurrency"`
	Nameserver          string        `json:"nameserver"`
	Registration        bool          `json:"registration"`
	RegistrationTimeout time.Duration `json:"registration_timeout"`
}

// AlertConfig configures the alert channels. Channels without an endpoint
// are disabled.
type AlertConfig struct {
	WebhookURL    string        `json:"webhook_url"`
	WebhookToken  string        `json:"-"`
	WebhookFormat string        `json:"webhook_format"`
	Recipient     string        `json:"recipient"`
	Timeout       time.Duration `json:"timeout"`
	SMTP          SMTPConfig    `json:"smtp"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	From     string `json:"from"`
}

type MetricsConfig struct {
	PushgatewayURL string        `json:"pushgateway_url"`
	Job            string        `json:"job"`
	PushTimeout    time.Duration `json:"push_timeout"`
}

type HistoryConfig struct {
	DBPath string `json:"db_path"`
}

// ServerConfig enables serve mode when Addr is set.
type ServerConfig struct {
	Addr     string        `json:"addr"`
	Interval time.Duration `json:"interval"`
}

// Enabled reports whether the process should keep running and serve
// results instead of scanning once.
func (s *ServerConfig) Enabled() bool {
	return s.Addr != ""
}

// CacheMode represents the cache implementation mode
type CacheMode string

const (
	CacheModeNone CacheMode = "none"
	CacheModeMem  CacheMode = "mem"
)

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Mode CacheMode     `json:"mode"`
	TTL  time.Duration `json:"ttl"`
}

const defaultEnvFile = ".env"

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:      "certwatch",
			LogLevel:  "info",
			LogFormat: "text",
			Output:    "text",
		},
		Scan: ScanConfig{
			TargetsPath:         "targets.json",
			ProbeTimeout:        3 * time.Second,
			LivenessTimeout:     3 * time.Second,
			Concurrency:         1,
			RegistrationTimeout: 5 * time.Second,
		},
		Alert: AlertConfig{
			WebhookFormat: "json",
			Timeout:       5 * time.Second,
			SMTP:          SMTPConfig{Port: 587},
		},
		Metrics: MetricsConfig{
			Job:         "certwatch",
			PushTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Interval: time.Hour,
		},
		Cache: CacheConfig{
			Mode: CacheModeMem,
			TTL:  2 * time.Hour,
		},
	}
}

// Load reads configuration from defaults, an optional .env file,
// CERTWATCH_* environment variables and the process arguments, in that
// order of increasing precedence.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit command line arguments.
func LoadArgs(args []string) (*Config, error) {
	cfg := defaults()

	envFile := defaultEnvFile
	if f := os.Getenv("CERTWATCH_ENV_FILE"); f != "" {
		envFile = f
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	// Load from environment variables first
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	// Load from command line flags (overrides env vars)
	if err := cfg.loadFromFlags(args); err != nil {
		return nil, fmt.Errorf("failed to load from flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	setString(&c.App.Name, "CERTWATCH_APP_NAME")
	setString(&c.App.LogLevel, "CERTWATCH_LOG_LEVEL")
	setString(&c.App.LogFormat, "CERTWATCH_LOG_FORMAT")
	setString(&c.App.Output, "CERTWATCH_OUTPUT")

	setString(&c.Scan.TargetsPath, "CERTWATCH_TARGETS")
	setString(&c.Scan.Nameserver, "CERTWATCH_NAMESERVER")
	if err := setDuration(&c.Scan.ProbeTimeout, "CERTWATCH_PROBE_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Scan.LivenessTimeout, "CERTWATCH_LIVENESS_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.Scan.Concurrency, "CERTWATCH_CONCURRENCY"); err != nil {
		return err
	}
	if err := setBool(&c.Scan.Registration, "CERTWATCH_REGISTRATION"); err != nil {
		return err
	}
	if err := setDuration(&c.Scan.RegistrationTimeout, "CERTWATCH_REGISTRATION_TIMEOUT"); err != nil {
		return err
	}

	setString(&c.Alert.WebhookURL, "CERTWATCH_ALERT_URL")
	setString(&c.Alert.WebhookToken, "CERTWATCH_ALERT_TOKEN")
	setString(&c.Alert.WebhookFormat, "CERTWATCH_ALERT_FORMAT")
	setString(&c.Alert.Recipient, "CERTWATCH_ALERT_RECIPIENT")
	if err := setDuration(&c.Alert.Timeout, "CERTWATCH_ALERT_TIMEOUT"); err != nil {
		return err
	}
	setString(&c.Alert.SMTP.Host, "CERTWATCH_SMTP_HOST")
	if err := setInt(&c.Alert.SMTP.Port, "CERTWATCH_SMTP_PORT"); err != nil {
		return err
	}
	setString(&c.Alert.SMTP.Username, "CERTWATCH_SMTP_USERNAME")
	setString(&c.Alert.SMTP.Password, "CERTWATCH_SMTP_PASSWORD")
	setString(&c.Alert.SMTP.From, "CERTWATCH_SMTP_FROM")

	setString(&c.Metrics.PushgatewayURL, "CERTWATCH_PUSHGATEWAY_URL")
	setString(&c.Metrics.Job, "CERTWATCH_PUSHGATEWAY_JOB")
	if err := setDuration(&c.Metrics.PushTimeout, "CERTWATCH_PUSH_TIMEOUT"); err != nil {
		return err
	}

	setString(&c.History.DBPath, "CERTWATCH_HISTORY_DB")

	setString(&c.Server.Addr, "CERTWATCH_SERVE")
	if err := setDuration(&c.Server.Interval, "CERTWATCH_INTERVAL"); err != nil {
		return err
	}

	// Cache configuration
	if mode := os.Getenv("CERTWATCH_CACHE_MODE"); mode != "" {
		switch CacheMode(mode) {
		case CacheModeNone, CacheModeMem:
			c.Cache.Mode = CacheMode(mode)
		default:
			return fmt.Errorf("invalid CERTWATCH_CACHE_MODE value '%s': must be 'none' or 'mem'", mode)
		}
	}
	if err := setDuration(&c.Cache.TTL, "CERTWATCH_CACHE_TTL"); err != nil {
		return err
	}

	return nil
}

// loadFromFlags loads configuration from command line flags
func (c *Config) loadFromFlags(args []string) error {
	flags := pflag.NewFlagSet(c.App.Name, pflag.ContinueOnError)

	flags.StringVarP(&c.Scan.TargetsPath, "targets", "t", c.Scan.TargetsPath, "Target list (JSON, or YAML with a .yaml/.yml extension)")
	flags.DurationVar(&c.Scan.ProbeTimeout, "timeout", c.Scan.ProbeTimeout, "Timeout for each certificate probe step")
	flags.DurationVar(&c.Scan.LivenessTimeout, "liveness-timeout", c.Scan.LivenessTimeout, "Timeout for each liveness request")
	flags.IntVarP(&c.Scan.Concurrency, "concurrency", "c", c.Scan.Concurrency, "Targets scanned in parallel")
	flags.StringVar(&c.Scan.Nameserver, "nameserver", c.Scan.Nameserver, "DNS server (host[:port]) to resolve targets with; system resolver when empty")
	flags.BoolVar(&c.Scan.Registration, "registration", c.Scan.Registration, "Also report domain registration expiry via WHOIS")

	flags.StringVar(&c.App.LogLevel, "log-level", c.App.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&c.App.LogFormat, "log-format", c.App.LogFormat, "Log format: text or json")
	flags.StringVarP(&c.App.Output, "output", "o", c.App.Output, "Report format: text or json")
	flags.BoolVarP(&c.App.ShowVersion, "version", "v", false, "Print version information and exit")

	flags.StringVar(&c.Alert.WebhookURL, "alert-url", c.Alert.WebhookURL, "Webhook endpoint alerts are POSTed to")
	flags.StringVar(&c.Alert.Recipient, "alert-recipient", c.Alert.Recipient, "Recipient identifier sent with each alert")
	flags.StringVar(&c.Alert.WebhookFormat, "alert-format", c.Alert.WebhookFormat, "Webhook payload: json or slack")

	flags.StringVar(&c.Metrics.PushgatewayURL, "pushgateway", c.Metrics.PushgatewayURL, "Push metrics to this Pushgateway after a one-shot scan")
	flags.DurationVar(&c.Metrics.PushTimeout, "push-timeout", c.Metrics.PushTimeout, "Timeout for the Pushgateway push")
	flags.StringVar(&c.History.DBPath, "history-db", c.History.DBPath, "SQLite file scan results are appended to")

	flags.StringVar(&c.Server.Addr, "serve", c.Server.Addr, "Serve results on this address and rescan every interval")
	flags.DurationVar(&c.Server.Interval, "interval", c.Server.Interval, "Scan interval in serve mode")

	cacheMode := flags.String("cache-mode", string(c.Cache.Mode), "Cache mode: 'none' or 'mem'")
	flags.DurationVar(&c.Cache.TTL, "cache-ttl", c.Cache.TTL, "How long served results stay valid (e.g., 30m, 2h)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	// Validate and set cache mode
	switch CacheMode(*cacheMode) {
	case CacheModeNone, CacheModeMem:
		c.Cache.Mode = CacheMode(*cacheMode)
	default:
		return fmt.Errorf("invalid cache-mode value '%s': must be 'none' or 'mem'", *cacheMode)
	}

	return nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Scan.TargetsPath == "" {
		return fmt.Errorf("targets path cannot be empty")
	}

	if c.Scan.ProbeTimeout <= 0 || c.Scan.LivenessTimeout <= 0 || c.Alert.Timeout <= 0 || c.Metrics.PushTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Scan.Concurrency)
	}

	switch c.App.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format '%s': must be 'text' or 'json'", c.App.Output)
	}

	switch c.Alert.WebhookFormat {
	case "json", "slack":
	default:
		return fmt.Errorf("invalid alert format '%s': must be 'json' or 'slack'", c.Alert.WebhookFormat)
	}

	if c.Alert.WebhookURL != "" {
		if err := validateURL(c.Alert.WebhookURL); err != nil {
			return fmt.Errorf("alert url: %w", err)
		}
	}

	if c.Metrics.PushgatewayURL != "" {
		if err := validateURL(c.Metrics.PushgatewayURL); err != nil {
			return fmt.Errorf("pushgateway url: %w", err)
		}
	}

	if c.Server.Enabled() && c.Server.Interval <= 0 {
		return fmt.Errorf("scan interval must be positive in serve mode")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}

	// If cache is disabled, TTL doesn't matter
	if c.Cache.Mode == CacheModeMem && c.Cache.TTL == 0 {
		return fmt.Errorf("cache TTL cannot be zero when cache is enabled")
	}

	return nil
}

// String returns a string representation of the config for debugging
func (c *Config) String() string {
	return fmt.Sprintf("Config{Targets: %s, Concurrency: %d, Timeout: %s, Serve: %q, Cache: {Mode: %v, TTL: %s}}",
		c.Scan.TargetsPath, c.Scan.Concurrency, c.Scan.ProbeTimeout, c.Server.Addr, c.Cache.Mode, c.Cache.TTL)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("'%s' must be an http or https URL", raw)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value '%s': %w", key, v, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value '%s': %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value '%s': %w", key, v, err)
	}
	*dst = b
	return nil
}
