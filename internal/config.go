package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Credentials holds optional provider secrets. Every field may be empty;
// providers that need a missing credential fail at the credential stage.
type Credentials struct {
	DirectIndex    string `toml:"direct_index"`
	GDTOTCrypt     string `toml:"gdtot_crypt"`
	HubDriveCrypt  string `toml:"hubdrive_crypt"`
	KatDriveCrypt  string `toml:"katdrive_crypt"`
	DriveFireCrypt string `toml:"drivefire_crypt"`
	XSRFToken      string `toml:"xsrf_token"`
	LaravelSession string `toml:"laravel_session"`
	UptoboxToken   string `toml:"uptobox_token"`
	TeraboxNDUS    string `toml:"terabox_ndus"`
}

// Config holds application configuration. It is built once at startup and
// handed to components by value; nothing mutates it afterwards.
type Config struct {
	Port            int      `toml:"port"`
	MaxBatchSize    int      `toml:"max_batch_size"`
	DefaultTimeout  int      `toml:"default_timeout"`
	MaxTimeout      int      `toml:"max_timeout"`
	ConcurrentLimit int      `toml:"concurrent_limit"`
	DefaultRetries  int      `toml:"default_retries"`
	EnableCORS      bool     `toml:"enable_cors"`
	TrustedHosts    []string `toml:"trusted_hosts"`

	// Outbound HTTP
	ChunkSize          int      `toml:"chunk_size"`
	ConnectionPoolSize int      `toml:"connection_pool_size"`
	WorkerPoolSize     int      `toml:"worker_pool_size"`
	OutboundRPS        float64  `toml:"outbound_rps"`
	OutboundBurst      int      `toml:"outbound_burst"`
	ProxyURL           string   `toml:"proxy_url"`
	UserAgentList      []string `toml:"user_agents"`

	Credentials Credentials `toml:"credentials"`
	CookieFile  string      `toml:"cookie_file"`

	// Logging configuration
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	EnableDebug bool   `toml:"debug"`
	QuietMode   bool   `toml:"quiet"`
	LogFile     string `toml:"log_file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Port:            5000,
		MaxBatchSize:    50,
		DefaultTimeout:  20,
		MaxTimeout:      120,
		ConcurrentLimit: 8,
		DefaultRetries:  3,
		EnableCORS:      true,
		TrustedHosts:    []string{"*"},

		ChunkSize:          65536,
		ConnectionPoolSize: 100,
		WorkerPoolSize:     32,
		OutboundRPS:        5,
		OutboundBurst:      10,
		UserAgentList: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},

		LogLevel:  "info",
		LogFormat: "console",
		LogFile:   "", // Empty means stderr
	}
}

// LoadFile merges a TOML config file over the current values. Keys missing
// from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	envInt("PORT", &c.Port)
	envInt("MAX_BATCH_SIZE", &c.MaxBatchSize)
	envInt("DEFAULT_TIMEOUT", &c.DefaultTimeout)
	envInt("MAX_TIMEOUT", &c.MaxTimeout)
	envInt("CONCURRENT_LIMIT", &c.ConcurrentLimit)
	envInt("DEFAULT_RETRIES", &c.DefaultRetries)
	envInt("CHUNK_SIZE", &c.ChunkSize)
	envInt("CONNECTION_POOL_SIZE", &c.ConnectionPoolSize)
	envInt("WORKER_POOL_SIZE", &c.WorkerPoolSize)
	envInt("OUTBOUND_BURST", &c.OutboundBurst)

	if rps := os.Getenv("OUTBOUND_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			c.OutboundRPS = v
		}
	}

	if cors := os.Getenv("ENABLE_CORS"); cors != "" {
		c.EnableCORS = parseBool(cors)
	}

	if hosts := os.Getenv("TRUSTED_HOSTS"); hosts != "" {
		c.TrustedHosts = splitList(hosts)
	}

	if proxy := os.Getenv("HTTP_PROXY_URL"); proxy != "" {
		c.ProxyURL = proxy
	}

	if cookies := os.Getenv("COOKIE_FILE"); cookies != "" {
		c.CookieFile = cookies
	}

	envString("DIRECT_INDEX", &c.Credentials.DirectIndex)
	envString("GDTOT_CRYPT", &c.Credentials.GDTOTCrypt)
	envString("HUBDRIVE_CRYPT", &c.Credentials.HubDriveCrypt)
	envString("KATDRIVE_CRYPT", &c.Credentials.KatDriveCrypt)
	envString("DRIVEFIRE_CRYPT", &c.Credentials.DriveFireCrypt)
	envString("XSRF_TOKEN", &c.Credentials.XSRFToken)
	envString("LARAVEL_SESSION", &c.Credentials.LaravelSession)
	envString("UPTOBOX_TOKEN", &c.Credentials.UptoboxToken)
	envString("TERABOX_NDUS", &c.Credentials.TeraboxNDUS)

	// Load logging configuration from environment
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = strings.ToLower(logLevel)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.LogFormat = strings.ToLower(format)
	}

	if debug := os.Getenv("TRUELINK_DEBUG"); debug != "" {
		c.EnableDebug = parseBool(debug)
	}

	if quiet := os.Getenv("TRUELINK_QUIET"); quiet != "" {
		c.QuietMode = parseBool(quiet)
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

func envInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			*dst = v
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	positive := []struct {
		name  string
		value int
	}{
		{"port", c.Port},
		{"max batch size", c.MaxBatchSize},
		{"default timeout", c.DefaultTimeout},
		{"max timeout", c.MaxTimeout},
		{"concurrent limit", c.ConcurrentLimit},
		{"chunk size", c.ChunkSize},
		{"connection pool size", c.ConnectionPoolSize},
		{"worker pool size", c.WorkerPoolSize},
		{"outbound burst", c.OutboundBurst},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("invalid %s: %d (must be > 0)", p.name, p.value)
		}
	}

	if c.MaxTimeout < c.DefaultTimeout {
		return fmt.Errorf("invalid max timeout: %d (must be >= default timeout %d)", c.MaxTimeout, c.DefaultTimeout)
	}

	if c.DefaultRetries < 0 || c.DefaultRetries > MaxRetries {
		return fmt.Errorf("invalid default retries: %d (must be 0-%d)", c.DefaultRetries, MaxRetries)
	}

	if c.OutboundRPS <= 0 {
		return fmt.Errorf("invalid outbound rps: %g (must be > 0)", c.OutboundRPS)
	}

	if len(c.UserAgentList) == 0 {
		return fmt.Errorf("user agent list cannot be empty")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %q (must be console or json)", c.LogFormat)
	}

	return nil
}

// MaxRetries bounds the per-request retry budget.
const MaxRetries = 10

// DefaultTimeoutDuration returns the default per-resolution timeout.
func (c Config) DefaultTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

// MaxTimeoutDuration returns the upper bound for any per-resolution timeout.
func (c Config) MaxTimeoutDuration() time.Duration {
	return time.Duration(c.MaxTimeout) * time.Second
}
