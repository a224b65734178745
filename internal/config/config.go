// Package config loads and validates application configuration from YAML files,
// .env files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the root application configuration.
type Config struct {
	Jira          JiraConfig          `yaml:"jira"`
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Cache         CacheConfig         `yaml:"cache"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// JiraConfig describes the issue tracker connection.
type JiraConfig struct {
	Domain   string `yaml:"domain"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	// BaseURL overrides https://<domain>/rest/api/2.
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	MaxResults     int                  `yaml:"max_results"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	Keyring        KeyringConfig        `yaml:"keyring"`
}

// RateLimitConfig describes the client-side request rate limit.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CircuitBreakerConfig describes circuit breaker settings for Jira calls.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings for Jira calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
}

// KeyringConfig describes where the API token may be stored.
type KeyringConfig struct {
	Enabled     bool     `yaml:"enabled"`
	ServiceName string   `yaml:"service_name"`
	Backends    []string `yaml:"backends"`
	FileDir     string   `yaml:"file_dir"`
}

// ServerConfig describes the MCP transport.
type ServerConfig struct {
	Transport       string        `yaml:"transport"`
	Port            int           `yaml:"port"`
	EndpointPath    string        `yaml:"endpoint_path"`
	Stateless       bool          `yaml:"stateless"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	WorkerPoolSize  int           `yaml:"worker_pool_size"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	ExposedHeaders []string `yaml:"exposed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AuthConfig describes bearer token authentication for the HTTP transport.
// Tokens are verified against a JWKS endpoint or, when SecretEnv names a
// non-empty variable, a shared HMAC secret.
type AuthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	JWKSURL      string        `yaml:"jwks_url"`
	JWKSCacheTTL time.Duration `yaml:"jwks_cache_ttl"`
	Algorithms   []string      `yaml:"algorithms"`
	SecretEnv    string        `yaml:"secret_env"`
}

// CacheConfig describes the issue and project response cache.
type CacheConfig struct {
	Driver  string        `yaml:"driver"`
	TTL     time.Duration `yaml:"ttl"`
	AddrEnv string        `yaml:"addr_env"`
	DB      int           `yaml:"db"`
	Prefix  string        `yaml:"prefix"`
}

// WorkflowConfig describes workflow definitions and the audit trail.
type WorkflowConfig struct {
	Directories []string    `yaml:"directories"`
	HotReload   bool        `yaml:"hot_reload"`
	Audit       AuditConfig `yaml:"audit"`
}

// AuditConfig describes where workflow events are recorded.
type AuditConfig struct {
	Driver   string `yaml:"driver"`
	DSNEnv   string `yaml:"dsn_env"`
	MaxConns int32  `yaml:"max_conns"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Jira: JiraConfig{
			Timeout:    30 * time.Second,
			MaxResults: 50,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				Burst:             20,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    200 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        5 * time.Second,
			},
			Keyring: KeyringConfig{
				Enabled:     true,
				ServiceName: "jira-mcp",
			},
		},
		Server: ServerConfig{
			Transport:       TransportStdio,
			Port:            8080,
			EndpointPath:    "/mcp",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ToolTimeout:     55 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			WorkerPoolSize:  5,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "Mcp-Session-Id",
					"Mcp-Protocol-Version", "X-Correlation-Id"},
				ExposedHeaders: []string{"Mcp-Session-Id", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Auth: AuthConfig{
			JWKSCacheTTL: 1 * time.Hour,
			Algorithms:   []string{"RS256"},
		},
		Cache: CacheConfig{
			Driver:  "memory",
			TTL:     time.Minute,
			AddrEnv: "JIRA_MCP_REDIS_URL",
			Prefix:  "jiramcp:",
		},
		Workflow: WorkflowConfig{
			Audit: AuditConfig{
				Driver:   "none",
				DSNEnv:   "JIRA_MCP_AUDIT_DSN",
				MaxConns: 4,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, the optional .env files, and JIRA_* environment variables, then
// validates it. An empty path skips the YAML file. Missing .env files are
// ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.deriveDomain()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads .env files without overriding variables that are
// already set in the process environment.
func loadDotEnv(files []string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks that all required fields are present and valid. The API
// token is checked separately once credential lookup has run.
func (c *Config) Validate() error {
	var errs []string

	switch {
	case c.Jira.Domain == "":
		errs = append(errs, "JIRA_DOMAIN environment variable is required")
	case !strings.Contains(c.Jira.Domain, ".") || len(c.Jira.Domain) < 3:
		errs = append(errs, fmt.Sprintf("Invalid domain format: %s", c.Jira.Domain))
	}
	switch {
	case c.Jira.Email == "":
		errs = append(errs, "JIRA_EMAIL environment variable is required")
	case !emailPattern.MatchString(c.Jira.Email):
		errs = append(errs, fmt.Sprintf("Invalid email format: %s", c.Jira.Email))
	}
	if c.Jira.BaseURL != "" {
		if u, err := url.Parse(c.Jira.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("jira.base_url %q is not an absolute URL", c.Jira.BaseURL))
		}
	}

	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	default:
		errs = append(errs, fmt.Sprintf("server.transport must be %q or %q", TransportStdio, TransportHTTP))
	}

	if c.Auth.Enabled && c.Auth.JWKSURL == "" && c.Auth.SecretEnv == "" {
		errs = append(errs, "auth requires jwks_url or secret_env")
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of none, memory, redis", c.Cache.Driver))
	}

	switch c.Workflow.Audit.Driver {
	case "none", "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("workflow.audit.driver %q is not one of none, memory, postgres", c.Workflow.Audit.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// JiraBaseURL returns the REST API root.
func (c *Config) JiraBaseURL() string {
	return c.Jira.APIURL()
}

// APIURL returns the REST API root: BaseURL when set, otherwise
// https://<domain>/rest/api/2.
func (j JiraConfig) APIURL() string {
	if j.BaseURL != "" {
		return strings.TrimSuffix(j.BaseURL, "/")
	}
	return "https://" + j.Domain + "/rest/api/2"
}

// deriveDomain fills Jira.Domain from Jira.BaseURL when only the latter is
// configured.
func (c *Config) deriveDomain() {
	if c.Jira.Domain != "" || c.Jira.BaseURL == "" {
		return
	}
	if u, err := url.Parse(c.Jira.BaseURL); err == nil {
		c.Jira.Domain = u.Host
	}
}

// applyEnvOverrides reads JIRA_* and JIRA_MCP_* environment variables and
// overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JIRA_DOMAIN"); v != "" {
		cfg.Jira.Domain = v
	}
	if v := os.Getenv("JIRA_EMAIL"); v != "" {
		cfg.Jira.Email = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		cfg.Jira.APIToken = v
	}
	if v := os.Getenv("JIRA_BASE_URL"); v != "" {
		cfg.Jira.BaseURL = v
	}
	if v := os.Getenv("JIRA_MCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("JIRA_MCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JIRA_MCP_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("JIRA_MCP_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("JIRA_MCP_AUDIT_DRIVER"); v != "" {
		cfg.Workflow.Audit.Driver = v
	}
	if v := os.Getenv("JIRA_MCP_WORKFLOW_DIRS"); v != "" {
		cfg.Workflow.Directories = strings.Split(v, string(os.PathListSeparator))
	}
}
