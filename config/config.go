// Package config loads the service configuration. Precedence is defaults,
// then the optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the HTTP server section.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig is the token section.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// CORSConfig is the cross-origin section.
type CORSConfig struct {
	Origins          []string `yaml:"origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// RateLimitConfig is the per-client token bucket section.
type RateLimitConfig struct {
	Limit    int           `yaml:"limit"`
	Window   time.Duration `yaml:"window"`
	Disabled bool          `yaml:"disabled"`
}

// CacheConfig is the two-tier cache section.
type CacheConfig struct {
	Enabled           bool          `yaml:"enabled"`
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"`
	TTL               time.Duration `yaml:"ttl"`
	Version           int           `yaml:"version"`
	CompressThreshold int           `yaml:"compress_threshold"`
}

// DatabaseConfig is the relational store section.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// GraphConfig is the property-graph section.
type GraphConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// VectorConfig is the vector index section.
type VectorConfig struct {
	IndexPath string `yaml:"index_path"`
}

// ProviderConfig is one LM provider endpoint.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// LLMConfig is the LM gateway section.
type LLMConfig struct {
	Primary  ProviderConfig `yaml:"primary"`
	Fallback ProviderConfig `yaml:"fallback"`
}

// LogConfig is the logging section.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete service configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Auth        AuthConfig      `yaml:"auth"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Cache       CacheConfig     `yaml:"cache"`
	Database    DatabaseConfig  `yaml:"database"`
	Graph       GraphConfig     `yaml:"graph"`
	Vector      VectorConfig    `yaml:"vector"`
	LLM         LLMConfig       `yaml:"llm"`
	Log         LogConfig       `yaml:"log"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		CORS: CORSConfig{AllowCredentials: true},
		RateLimit: RateLimitConfig{
			Limit:  30,
			Window: 60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:           true,
			TTL:               time.Hour,
			Version:           1,
			CompressThreshold: 1024,
		},
		Graph: GraphConfig{Database: "neo4j"},
		Vector: VectorConfig{
			IndexPath: "data/index.db",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path (when non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps the recognized environment variables onto the config.
func (c *Config) applyEnv() {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.Server.Host, "HOST")
	setInt(&c.Server.Port, "PORT")

	setString(&c.Auth.JWTSecret, "JWT_SECRET_KEY")
	if v, ok := lookupInt("ACCESS_TOKEN_EXPIRE_MINUTES"); ok {
		c.Auth.AccessTTL = time.Duration(v) * time.Minute
	}
	if v, ok := lookupInt("REFRESH_TOKEN_EXPIRE_DAYS"); ok {
		c.Auth.RefreshTTL = time.Duration(v) * 24 * time.Hour
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORS.Origins = splitAndTrim(v)
	}
	setBool(&c.CORS.AllowCredentials, "USE_CROSS_ORIGIN_COOKIES")

	setInt(&c.RateLimit.Limit, "RATE_LIMIT")
	if v, ok := lookupInt("RATE_WINDOW"); ok {
		c.RateLimit.Window = time.Duration(v) * time.Second
	}
	setBool(&c.RateLimit.Disabled, "DISABLE_RATE_LIMIT")

	setBool(&c.Cache.Enabled, "ENABLE_CACHE")
	setString(&c.Cache.URL, "CACHE_REDIS_URL")
	setString(&c.Cache.Token, "CACHE_REDIS_TOKEN")
	if v, ok := lookupInt("CACHE_TTL_SECONDS"); ok {
		c.Cache.TTL = time.Duration(v) * time.Second
	}
	setInt(&c.Cache.Version, "CACHE_VERSION")
	setInt(&c.Cache.CompressThreshold, "CACHE_COMPRESS_THRESHOLD")

	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Graph.URI, "GRAPH_URI")
	setString(&c.Graph.Username, "GRAPH_USERNAME")
	setString(&c.Graph.Password, "GRAPH_PASSWORD")
	setString(&c.Graph.Database, "GRAPH_DATABASE")

	setString(&c.Vector.IndexPath, "VECTOR_INDEX_PATH")

	setString(&c.LLM.Primary.BaseURL, "LLM_PRIMARY_URL")
	setString(&c.LLM.Primary.Model, "LLM_PRIMARY_MODEL")
	setString(&c.LLM.Primary.APIKey, "LLM_PRIMARY_API_KEY")
	setString(&c.LLM.Fallback.BaseURL, "LLM_FALLBACK_URL")
	setString(&c.LLM.Fallback.Model, "LLM_FALLBACK_MODEL")
	setString(&c.LLM.Fallback.APIKey, "LLM_FALLBACK_API_KEY")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects configurations that cannot start safely. A missing JWT
// secret is fatal only in production; elsewhere the token manager generates
// one and warns.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required in production")
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

func setString(dest *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dest = v
	}
}

func setInt(dest *int, key string) {
	if v, ok := lookupInt(key); ok {
		*dest = v
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func setBool(dest *bool, key string) {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "1", "true", "yes", "on":
		*dest = true
	case "0", "false", "no", "off":
		*dest = false
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
