package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/craftbridge/catalog-backend/internal/platform/envutil"
)

const (
	DefaultPartSize            = 5 * 1024 * 1024
	DefaultSinglePartThreshold = 5 * 1024 * 1024
	DefaultURLTTL              = time.Hour
	DefaultDedupWindow         = 5 * time.Minute
	DefaultSweepInterval       = time.Minute
)

// Config is loaded once at startup: an optional YAML file (CONFIG_PATH)
// overlaid by environment variables. There is no other process-wide
// mutable state.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogMode  string `yaml:"log_mode"`

	Store StoreConfig `yaml:"store"`
	Redis RedisConfig `yaml:"redis"`

	Bucket    string `yaml:"bucket"`
	CDNDomain string `yaml:"cdn_domain"`

	PartSize            int64         `yaml:"part_size"`
	SinglePartThreshold int64         `yaml:"single_part_threshold"`
	URLTTL              time.Duration `yaml:"url_ttl"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`

	SupportedLanguages  []string `yaml:"supported_languages"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`

	StreamPrefix string        `yaml:"stream_prefix"`
	DedupWindow  time.Duration `yaml:"dedup_window"`
}

type StoreConfig struct {
	// "postgres" (default) or "sqlite" for local development.
	Mode     string `yaml:"mode"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// Sqlite file path, ":memory:" allowed.
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = envutil.Str("HTTP_ADDR", c.HTTPAddr)
	c.LogMode = envutil.Str("LOG_MODE", c.LogMode)

	c.Store.Mode = envutil.Str("STORE_MODE", c.Store.Mode)
	c.Store.Host = envutil.Str("POSTGRES_HOST", c.Store.Host)
	c.Store.Port = envutil.Str("POSTGRES_PORT", c.Store.Port)
	c.Store.User = envutil.Str("POSTGRES_USER", c.Store.User)
	c.Store.Password = envutil.Str("POSTGRES_PASSWORD", c.Store.Password)
	c.Store.Name = envutil.Str("POSTGRES_NAME", c.Store.Name)
	c.Store.Path = envutil.Str("SQLITE_PATH", c.Store.Path)

	c.Redis.Addr = envutil.Str("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envutil.Str("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envutil.Int("REDIS_DB", c.Redis.DB)

	c.Bucket = envutil.Str("RAW_MEDIA_BUCKET", c.Bucket)
	c.CDNDomain = envutil.Str("RAW_MEDIA_CDN_DOMAIN", c.CDNDomain)

	c.PartSize = envutil.Int64("UPLOAD_PART_SIZE", c.PartSize)
	c.SinglePartThreshold = envutil.Int64("UPLOAD_SINGLE_PART_THRESHOLD", c.SinglePartThreshold)
	c.URLTTL = envutil.Duration("UPLOAD_URL_TTL", c.URLTTL)
	c.SweepInterval = envutil.Duration("UPLOAD_SWEEP_INTERVAL", c.SweepInterval)

	if langs := envutil.Str("SUPPORTED_LANGUAGES", ""); langs != "" {
		c.SupportedLanguages = splitCSV(langs)
	}
	if cts := envutil.Str("ALLOWED_CONTENT_TYPES", ""); cts != "" {
		c.AllowedContentTypes = splitCSV(cts)
	}

	c.StreamPrefix = envutil.Str("CATALOG_STREAM_PREFIX", c.StreamPrefix)
	c.DedupWindow = envutil.Duration("DISPATCH_DEDUP_WINDOW", c.DedupWindow)
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogMode == "" {
		c.LogMode = "development"
	}
	if c.Store.Mode == "" {
		c.Store.Mode = "postgres"
	}
	if c.Store.Host == "" {
		c.Store.Host = "localhost"
	}
	if c.Store.Port == "" {
		c.Store.Port = "5432"
	}
	if c.Store.User == "" {
		c.Store.User = "postgres"
	}
	if c.Store.Name == "" {
		c.Store.Name = "catalog"
	}
	if c.Store.Path == "" {
		c.Store.Path = "catalog.db"
	}
	if c.PartSize <= 0 {
		c.PartSize = DefaultPartSize
	}
	if c.SinglePartThreshold <= 0 {
		c.SinglePartThreshold = DefaultSinglePartThreshold
	}
	if c.URLTTL <= 0 {
		c.URLTTL = DefaultURLTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if len(c.SupportedLanguages) == 0 {
		c.SupportedLanguages = []string{"hi", "te", "ta", "bn", "mr", "gu", "kn", "ml", "pa", "or"}
	}
	if len(c.AllowedContentTypes) == 0 {
		c.AllowedContentTypes = []string{"image/jpeg", "image/png", "audio/opus", "audio/mpeg", "audio/wav"}
	}
	if c.StreamPrefix == "" {
		c.StreamPrefix = "catalog:events"
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
}

func (c *Config) validate() error {
	switch c.Store.Mode {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid store mode %q (allowed: postgres, sqlite)", c.Store.Mode)
	}
	if c.PartSize < 1024 {
		return fmt.Errorf("part size %d too small", c.PartSize)
	}
	return nil
}

func (c *Config) LanguageSupported(code string) bool {
	for _, l := range c.SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

func (c *Config) ContentTypeAllowed(ct string) bool {
	for _, t := range c.AllowedContentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
