package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "mailtriage/pkg/config"
)

// FolderConfig names the folder skeleton provisioned at startup.
type FolderConfig struct {
	Root        string `yaml:"root"`
	Properties  string `yaml:"properties"`
	Operational string `yaml:"operational"`
	NeedsReview string `yaml:"needs_review"`
}

type FolderCacheConfig struct {
	Backend string        `yaml:"backend"` // none, memory, redis
	TTL     time.Duration `yaml:"ttl"`
}

type PollerConfig struct {
	PollSeconds     int  `yaml:"poll_seconds"`
	MaxPages        int  `yaml:"max_pages"`
	IsolateFailures bool `yaml:"isolate_failures"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	Graph         pkgconfig.GraphConfig  `yaml:"graph"`
	Server        pkgconfig.ServerConfig `yaml:"server"`
	JWT           pkgconfig.JWTConfig    `yaml:"jwt"`
	MQ            pkgconfig.MQConfig     `yaml:"mq"`
	Redis         pkgconfig.RedisConfig  `yaml:"redis"`
	Log           pkgconfig.LogConfig    `yaml:"log"`
	LLM           pkgconfig.LLMConfig    `yaml:"llm"`
	Otel          OtelConfig             `yaml:"otel"`
	Poller        PollerConfig           `yaml:"poller"`
	Folders       FolderConfig           `yaml:"folders"`
	FolderCache   FolderCacheConfig      `yaml:"folder_cache"`
	BuildingsFile string                 `yaml:"buildings_file"`
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() Config {
	return Config{
		Graph: pkgconfig.GraphConfig{
			BaseURL: "https://graph.microsoft.com/v1.0",
			AuthURL: "https://login.microsoftonline.com",
			Timeout: 30 * time.Second,
		},
		Server: pkgconfig.ServerConfig{Port: ":8080"},
		Poller: PollerConfig{
			PollSeconds:     20,
			MaxPages:        10,
			IsolateFailures: true,
		},
		Folders: FolderConfig{
			Root:        "inbox",
			Properties:  "Immobili",
			Operational: "Operativo",
			NeedsReview: "Da Gestire",
		},
		FolderCache:   FolderCacheConfig{Backend: "none", TTL: time.Hour},
		BuildingsFile: "buildings.json",
	}
}

// Load reads .env, the layered yaml files under CONFIG_DIR and finally the
// process environment, which has the highest priority.
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for offline commands that do
// not talk to the mailbox.
func LoadUnvalidated() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(""); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	env := pkgconfig.GetConfigEnv()
	configDir := pkgconfig.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := pkgconfig.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := decode(cfgMap)
	if err != nil {
		return nil, err
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// decode converts the merged map into cfg; absent fields keep their defaults.
func decode(cfgMap map[string]interface{}) (*Config, error) {
	cfg := Defaults()

	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	pkgconfig.OverrideGraphFromEnv(&cfg.Graph)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideLogFromEnv(&cfg.Log)
	pkgconfig.OverrideLLMFromEnv(&cfg.LLM)

	cfg.Poller.PollSeconds = pkgconfig.GetEnvInt("POLL_SECONDS", cfg.Poller.PollSeconds)
	cfg.BuildingsFile = pkgconfig.GetEnv("BUILDINGS_FILE", cfg.BuildingsFile)
}

// Validate checks the settings the agent cannot start without.
func (c *Config) Validate() error {
	if c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "" {
		return fmt.Errorf("graph credentials are required (TENANT_ID, CLIENT_ID, CLIENT_SECRET)")
	}
	if c.Poller.PollSeconds <= 0 {
		return fmt.Errorf("poll_seconds must be positive, got %d", c.Poller.PollSeconds)
	}
	switch c.FolderCache.Backend {
	case "", "none", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("folder_cache.backend=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown folder_cache.backend %q", c.FolderCache.Backend)
	}
	return nil
}

// PollInterval returns the wait between two polling iterations.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.PollSeconds) * time.Second
}
