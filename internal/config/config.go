package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type JobsConfig struct {
	Dir       string `yaml:"dir"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	GeneratePerMinute int  `yaml:"generate_per_minute"`
}

type AIConfig struct {
	DefaultProvider   string            `yaml:"default_provider"` // openrouter | openai | gemini | noop
	OpenRouterKey     string            `yaml:"openrouter_key"`
	OpenRouterBaseURL string            `yaml:"openrouter_base_url"`
	Referer           string            `yaml:"referer"`
	Title             string            `yaml:"title"`
	OpenAIKey         string            `yaml:"openai_key"`
	GeminiKey         string            `yaml:"gemini_key"`
	GeminiURL         string            `yaml:"gemini_url"`
	PrimaryModel      string            `yaml:"primary_model"`
	FallbackModel     string            `yaml:"fallback_model"`
	ModelProviders    map[string]string `yaml:"model_providers"` // model -> provider
	Temperature       *float64          `yaml:"temperature"` // unset selects 0.3; 0 is kept
	MaxTokens         int               `yaml:"max_tokens"`
	Retries           int               `yaml:"retries"`
	AttemptTimeout    time.Duration     `yaml:"attempt_timeout"`
	BackoffBase       time.Duration     `yaml:"backoff_base"`
	ConcurrentLimit   int               `yaml:"concurrent_limit"` // max concurrent AI calls
}

type ChatConfig struct {
	AllowNewFiles bool `yaml:"allow_new_files"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	AI        AIConfig        `yaml:"ai"`
	Chat      ChatConfig      `yaml:"chat"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is fine), loads a
// .env file from the working directory when present, applies environment
// overrides and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.AI.OpenRouterKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.Server.Addr = ":" + v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 10 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Jobs.Dir == "" {
		cfg.Jobs.Dir = "jobs"
	}
	if cfg.Jobs.Workers <= 0 {
		cfg.Jobs.Workers = 8
	}
	if cfg.Jobs.QueueSize <= 0 {
		cfg.Jobs.QueueSize = cfg.Jobs.Workers * 4
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 10 * time.Minute
	}
	if cfg.RateLimit.GeneratePerMinute <= 0 {
		cfg.RateLimit.GeneratePerMinute = 10
	}

	ai := &cfg.AI
	if ai.DefaultProvider == "" {
		switch {
		case ai.OpenRouterKey != "":
			ai.DefaultProvider = "openrouter"
		case ai.OpenAIKey != "":
			ai.DefaultProvider = "openai"
		case ai.GeminiKey != "":
			ai.DefaultProvider = "gemini"
		default:
			ai.DefaultProvider = "openrouter"
		}
	}
	ai.DefaultProvider = strings.ToLower(ai.DefaultProvider)
	if ai.OpenRouterBaseURL == "" {
		ai.OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	if ai.Referer == "" {
		ai.Referer = "http://localhost:3000"
	}
	if ai.Title == "" {
		ai.Title = "Dream2Design"
	}
	if ai.PrimaryModel == "" {
		ai.PrimaryModel = "qwen/qwen3-coder:free"
	}
	if ai.FallbackModel == "" {
		ai.FallbackModel = "deepseek/deepseek-chat"
	}
	if ai.Temperature == nil {
		t := 0.3
		ai.Temperature = &t
	}
	if ai.MaxTokens <= 0 {
		ai.MaxTokens = 12000
	}
	if ai.Retries <= 0 {
		ai.Retries = 3
	}
	if ai.AttemptTimeout <= 0 {
		ai.AttemptTimeout = 90 * time.Second
	}
	if ai.BackoffBase <= 0 {
		ai.BackoffBase = 2 * time.Second
	}
	if ai.ConcurrentLimit < 0 {
		ai.ConcurrentLimit = 0
	}

	// Requests must outlive the slowest completion, fallback included.
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = ai.CompletionBudget() + time.Minute
	}
}

// CompletionBudget is the longest one completion can take: every primary
// attempt timing out, the linear backoff between them, then the fallback.
func (a AIConfig) CompletionBudget() time.Duration {
	d := time.Duration(a.Retries) * a.AttemptTimeout
	for i := 1; i < a.Retries; i++ {
		d += time.Duration(i) * a.BackoffBase
	}
	if a.FallbackModel != "" {
		d += a.AttemptTimeout
	}
	return d
}

func (c *Config) validate() error {
	if c.Runtime.Dev || c.AI.DefaultProvider == "noop" {
		return nil
	}
	if c.AI.OpenRouterKey == "" && c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" {
		return errors.New("no AI provider configured: set OPENROUTER_API_KEY or ai.openrouter_key / ai.openai_key / ai.gemini_key")
	}
	return nil
}
