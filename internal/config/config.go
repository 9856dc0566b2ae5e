// Package config loads service configuration from a JSON file, a .env file
// and the process environment, in that order of precedence (env wins).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"mealgraph/internal/logger"
)

// Tag inferer backends.
const (
	InfererNone   = "none"
	InfererGemini = "gemini"
	InfererLocal  = "local"
)

// Config represents the application configuration.
type Config struct {
	DatabaseURL    string   `json:"DATABASE_URL"`
	GeminiAPIKey   string   `json:"gemini_api_key"`
	GeminiModel    string   `json:"gemini_model"`
	LocalLLMURL    string   `json:"local_llm_url"`
	LocalLLMModel  string   `json:"local_llm_model"`
	TagInferer     string   `json:"tag_inferer"`
	RedisAddr      string   `json:"redis_addr"`
	HTTPAddr       string   `json:"http_addr"`
	LogLevel       string   `json:"log_level"`
	RateLimitRPS   float64  `json:"rate_limit_rps"`
	RateLimitBurst int      `json:"rate_limit_burst"`
	CORSOrigins    []string `json:"cors_origins"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		GeminiModel:    "gemini-1.5-flash",
		LocalLLMURL:    "http://localhost:1234/v1/chat/completions",
		LocalLLMModel:  "gemma-3-12b-it:2",
		TagInferer:     InfererNone,
		HTTPAddr:       ":8080",
		LogLevel:       "normal",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		CORSOrigins:    []string{"http://localhost:8081"},
	}
}

// Load reads path (a missing file is not an error), then .env, then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
			}
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("GEMINI_API_KEY", &c.GeminiAPIKey)
	setString("GEMINI_MODEL", &c.GeminiModel)
	setString("LOCAL_LLM_URL", &c.LocalLLMURL)
	setString("LOCAL_LLM_MODEL", &c.LocalLLMModel)
	setString("TAG_INFERER", &c.TagInferer)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("HTTP_ADDR", &c.HTTPAddr)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.RateLimitBurst = burst
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
	return nil
}

// Validate checks the settings the API server cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.TagInferer {
	case InfererNone, "":
	case InfererGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("gemini tag inferer needs GEMINI_API_KEY")
		}
	case InfererLocal:
		if c.LocalLLMURL == "" {
			return errors.New("local tag inferer needs LOCAL_LLM_URL")
		}
	default:
		return fmt.Errorf("unknown tag inferer %q", c.TagInferer)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}

func (c *Config) Level() logger.Level { return logger.ParseLevel(c.LogLevel) }
