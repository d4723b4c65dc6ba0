package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the OpenShorts server.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Jobs   JobsConfig
	Social SocialConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type RedisConfig struct {
	URL string
}

type JobsConfig struct {
	// MaxConcurrent is the gate capacity K shared across all submission
	// channels.
	MaxConcurrent int
	PollInterval  time.Duration
	RunnerCommand []string
	OutputDir     string
	UploadDir     string
	MaxUploadMB   int
	SecretEnv     string
	// FileRetention is how long produced output and staged uploads stay on
	// disk before the janitor removes them. Job records in Redis have their
	// own 24h retention.
	FileRetention time.Duration
	SweepInterval time.Duration
}

type SocialConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a
// validated Config. Returns an error if any required value is missing or
// invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("OPENSHORTS_PORT", 8080),
			Env:             envString("OPENSHORTS_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Jobs: JobsConfig{
			MaxConcurrent: envInt("MAX_CONCURRENT_JOBS", 5),
			PollInterval:  envDuration("JOB_POLL_INTERVAL", 2*time.Second),
			RunnerCommand: envCommand("CLIPPER_COMMAND", []string{"python", "-u", "main.py"}),
			OutputDir:     envString("OUTPUT_DIR", "output"),
			UploadDir:     envString("UPLOAD_DIR", "uploads"),
			MaxUploadMB:   envInt("MAX_UPLOAD_MB", 500),
			SecretEnv:     envString("CLIPPER_SECRET_ENV", "GEMINI_API_KEY"),
			FileRetention: envDuration("FILE_RETENTION", time.Hour),
			SweepInterval: envDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		Social: SocialConfig{
			BaseURL: envString("UPLOAD_POST_BASE_URL", "https://api.upload-post.com"),
			Timeout: envDuration("UPLOAD_POST_TIMEOUT", 120*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if len(c.Jobs.RunnerCommand) == 0 {
		return fmt.Errorf("CLIPPER_COMMAND must not be empty")
	}
	if c.Jobs.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1")
	}

	if !strings.HasPrefix(c.Social.BaseURL, "http://") && !strings.HasPrefix(c.Social.BaseURL, "https://") {
		return fmt.Errorf("UPLOAD_POST_BASE_URL must start with http:// or https://, got %q", c.Social.BaseURL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envCommand splits a whitespace-separated command line, e.g.
// "python -u main.py".
func envCommand(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return defaultVal
	}
	return fields
}
