package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "voxtask.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "VOXTASK_PORT")
	setString(&cfg.Server.CORSOrigin, "VOXTASK_CORS_ORIGIN")
	setFloat(&cfg.Server.RateLimit, "VOXTASK_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "VOXTASK_RATE_BURST")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "VOXTASK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "VOXTASK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "VOXTASK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "VOXTASK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "VOXTASK_PG_HEALTH_CHECK")
	setString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Anthropic.BaseURL, "VOXTASK_ANTHROPIC_BASE_URL")
	setString(&cfg.Anthropic.Model, "VOXTASK_ANTHROPIC_MODEL")
	setInt(&cfg.Anthropic.MaxTokens, "VOXTASK_ANTHROPIC_MAX_TOKENS")
	setBool(&cfg.Anthropic.CacheControl, "VOXTASK_ANTHROPIC_CACHE_CONTROL")
	setDuration(&cfg.Anthropic.Timeout, "VOXTASK_ANTHROPIC_TIMEOUT")
	setString(&cfg.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	setString(&cfg.Deepgram.URL, "VOXTASK_DEEPGRAM_URL")
	setInt(&cfg.Agent.MaxIterations, "VOXTASK_AGENT_MAX_ITERATIONS")
	setInt(&cfg.Agent.HistoryLimit, "VOXTASK_AGENT_HISTORY_LIMIT")
	setBool(&cfg.Agent.SessionScoped, "VOXTASK_AGENT_SESSION_SCOPED")
	setDuration(&cfg.Agent.ProcessTimeout, "VOXTASK_AGENT_PROCESS_TIMEOUT")
	setInt(&cfg.Agent.Retries, "VOXTASK_AGENT_RETRIES")
	setString(&cfg.Agent.SystemPrompt, "VOXTASK_AGENT_SYSTEM_PROMPT")
	setString(&cfg.Logging.Level, "VOXTASK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "VOXTASK_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "VOXTASK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "VOXTASK_BREAKER_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RateLimit <= 0 {
		return errors.New("server.rate_limit must be > 0")
	}
	if cfg.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Anthropic.Model == "" {
		return errors.New("anthropic.model is required")
	}
	if cfg.Anthropic.MaxTokens < 1 {
		return errors.New("anthropic.max_tokens must be >= 1")
	}
	if cfg.Agent.MaxIterations < 1 {
		return errors.New("agent.max_iterations must be >= 1")
	}
	if cfg.Agent.HistoryLimit < 0 {
		return errors.New("agent.history_limit must be >= 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
