package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, optionally, a
// config file. Environment variables take precedence over file values and
// use the PLANFORGE_ prefix with underscores for nesting, e.g.
// PLANFORGE_SERVER_PORT or PLANFORGE_DATABASE_URL.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file next to the binary or in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Running without a config file is fine; env vars cover everything.
	}

	v.SetEnvPrefix("PLANFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for settings that have sensible
// out-of-the-box behavior.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Secrets and connection strings default to empty. Registering the key
	// is still required: viper only surfaces env-only values to Unmarshal
	// for keys it knows about.
	v.SetDefault("database.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("llm.gemini_api_key", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("quota.weekly_generation_cap", 2)
	v.SetDefault("quota.daily_regeneration_cap", 5)
	v.SetDefault("quota.token_cap", 50000)

	v.SetDefault("task.concurrency", 10)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.max_attempts", 3)
	v.SetDefault("task.backoff_base", 5*time.Second)
	v.SetDefault("task.backoff_max", 2*time.Minute)
	v.SetDefault("task.stuck_task_age", 30*time.Minute)
	v.SetDefault("task.job_retention", 30*24*time.Hour)
}
