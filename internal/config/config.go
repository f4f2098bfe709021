package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains settings for the Redis connection used by the
// progress broadcaster.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// AuthConfig contains authentication settings for the API boundary.
// Token issuance is owned by an external identity service; this service
// only validates bearer tokens signed with the shared secret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	// MaxRetries bounds transient-error retries inside the generator itself,
	// independent of the task queue's delivery attempts.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// QuotaConfig carries the lifetime usage caps enforced by the usage gate.
// The counters these caps apply to never reset; they are a lifetime
// allotment, not a rolling window. A zero or negative cap disables that
// limit.
type QuotaConfig struct {
	WeeklyGenerationCap  int `mapstructure:"weekly_generation_cap"`
	DailyRegenerationCap int `mapstructure:"daily_regeneration_cap"`
	TokenCap             int `mapstructure:"token_cap"`
}

// TaskConfig contains settings for the durable task queue and worker pool.
type TaskConfig struct {
	// Concurrency is the per-job-type worker count.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`

	// QueueSize is the buffer size of each per-type task channel.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// MaxAttempts is the delivery attempt cap per task.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// BackoffBase is the delay before the first redelivery; each further
	// redelivery doubles it up to BackoffMax.
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"  validate:"required"`

	// StuckTaskAge is how long a task may sit in processing before the
	// monitor treats the owning worker as dead and requeues it.
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"required"`

	// JobRetention is how long terminal job records are kept before the
	// retention sweep removes them.
	JobRetention time.Duration `mapstructure:"job_retention" validate:"required"`
}
