package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Google    GoogleConfig    `mapstructure:"google"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// StoreConfig locates the processed-items log.
type StoreConfig struct {
	Path             string `mapstructure:"path" validate:"required"`
	CompactThreshold int    `mapstructure:"compact_threshold" validate:"gte=0"`
}

// PipelineConfig tunes fetching and classification of a batch.
type PipelineConfig struct {
	Concurrency   int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	DetachGrace   time.Duration `mapstructure:"detach_grace" validate:"gte=0"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1,lte=16"`
	BaseDelay     time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	ProgressEvery int           `mapstructure:"progress_every" validate:"gte=1"`
	Lookback      time.Duration `mapstructure:"lookback" validate:"gt=0"`
	Limit         int           `mapstructure:"limit" validate:"gte=1,lte=500"`
	TimeZone      string        `mapstructure:"timezone" validate:"required"`
	DryRun        bool          `mapstructure:"dry_run"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider           string  `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	GeminiAPIKey       string  `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey       string  `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	ModelName          string  `mapstructure:"model_name"`
	PromptTemplatePath string  `mapstructure:"prompt_template_path"`
	MaxBodyTokens      int     `mapstructure:"max_body_tokens" validate:"gte=0"`
	Encoding           string  `mapstructure:"encoding"`
	RequestsPerSecond  float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst              int     `mapstructure:"burst" validate:"gte=0"`
}

// GoogleConfig holds the OAuth client and mailbox settings.
type GoogleConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	TokenPath       string `mapstructure:"token_path"`
	User            string `mapstructure:"user" validate:"required"`
	CalendarID      string `mapstructure:"calendar_id" validate:"required"`
}

// SinksConfig selects where important emails are delivered.
type SinksConfig struct {
	Log      bool           `mapstructure:"log"`
	Calendar bool           `mapstructure:"calendar"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// PostgresConfig enables recording triage results in a database.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true,omitempty,url"`
}

// KafkaConfig enables publishing important emails to a topic.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true,dive,hostname_port"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
	Enabled bool     `mapstructure:"enabled"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Stdout      bool   `mapstructure:"stdout"`
}
