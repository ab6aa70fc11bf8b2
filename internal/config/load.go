package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MAILTRIAGE"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("configuration validation failed")

// Option customizes a Load call.
type Option func(v *viper.Viper) error

// WithFile reads settings from a YAML, JSON or TOML file. An empty path is
// ignored.
func WithFile(path string) Option {
	return func(v *viper.Viper) error {
		if path == "" {
			return nil
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithFlags binds command line flags to configuration keys. Only flags the
// user set override lower-precedence sources.
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range bindings {
			f := flags.Lookup(name)
			if f == nil {
				return fmt.Errorf("bind %s: unknown flag --%s", key, name)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
		}
		return nil
	}
}

// Load configuration from defaults, optional sources and environment variables.
// Environment variables take precedence over values from config files, and
// flags set on the command line take precedence over both.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.path", "data/processed.log")
	v.SetDefault("store.compact_threshold", 10000)

	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.timeout", "2m")
	v.SetDefault("pipeline.detach_grace", "30s")
	v.SetDefault("pipeline.max_attempts", 8)
	v.SetDefault("pipeline.base_delay", "1s")
	v.SetDefault("pipeline.progress_every", 5)
	v.SetDefault("pipeline.lookback", "24h")
	v.SetDefault("pipeline.limit", 50)
	v.SetDefault("pipeline.timezone", "America/Los_Angeles")
	v.SetDefault("pipeline.dry_run", false)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.model_name", "")
	v.SetDefault("llm.prompt_template_path", "")
	v.SetDefault("llm.max_body_tokens", 2000)
	v.SetDefault("llm.encoding", "cl100k_base")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("google.credentials_path", "credentials.json")
	v.SetDefault("google.token_path", "token.json")
	v.SetDefault("google.user", "me")
	v.SetDefault("google.calendar_id", "primary")

	v.SetDefault("sinks.log", true)
	v.SetDefault("sinks.calendar", false)
	v.SetDefault("sinks.postgres.enabled", false)
	v.SetDefault("sinks.postgres.url", "")
	v.SetDefault("sinks.kafka.enabled", false)
	v.SetDefault("sinks.kafka.brokers", []string{})
	v.SetDefault("sinks.kafka.topic", "mailtriage.important")

	v.SetDefault("telemetry.service_name", "mailtriage")
	v.SetDefault("telemetry.stdout", false)
}
