package gemini

import "github.com/phrazzld/mailtriage/internal/config"

func configWithKey(key string) config.LLMConfig {
	return config.LLMConfig{Provider: "gemini", GeminiAPIKey: key}
}
