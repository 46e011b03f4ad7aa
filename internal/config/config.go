package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// LLM API keys. Per-session keys supplied by the widget override
	// these; they are never persisted.
	OpenAIAPIKey string
	GeminiAPIKey string

	// TTS
	ElevenLabsAPIKey string

	// App settings
	DefaultProvider    string
	DefaultRecognizer  string
	DefaultSynthesizer string
	SystemPrompt       string
	SpeechLanguage     string
	AllowedOrigin      string
	RequestTimeout     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey:   os.Getenv("ELEVENLABS_API_KEY"),
		DefaultProvider:    getEnv("DEFAULT_PROVIDER", "gemini"),
		DefaultRecognizer:  getEnv("DEFAULT_STT_ENGINE", "whisper"),
		DefaultSynthesizer: getEnv("DEFAULT_TTS_ENGINE", "openai"),
		SystemPrompt:       os.Getenv("SYSTEM_PROMPT"),
		SpeechLanguage:     getEnv("SPEECH_LANGUAGE", "en-US"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "*"),
		RequestTimeout:     getEnvSeconds("REQUEST_TIMEOUT_SECONDS", 30),
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("PORT must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(fallback) * time.Second
}
