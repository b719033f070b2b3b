package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Redis
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// JWT
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Gemini AI
	GeminiAPIKey         string `env:"GEMINI_API_KEY,required,notEmpty"`
	GeminiModel          string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiConcurrentReqs int    `env:"GEMINI_CONCURRENT_REQUESTS" envDefault:"5"`

	// Ollama
	OllamaHost  string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel string `env:"OLLAMA_MODEL" envDefault:"deepseek-r1"`

	// Chat
	LLMTimeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMRequestsPerMinute int           `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"30"`
	ChatBackend          string        `env:"CHAT_BACKEND" envDefault:"gemini"`
	ContextWindowSize    int           `env:"CONTEXT_WINDOW_SIZE" envDefault:"5"`
	ResponseFormat       string        `env:"RESPONSE_FORMAT" envDefault:"default"`
	AIPersonality        string        `env:"AI_PERSONALITY" envDefault:"default"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ContextWindowSize < 0 {
		return fmt.Errorf("CONTEXT_WINDOW_SIZE must not be negative, got %d", c.ContextWindowSize)
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1, got %d", c.GeminiConcurrentReqs)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	switch c.ChatBackend {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("CHAT_BACKEND must be gemini or ollama, got %q", c.ChatBackend)
	}
	return nil
}
