// Package config loads process configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Provider selects the inference engine: gemini, openai or ollama.
	Provider string

	GoogleAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OllamaBaseURL string
	OllamaPort    int
	OllamaModel   string

	PlacesAPIKey string

	PostgresURL    string
	EmbeddingModel string

	Workers   int
	MaxFrames int
	OutputDir string

	// MetricsAddr enables the diagnostics HTTP server when non-empty.
	MetricsAddr string
}

// Load reads the environment, after loading .env when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Provider: getEnv("PROVIDER", "gemini"),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost"),
		OllamaPort:    getEnvInt("OLLAMA_PORT", 11434),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2-vision:11b"),

		PlacesAPIKey: os.Getenv("GOOGLE_PLACES_API_KEY"),

		PostgresURL:    os.Getenv("POSTGRES_URL"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		Workers:   getEnvInt("WORKERS", 3),
		MaxFrames: getEnvInt("MAX_FRAMES", 8),
		OutputDir: getEnv("OUTPUT_DIR", "output_frames"),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}
}

// Validate checks the credentials the selected provider needs. Failures
// here are fatal at startup; nothing is retried later.
func (c *Config) Validate() error {
	var missing []string

	switch c.Provider {
	case "gemini":
		if strings.TrimSpace(c.GoogleAPIKey) == "" {
			missing = append(missing, "GOOGLE_API_KEY is required for the gemini provider")
		}
	case "openai", "gpt":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			missing = append(missing, "OPENAI_API_KEY is required for the openai provider")
		}
	case "ollama":
		// local, no credentials
	default:
		missing = append(missing, fmt.Sprintf("unknown provider %q", c.Provider))
	}

	if c.Workers < 1 {
		missing = append(missing, "WORKERS must be at least 1")
	}

	if len(missing) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(missing, "; "))
	}
	return nil
}

// HasPlaces reports whether the places search collaborator can be built.
func (c *Config) HasPlaces() bool {
	return strings.TrimSpace(c.PlacesAPIKey) != ""
}

// HasPostgres reports whether the Postgres run store can be built.
func (c *Config) HasPostgres() bool {
	return strings.TrimSpace(c.PostgresURL) != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
