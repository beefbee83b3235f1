package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything the server needs, sourced from the environment
// with an optional .env file for local development.
type Config struct {
	Environment Environment

	Port string

	DatabaseURL string

	RedisURL      string
	RedisPassword string

	JWTSecret string

	GroqAPIKey string
	GroqAPIURL string

	AWSRegion string
	S3Bucket  string

	CORSOrigins []string
}

// Load reads the configuration. A missing .env file is fine; real
// deployments set variables directly.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] skipping .env: %v", err)
	}

	cfg := &Config{
		Environment:   CurrentEnvironment(),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getSecret("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getSecret("REDIS_PASSWORD", ""),
		JWTSecret:     getSecret("JWT_SECRET", ""),
		GroqAPIKey:    getSecret("GROQ_API_KEY", ""),
		GroqAPIURL:    getEnv("GROQ_API_URL", ""),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		if c.Environment.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		log.Printf("[CONFIG] JWT_SECRET not set, using insecure development default")
		c.JWTSecret = "dev-only-secret"
	}
	if c.GroqAPIKey == "" {
		log.Printf("[CONFIG] GROQ_API_KEY not set, AI endpoints disabled")
	}
	if c.RedisURL == "" {
		log.Printf("[CONFIG] REDIS_URL not set, rate limits kept in memory only")
	}
	return nil
}

// getEnv returns the variable or a default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getSecret resolves key, preferring a <KEY>_FILE path when set so secrets
// can be mounted as files.
func getSecret(key, fallback string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[CONFIG] reading %s_FILE: %v", key, err)
		} else {
			return strings.TrimSpace(string(data))
		}
	}
	return getEnv(key, fallback)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
