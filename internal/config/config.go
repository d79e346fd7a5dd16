package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AssistantConfig points at an OpenAI-compatible chat completions API.
type AssistantConfig struct {
	Endpoint string
	Key      string
	Model    string
}

// Enabled reports whether a remote model is configured.
func (c AssistantConfig) Enabled() bool {
	return c.Endpoint != "" && c.Key != ""
}

// SMTPConfig configures new-confession email notifications.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Enabled reports whether notifications can be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// Config holds the server configuration.
type Config struct {
	Port            string
	DatabaseURL     string
	AdminToken      string
	ModeratorSecret string
	CORSOrigins     []string
	PublicBaseURL   string
	Debug           bool
	Assistant       AssistantConfig
	SMTP            SMTPConfig
}

// Load reads .env when present and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Production sets variables directly.
		log.Println("No .env file found, reading from environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "sqlite://confessly.db"),
		AdminToken:      getEnv("X_ADMIN_TOKEN", ""),
		ModeratorSecret: getEnv("MODERATOR_JWT_SECRET", ""),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGIN", "*")),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		Assistant: AssistantConfig{
			Endpoint: getEnv("AI_ENDPOINT", ""),
			Key:      getEnv("AI_KEY", ""),
			Model:    getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("NOTIFY_FROM", ""),
		},
	}

	debug, err := strconv.ParseBool(getEnv("DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEBUG: %w", err)
	}
	cfg.Debug = debug

	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("invalid SMTP_PORT %q", os.Getenv("SMTP_PORT"))
	}
	cfg.SMTP.Port = port
	if to := getEnv("NOTIFY_TO", ""); to != "" {
		cfg.SMTP.To = splitCSV(to)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
