package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Output   OutputConfig
	Notify   NotifyConfig
	Search   SearchConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
}

type AuthConfig struct {
	JWTSecret string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// OutputConfig controls where generated exports and uploaded documents
// live and how the janitor sweeps them.
type OutputConfig struct {
	Dir             string
	UploadDir       string
	CleanupSchedule string
	CleanupEnabled  bool
}

type NotifyConfig struct {
	ResendAPIKey string
	FromAddress  string
}

type SearchConfig struct {
	IndexPath string // empty keeps the term index in memory
}

// Load reads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", 8080),
			AllowedOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "contaflux-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Output: OutputConfig{
			Dir:             getEnv("OUTPUT_DIR", "./outputs"),
			UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
			CleanupEnabled:  getEnvAsBool("CLEANUP_ENABLED", true),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("NOTIFY_FROM", ""),
		},
		Search: SearchConfig{
			IndexPath: getEnv("TERM_INDEX_PATH", ""),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
