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
	Port      string
	JWTSecret string
	DataDir   string
	Database  DatabaseConfig
	Sync      SyncConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// SyncConfig holds background sync scheduling configuration
type SyncConfig struct {
	IntervalMinutes int
}

// SquareConfig holds the POS API credentials for a single sync attempt
type SquareConfig struct {
	AccessToken  string
	IsProduction bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	interval := 30
	if raw := os.Getenv("SYNC_INTERVAL_MINUTES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	return &Config{
		Port:      getEnv("PORT", "3000"),
		JWTSecret: jwtSecret,
		DataDir:   getEnv("DATA_DIR", "./data"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "profitlens"),
		},
		Sync: SyncConfig{
			IntervalMinutes: interval,
		},
	}, nil
}

// LoadSquare reads the POS API credentials fresh from the environment.
// Called at the start of every sync attempt so a rotated token is picked
// up without a restart.
func LoadSquare() (SquareConfig, error) {
	token := SanitizeToken(os.Getenv("SQUARE_ACCESS_TOKEN"))
	if token == "" {
		return SquareConfig{}, fmt.Errorf("missing SQUARE_ACCESS_TOKEN")
	}

	return SquareConfig{
		AccessToken:  token,
		IsProduction: IsProductionEnv(os.Getenv("SQUARE_ENVIRONMENT")),
	}, nil
}

// SanitizeToken strips whitespace and surrounding quotes that tend to leak
// into tokens pasted from shell exports or .env files.
func SanitizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.Trim(token, `"'`)
	return strings.TrimSpace(token)
}

// IsProductionEnv reports whether an environment string selects the
// production POS API. Anything that does not mention production is sandbox.
func IsProductionEnv(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "production")
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
