package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the settings shared by the client binary and the dev
// server. Values come from the environment, with a best-effort .env load
// first.
type Config struct {
	AppName string
	Env     string

	// Client side.
	ServerURL string
	Username  string
	Password  string

	// Dev server side.
	Host               string
	Port               int
	SQLitePath         string
	JWTSecret          string
	AccessTokenMinutes int
	CORSOrigins        []string
	PingInterval       time.Duration
	PongTimeout        time.Duration
}

// LoadClient reads the settings the chat client needs.
func LoadClient() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "chatsync"),
		Env:       getEnv("APP_ENV", "development"),
		ServerURL: getEnv("CHAT_SERVER_URL", "http://localhost:8000"),
		Username:  os.Getenv("CHAT_USERNAME"),
		Password:  os.Getenv("CHAT_PASSWORD"),
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("CHAT_USERNAME is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("CHAT_PASSWORD is required")
	}
	return cfg, nil
}

// LoadServer reads the settings the dev server needs.
func LoadServer() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:            getEnv("APP_NAME", "chatsyncd"),
		Env:                getEnv("APP_ENV", "development"),
		Host:               getEnv("HTTP_HOST", "0.0.0.0"),
		Port:               getEnvAsInt("HTTP_PORT", 8000),
		SQLitePath:         getEnv("SQLITE_PATH", "chatsync.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),
		CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
		PingInterval:       time.Duration(getEnvAsInt("PING_INTERVAL_SECONDS", 20)) * time.Second,
		PongTimeout:        time.Duration(getEnvAsInt("PONG_TIMEOUT_SECONDS", 10)) * time.Second,
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
