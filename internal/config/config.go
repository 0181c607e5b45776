package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	DBPath         string
	ImagePath      string
	SessionKey     string
	AdminEmail     string
	BaseURL        string
	WhatsAppNumber string
	ResetTokenTTL  time.Duration
	SecureCookies  bool
	LogLevel       string
	LogFormat      string
	LogFile        string
}

// Load reads configuration from the environment. A .env file in the working
// directory (or the file named by MUSICALS_ENV_FILE) is applied first; values
// already present in the environment win.
func Load() *Config {
	envFile := getEnv("MUSICALS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load env file", "file", envFile, "error", err)
	}

	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DBPath:         getEnv("DB_PATH", "/data/musicals.db"),
		ImagePath:      getEnv("IMAGE_PATH", "/data/images"),
		SessionKey:     getEnv("SESSION_KEY", ""),
		AdminEmail:     strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		WhatsAppNumber: getEnv("WHATSAPP_NUMBER", ""),
		ResetTokenTTL:  getDuration("RESET_TOKEN_TTL", time.Hour),
		SecureCookies:  getEnv("SECURE_COOKIES", "") == "1",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}
