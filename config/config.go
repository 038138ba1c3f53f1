// Package config loads server settings from .env, the environment and flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	DBPath          string
	HolidaysFile    string // empty = built-in fixed table
	LogLevel        string
	LogFormat       string // "text" or "json"
	RateLimitPerMin int    // 0 disables rate limiting
	CORSOrigins     []string
}

// Load reads envFile (ignored if missing), then the environment, then args.
func Load(envFile string, args []string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("error loading env file: %w", err)
		}
	}

	var cfg Config
	var origins string

	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", getEnvAsInt("PORT", 8080), "HTTP server port")
	flags.StringVar(&cfg.DBPath, "db", getEnv("DB_PATH", "workday.db"), "SQLite database path (\":memory:\" for in-memory)")
	flags.StringVar(&cfg.HolidaysFile, "holidays", getEnv("HOLIDAYS_FILE", ""), "fixed holiday YAML file")
	flags.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level")
	flags.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format: text or json")
	flags.IntVar(&cfg.RateLimitPerMin, "rate-limit", getEnvAsInt("RATE_LIMIT_PER_MIN", 600), "requests per minute per client IP (0 disables)")
	flags.StringVar(&origins, "cors-origins", getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080"), "comma separated allowed origins")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(origins)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.RateLimitPerMin < 0 {
		return Config{}, fmt.Errorf("invalid rate limit %d", cfg.RateLimitPerMin)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	if val, err := strconv.Atoi(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
