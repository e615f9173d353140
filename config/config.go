// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/warp/payroll-invoicing/logger"
	"github.com/warp/payroll-invoicing/payroll"
)

type Config struct {
	// Server
	Port               string
	CORSAllowedOrigins []string

	// Storage
	DatabasePath string
	UploadDir    string

	// Letterhead defaults
	DefaultCompanyName string
	CompanyEmail       string
	CompanyPhone       string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	config := &Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DatabasePath:       getEnv("DATABASE_PATH", "invoices.db"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		DefaultCompanyName: getEnv("DEFAULT_COMPANY_NAME", payroll.DefaultCompanyName),
		CompanyEmail:       getEnv("COMPANY_EMAIL", "payroll@truezentechnologies.com"),
		CompanyPhone:       getEnv("COMPANY_PHONE", "9986553505"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if strings.TrimSpace(c.DefaultCompanyName) == "" {
		return fmt.Errorf("DEFAULT_COMPANY_NAME cannot be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// CompanyDefaults is the settings row created on first access.
func (c *Config) CompanyDefaults() payroll.CompanySettings {
	return payroll.CompanySettings{CompanyName: c.DefaultCompanyName}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
