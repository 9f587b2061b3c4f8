package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port    string
	BaseURL string
	Secret  string

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string

	SessionTTL time.Duration

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string

	// Expense categorizer
	CategorizerURL     string
	CategorizerAPIKey  string
	CategorizerTimeout time.Duration

	// AMQP event fan-out
	AMQPURL      string
	AMQPExchange string

	// Google Sheets export
	SheetsCredentialsFile string
	SpreadsheetID         string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// S3 backups
	S3Endpoint       string
	S3Bucket         string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	BackupPrefix     string
	BackupPassphrase string
	BackupInterval   time.Duration
	BackupRetention  time.Duration
}

func Load() *Config {
	return &Config{
		Port:    getEnv("KINKEEPER_PORT", "8080"),
		BaseURL: strings.TrimRight(getEnv("KINKEEPER_BASE_URL", "http://localhost:8080"), "/"),
		Secret:  getEnv("KINKEEPER_SECRET", ""),

		DBPath: getEnv("KINKEEPER_DB_PATH", "kinkeeper.db"),

		LogLevel:  getEnv("KINKEEPER_LOG_LEVEL", "info"),
		LogFormat: getEnv("KINKEEPER_LOG_FORMAT", "text"),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		CategorizerURL:     getEnv("CATEGORIZER_URL", ""),
		CategorizerAPIKey:  getEnv("CATEGORIZER_API_KEY", ""),
		CategorizerTimeout: getEnvDuration("CATEGORIZER_TIMEOUT", 5*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kinkeeper"),

		SheetsCredentialsFile: getEnv("GOOGLE_SHEETS_CREDENTIALS_FILE", ""),
		SpreadsheetID:         getEnv("GOOGLE_SPREADSHEET_ID", ""),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@localhost"),

		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "auto"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getEnv("S3_SECRET_KEY", ""),
		BackupPrefix:     getEnv("BACKUP_PREFIX", "kinkeeper"),
		BackupPassphrase: getEnv("BACKUP_PASSPHRASE", ""),
		BackupInterval:   getEnvDuration("BACKUP_INTERVAL", 0),
		BackupRetention:  getEnvDuration("BACKUP_RETENTION", 30*24*time.Hour),
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SheetsEnabled reports whether exports can be pushed to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.SpreadsheetID != "" && c.SheetsCredentialsFile != ""
}

// EventsEnabled reports whether domain events are published over AMQP.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// PushEnabled reports whether web push notifications are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// BackupEnabled reports whether database backups to S3 are configured.
func (c *Config) BackupEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, levels))
	}
	formats := []string{"text", "pretty", "json"}
	if !slices.Contains(formats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, formats))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
	}

	if c.SessionTTL < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 hour", c.SessionTTL))
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errors = append(errors, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if c.GoogleEnabled() && len(c.Secret) < 16 {
		errors = append(errors, "KINKEEPER_SECRET must be at least 16 characters when Google sign-in is enabled")
	}

	if c.CategorizerURL != "" {
		if u, err := url.Parse(c.CategorizerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid categorizer URL '%s': must be http or https", c.CategorizerURL))
		}
	}
	if c.CategorizerTimeout <= 0 || c.CategorizerTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid categorizer timeout %v: must be between 0 and 1 minute", c.CategorizerTimeout))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SpreadsheetID != "" {
		if c.SheetsCredentialsFile == "" {
			errors = append(errors, "GOOGLE_SHEETS_CREDENTIALS_FILE is required when GOOGLE_SPREADSHEET_ID is set")
		} else if _, err := os.Stat(c.SheetsCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google Sheets credentials file does not exist: %s", c.SheetsCredentialsFile))
		}
	}

	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errors = append(errors, "VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	if c.PushEnabled() && !strings.HasPrefix(c.VAPIDSubject, "mailto:") && !strings.HasPrefix(c.VAPIDSubject, "https://") {
		errors = append(errors, fmt.Sprintf("invalid VAPID subject '%s': must be a mailto: or https:// URL", c.VAPIDSubject))
	}

	if c.BackupEnabled() {
		if len(c.BackupPassphrase) < 12 {
			errors = append(errors, "BACKUP_PASSPHRASE must be at least 12 characters when backups are enabled")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s': must be absolute", c.S3Endpoint))
			}
		}
	}
	if c.BackupInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid backup interval %v: must not be negative", c.BackupInterval))
	}
	if c.BackupRetention < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid backup retention %v: must be at least 24h", c.BackupRetention))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
