package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

var (
	validBackends   = []string{"memory", "csv", "sqlite", "sheets"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

type Config struct {
	// HTTP Server
	Port               string `env:"PORT" yaml:"port"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" yaml:"rate_limit_per_minute"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format"`

	// Backend selection
	DataBackend  string `env:"DATA_BACKEND" yaml:"data_backend"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" yaml:"sqlite_db_path"`
	CSVFilePath  string `env:"CSV_FILE_PATH" yaml:"csv_file_path"`

	// Google Sheets
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID" yaml:"google_spreadsheet_id"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" yaml:"google_sheet_name"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON" yaml:"google_service_account_json"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE" yaml:"google_service_account_file"`

	// AMQP (empty URL disables change events)
	AMQPURL      string `env:"AMQP_URL" yaml:"amqp_url"`
	AMQPExchange string `env:"AMQP_EXCHANGE" yaml:"amqp_exchange"`
	AMQPQueue    string `env:"AMQP_QUEUE" yaml:"amqp_queue"`

	// MQTT summary feed
	MQTTEnabled     bool   `env:"MQTT_ENABLED" yaml:"mqtt_enabled"`
	MQTTBroker      string `env:"MQTT_BROKER" yaml:"mqtt_broker"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" yaml:"mqtt_topic_prefix"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" yaml:"mqtt_client_id"`
	MQTTUsername    string `env:"MQTT_USERNAME" yaml:"mqtt_username"`
	MQTTPassword    string `env:"MQTT_PASSWORD" yaml:"mqtt_password"`

	// Worker
	SyncInterval time.Duration `env:"SYNC_INTERVAL" yaml:"sync_interval"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 60,

		LogLevel:  "info",
		LogFormat: "text",

		DataBackend:  "memory",
		SQLiteDBPath: "./data/evcharge.db",
		CSVFilePath:  "./data/sessions.csv",

		GoogleSheetName: "Sessions",

		AMQPExchange: "evcharge",
		AMQPQueue:    "records_changed",

		MQTTTopicPrefix: "evcharge",
		MQTTClientID:    "evcharge",

		SyncInterval: 5 * time.Minute,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	return LoadFileOver(Defaults(), path)
}

// LoadFileOver is LoadFile layered on top of base instead of Defaults, for
// binaries whose defaults differ from the server's.
func LoadFileOver(base *Config, path string) (*Config, error) {
	cfg := base

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.GoogleSpreadsheetID = strings.TrimSpace(cfg.GoogleSpreadsheetID)
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	case "csv":
		if c.CSVFilePath == "" {
			errors = append(errors, "CSV file path cannot be empty when using csv backend")
		} else if msg := ensureDir(c.CSVFilePath); msg != "" {
			errors = append(errors, msg)
		}
	case "sheets":
		errors = append(errors, c.validateSheets()...)
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MQTTEnabled && strings.TrimSpace(c.MQTTBroker) == "" {
		errors = append(errors, "MQTT broker is required when MQTT is enabled")
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateMirror checks the settings the sheets mirror worker needs on top
// of Validate.
func (c *Config) ValidateMirror() error {
	errors := c.validateSheets()
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path is required for the mirror worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets backend")
	}
	hasJSON := strings.TrimSpace(c.GoogleServiceAccountJSON) != ""
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasJSON && !hasFile {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

// ensureDir creates the parent directory of path when missing.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create data directory '%s': %v", dir, err)
		}
	}
	return ""
}
