// Package config loads settings from the environment, an optional .env
// file, an optional config file and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	applog "saifuu/internal/log"
)

// Keys, which double as environment variable names.
const (
	KeyPort                     = "PORT"
	KeySQLiteDBPath             = "SQLITE_DB_PATH"
	KeyLogLevel                 = "LOG_LEVEL"
	KeyLogFormat                = "LOG_FORMAT"
	KeyDebugErrors              = "DEBUG_ERRORS"
	KeyRateLimitPerMinute       = "RATE_LIMIT_PER_MINUTE"
	KeyAMQPURL                  = "AMQP_URL"
	KeyAMQPExchange             = "AMQP_EXCHANGE"
	KeyAMQPQueue                = "AMQP_QUEUE"
	KeyGoogleSpreadsheetID      = "GOOGLE_SPREADSHEET_ID"
	KeyGoogleSheetName          = "GOOGLE_SHEET_NAME"
	KeyGoogleServiceAccountFile = "GOOGLE_SERVICE_ACCOUNT_FILE"
	KeyGoogleServiceAccountJSON = "GOOGLE_SERVICE_ACCOUNT_JSON"
	KeyRecurringInterval        = "RECURRING_INTERVAL"
)

var defaults = map[string]any{
	KeyPort:               "8080",
	KeySQLiteDBPath:       "./data/saifuu.db",
	KeyLogLevel:           "info",
	KeyLogFormat:          "text",
	KeyDebugErrors:        false,
	KeyRateLimitPerMinute: 60,
	KeyAMQPURL:            "",
	KeyAMQPExchange:       "saifuu",
	KeyAMQPQueue:          "sync_transactions",
	KeyGoogleSheetName:    "Transactions",
	KeyRecurringInterval:  time.Hour,

	KeyGoogleSpreadsheetID:      "",
	KeyGoogleServiceAccountFile: "",
	KeyGoogleServiceAccountJSON: "",
}

type Config struct {
	// HTTP server
	Port               string
	DebugErrors        bool
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP; an empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Subscription processor
	RecurringInterval time.Duration
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves every key from v. Flags bound to v win over the
// environment, which wins over the config file, which wins over defaults.
func Load(v *viper.Viper) (*Config, error) {
	for k, def := range defaults {
		v.SetDefault(k, def)
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &Config{
		Port:               strings.TrimSpace(v.GetString(KeyPort)),
		DebugErrors:        v.GetBool(KeyDebugErrors),
		RateLimitPerMinute: v.GetInt(KeyRateLimitPerMinute),
		SQLiteDBPath:       strings.TrimSpace(v.GetString(KeySQLiteDBPath)),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),

		AMQPURL:      strings.TrimSpace(v.GetString(KeyAMQPURL)),
		AMQPExchange: strings.TrimSpace(v.GetString(KeyAMQPExchange)),
		AMQPQueue:    strings.TrimSpace(v.GetString(KeyAMQPQueue)),

		GoogleSpreadsheetID:      strings.TrimSpace(v.GetString(KeyGoogleSpreadsheetID)),
		GoogleSheetName:          strings.TrimSpace(v.GetString(KeyGoogleSheetName)),
		GoogleServiceAccountFile: strings.TrimSpace(v.GetString(KeyGoogleServiceAccountFile)),
		GoogleServiceAccountJSON: strings.TrimSpace(v.GetString(KeyGoogleServiceAccountJSON)),

		RecurringInterval: v.GetDuration(KeyRecurringInterval),
	}, nil
}

func (c *Config) Addr() string { return ":" + c.Port }

func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Logger builds the process logger from the logging settings. Call after
// Validate.
func (c *Config) Logger(component string) *applog.Logger {
	level, _ := applog.ParseLevel(c.LogLevel)
	return applog.New(applog.Config{
		Level:     level,
		Format:    c.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.AMQPEnabled() {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google sheet name cannot be empty when a spreadsheet ID is provided")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); err != nil {
				errs = append(errs, fmt.Sprintf("Google service account file is not readable: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.RecurringInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
