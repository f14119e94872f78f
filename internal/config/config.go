// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Store     StoreConfig
	Import    ImportConfig
	Fetch     FetchConfig
	Crosswalk CrosswalkConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StoreConfig holds publication store configuration.
type StoreConfig struct {
	DataPath string
}

// ImportConfig holds import pipeline configuration.
type ImportConfig struct {
	// InboxPath is the directory watched for dropped import files.
	// Empty disables the inbox watcher; batches can still run on demand.
	InboxPath string
	// FailedRowsPath is where failed-rows files for tabular batches are written.
	FailedRowsPath string
	// DefaultLocale is used to delocalize locale-keyed fields when the
	// journal does not declare its own (default: en).
	DefaultLocale string
	// MaxBatchConcurrency caps concurrent batches across distinct journals (default: 4).
	MaxBatchConcurrency int
}

// FetchConfig holds remote fetch configuration.
type FetchConfig struct {
	Timeout time.Duration // per-call timeout (default: 30s)
	RPS     float64       // requests per second per host (default: 2)
	Burst   int           // burst size per host (default: 5)
}

// CrosswalkConfig holds crosswalk table configuration.
type CrosswalkConfig struct {
	// Path to the YAML crosswalk file mapping source codes to sections and stages.
	// Empty means no crosswalk entries; resolution falls back to name matching.
	Path string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for the publication store")
	inboxPath := flag.String("inbox-path", "", "Directory watched for import files")
	failedRowsPath := flag.String("failed-rows-path", "", "Directory for failed-rows output files")
	defaultLocale := flag.String("default-locale", "", "Fallback locale for locale-keyed fields")
	maxConcurrency := flag.String("max-batch-concurrency", "", "Max concurrent batches across journals (default: 4)")
	fetchTimeout := flag.String("fetch-timeout", "", "Per-call remote fetch timeout (default: 30s)")
	fetchRPS := flag.String("fetch-rps", "", "Remote fetch requests per second per host (default: 2)")
	fetchBurst := flag.String("fetch-burst", "", "Remote fetch burst per host (default: 5)")
	crosswalkPath := flag.String("crosswalk", "", "Path to YAML crosswalk file")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Import: ImportConfig{
			InboxPath:           getConfigValue(*inboxPath, "INBOX_PATH", ""),
			FailedRowsPath:      getConfigValue(*failedRowsPath, "FAILED_ROWS_PATH", ""),
			DefaultLocale:       getConfigValue(*defaultLocale, "DEFAULT_LOCALE", "en"),
			MaxBatchConcurrency: getIntConfigValue(*maxConcurrency, "MAX_BATCH_CONCURRENCY", 4),
		},
		Fetch: FetchConfig{
			RPS:   getFloatConfigValue(*fetchRPS, "FETCH_RPS", 2),
			Burst: getIntConfigValue(*fetchBurst, "FETCH_BURST", 5),
		},
		Crosswalk: CrosswalkConfig{
			Path: getConfigValue(*crosswalkPath, "CROSSWALK_PATH", ""),
		},
	}

	timeoutStr := getConfigValue(*fetchTimeout, "FETCH_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch timeout %q: %w", timeoutStr, err)
	}
	cfg.Fetch.Timeout = timeout

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Store.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Import.DefaultLocale == "" {
		return errors.New("default locale cannot be empty")
	}

	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}

	if c.Import.MaxBatchConcurrency < 1 {
		return errors.New("max batch concurrency must be at least 1")
	}

	// InboxPath can be empty - batches can be run on demand without a watcher.

	return nil
}

// expandPaths expands ~ and applies defaults for all filesystem paths.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	defaultData := filepath.Join(homeDir, "FolioIngest", "data")
	expanded, err := expandPath(c.Store.DataPath, defaultData)
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.Store.DataPath = expanded

	if c.Import.InboxPath != "" {
		expanded, err = expandPath(c.Import.InboxPath, "")
		if err != nil {
			return fmt.Errorf("invalid inbox path: %w", err)
		}
		c.Import.InboxPath = expanded
	}

	defaultFailed := filepath.Join(c.Store.DataPath, "failed-rows")
	expanded, err = expandPath(c.Import.FailedRowsPath, defaultFailed)
	if err != nil {
		return fmt.Errorf("invalid failed-rows path: %w", err)
	}
	c.Import.FailedRowsPath = expanded

	if c.Crosswalk.Path != "" {
		expanded, err = expandPath(c.Crosswalk.Path, "")
		if err != nil {
			return fmt.Errorf("invalid crosswalk path: %w", err)
		}
		c.Crosswalk.Path = expanded
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
