package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dl-alexandre/sheetport/internal/types"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// AppDirName is the directory created under the XDG base directories
	AppDirName = "sheetport"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "SHEETPORT_"
)

// Config holds application configuration
type Config struct {
	// ServerURL is the base URL of the remote import service
	ServerURL string `json:"serverUrl"`

	// Username is the admin account used to log in
	Username string `json:"username"`

	// Profile names the stored credential used when no password is given
	Profile string `json:"profile"`

	// OnlyValidInvention is forwarded to the import endpoint as a query flag
	OnlyValidInvention bool `json:"onlyValidInvention"`

	// ColumnMappings are "original:mapped" tokens applied to header rows
	ColumnMappings []string `json:"columnMappings"`

	// UseDefaultMappings adds the built-in header table before ColumnMappings
	UseDefaultMappings bool `json:"useDefaultMappings"`

	// UploadTimeout bounds each upload attempt, in seconds
	UploadTimeout int `json:"uploadTimeout"`

	// Cooldown is the pause after a successful upload, in milliseconds
	Cooldown int `json:"cooldown"`

	// RequestTimeout bounds the login request, in seconds
	RequestTimeout int `json:"requestTimeout"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel"`

	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat"`

	// ColorOutput enables color output for table format
	ColorOutput bool `json:"colorOutput"`

	// HistoryEnabled records every run in the local history database
	HistoryEnabled bool `json:"historyEnabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerURL:           "http://localhost:8080",
		Profile:             "default",
		ColumnMappings:      []string{},
		UploadTimeout:       600,  // 10 minutes
		Cooldown:            3000, // 3 seconds
		RequestTimeout:      60,
		LogLevel:            "normal",
		DefaultOutputFormat: types.OutputFormatTable,
		ColorOutput:         true,
		HistoryEnabled:      true,
	}
}

// Load loads configuration with precedence: CLI flags > env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file not existing is not an error
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvPrefix + "SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvPrefix + "USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvPrefix + "PROFILE"); v != "" {
		c.Profile = v
	}
	if v := os.Getenv(EnvPrefix + "ONLY_VALID_INVENTION"); v != "" {
		c.OnlyValidInvention = ParseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "COLUMN_MAPPINGS"); v != "" {
		c.ColumnMappings = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "USE_DEFAULT_MAPPINGS"); v != "" {
		c.UseDefaultMappings = ParseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "UPLOAD_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			c.UploadTimeout = timeout
		}
	}
	if v := os.Getenv(EnvPrefix + "COOLDOWN"); v != "" {
		if cooldown, err := strconv.Atoi(v); err == nil {
			c.Cooldown = cooldown
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			c.RequestTimeout = timeout
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		c.DefaultOutputFormat = types.OutputFormat(v)
	}
	if v := os.Getenv(EnvPrefix + "COLOR_OUTPUT"); v != "" {
		c.ColorOutput = ParseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "HISTORY_ENABLED"); v != "" {
		c.HistoryEnabled = ParseBool(v)
	}
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validLogLevels = []string{"quiet", "normal", "verbose", "debug"}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server URL must not be empty")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server URL must start with http:// or https://, got: %s", c.ServerURL)
	}

	if c.DefaultOutputFormat != types.OutputFormatJSON &&
		c.DefaultOutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.DefaultOutputFormat)
	}

	if c.UploadTimeout < 1 || c.UploadTimeout > 86400 {
		return fmt.Errorf("upload timeout must be between 1 and 86400 seconds, got: %d", c.UploadTimeout)
	}

	if c.Cooldown < 0 || c.Cooldown > 600000 {
		return fmt.Errorf("cooldown must be between 0 and 600000 ms, got: %d", c.Cooldown)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		return fmt.Errorf("request timeout must be between 1 and 3600 seconds, got: %d", c.RequestTimeout)
	}

	isValid := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// Set assigns a single key by its JSON name, case-insensitively. The
// resulting configuration is validated but not saved.
func (c *Config) Set(key, value string) error {
	next := *c
	switch strings.ToLower(key) {
	case "serverurl":
		next.ServerURL = strings.TrimRight(value, "/")
	case "username":
		next.Username = value
	case "profile":
		next.Profile = value
	case "onlyvalidinvention":
		next.OnlyValidInvention = ParseBool(value)
	case "columnmappings":
		next.ColumnMappings = splitList(value)
	case "usedefaultmappings":
		next.UseDefaultMappings = ParseBool(value)
	case "uploadtimeout", "cooldown", "requesttimeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got: %s", key, value)
		}
		switch strings.ToLower(key) {
		case "uploadtimeout":
			next.UploadTimeout = n
		case "cooldown":
			next.Cooldown = n
		default:
			next.RequestTimeout = n
		}
	case "loglevel":
		next.LogLevel = value
	case "defaultoutputformat":
		next.DefaultOutputFormat = types.OutputFormat(value)
	case "coloroutput":
		next.ColorOutput = ParseBool(value)
	case "historyenabled":
		next.HistoryEnabled = ParseBool(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// GetUploadTimeout returns the upload timeout as a duration
func (c *Config) GetUploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeout) * time.Second
}

// GetCooldown returns the post-success pause as a duration
func (c *Config) GetCooldown() time.Duration {
	return time.Duration(c.Cooldown) * time.Millisecond
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	if xdg.ConfigHome == "" {
		return "", fmt.Errorf("failed to resolve XDG config directory")
	}
	return filepath.Join(xdg.ConfigHome, AppDirName), nil
}

// GetDataDir returns the directory holding run history and credential files
func GetDataDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir, nil
	}
	if xdg.DataHome == "" {
		return "", fmt.Errorf("failed to resolve XDG data directory")
	}
	return filepath.Join(xdg.DataHome, AppDirName), nil
}

// ParseBool parses a boolean value from a string
func ParseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a comma separated list, dropping blank items
func splitList(s string) []string {
	items := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
