package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the feed watcher
type Config struct {
	// HTTP API settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Browser session credentials
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Feed extraction settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Crawl scheduling settings
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// AuthConfig holds browser session credential configuration
type AuthConfig struct {
	SessionFile    string `yaml:"session_file" json:"session_file"`
	KeyringService string `yaml:"keyring_service" json:"keyring_service"`
}

// CrawlConfig holds feed extraction configuration
type CrawlConfig struct {
	FeedURLTemplate      string        `yaml:"feed_url_template" json:"feed_url_template"`
	ItemSelector         string        `yaml:"item_selector" json:"item_selector"`
	TextSelector         string        `yaml:"text_selector" json:"text_selector"`
	TextFallbackSelector string        `yaml:"text_fallback_selector" json:"text_fallback_selector"`
	TimeSelector         string        `yaml:"time_selector" json:"time_selector"`
	MaxPosts             int           `yaml:"max_posts" json:"max_posts"`
	NavigationTimeout    time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	NavigationRetryDelay time.Duration `yaml:"navigation_retry_delay" json:"navigation_retry_delay"`
	SettleDelay          time.Duration `yaml:"settle_delay" json:"settle_delay"`
	SelectorTimeout      time.Duration `yaml:"selector_timeout" json:"selector_timeout"`
	ScrollDelay          time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	DiagnosticsDir       string        `yaml:"diagnostics_dir" json:"diagnostics_dir"`
	Headless             bool          `yaml:"headless" json:"headless"`
}

// SchedulerConfig holds crawl cadence configuration
type SchedulerConfig struct {
	CycleInterval time.Duration `yaml:"cycle_interval" json:"cycle_interval"`
	Cooldown      time.Duration `yaml:"cooldown" json:"cooldown"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":5000",
		},
		Database: DatabaseConfig{
			Path: "./birdwatcher.db",
		},
		Auth: AuthConfig{
			SessionFile:    "auth.json",
			KeyringService: "birdwatcher",
		},
		Crawl: CrawlConfig{
			FeedURLTemplate:      "https://x.com/search?q=from%3A{username}&f=live",
			ItemSelector:         "article[data-testid='tweet']",
			TextSelector:         "[data-testid='tweetText']",
			TextFallbackSelector: "div[lang]",
			TimeSelector:         "time",
			MaxPosts:             20,
			NavigationTimeout:    60 * time.Second,
			NavigationRetryDelay: 2 * time.Second,
			SettleDelay:          5 * time.Second,
			SelectorTimeout:      30 * time.Second,
			ScrollDelay:          2 * time.Second,
			DiagnosticsDir:       "./diagnostics",
			Headless:             true,
		},
		Scheduler: SchedulerConfig{
			CycleInterval: 5 * time.Minute,
			Cooldown:      60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("BIRDWATCHER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dbPath := os.Getenv("BIRDWATCHER_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if sessionFile := os.Getenv("BIRDWATCHER_SESSION_FILE"); sessionFile != "" {
		c.Auth.SessionFile = sessionFile
	}
	if maxPosts := os.Getenv("BIRDWATCHER_MAX_POSTS"); maxPosts != "" {
		var val int
		fmt.Sscanf(maxPosts, "%d", &val)
		if val > 0 {
			c.Crawl.MaxPosts = val
		}
	}
	if cooldown := os.Getenv("BIRDWATCHER_COOLDOWN"); cooldown != "" {
		if d, err := time.ParseDuration(cooldown); err == nil && d > 0 {
			c.Scheduler.Cooldown = d
		}
	}
	if cycle := os.Getenv("BIRDWATCHER_CYCLE_INTERVAL"); cycle != "" {
		if d, err := time.ParseDuration(cycle); err == nil && d > 0 {
			c.Scheduler.CycleInterval = d
		}
	}
	if logLevel := os.Getenv("BIRDWATCHER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".birdwatcher.yaml",
		".birdwatcher.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "birdwatcher", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "birdwatcher", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".birdwatcher.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Auth.SessionFile == "" {
		errs = append(errs, errors.New("session file path is required"))
	}

	if c.Crawl.FeedURLTemplate == "" {
		errs = append(errs, errors.New("feed URL template is required"))
	}
	if !strings.Contains(c.Crawl.FeedURLTemplate, "{username}") {
		errs = append(errs, errors.New("feed URL template must contain a {username} placeholder"))
	}
	if c.Crawl.ItemSelector == "" {
		errs = append(errs, errors.New("item selector is required"))
	}
	if c.Crawl.MaxPosts <= 0 {
		errs = append(errs, errors.New("max posts must be positive"))
	}
	if c.Crawl.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Crawl.SelectorTimeout <= 0 {
		errs = append(errs, errors.New("selector timeout must be positive"))
	}

	if c.Scheduler.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.Scheduler.CycleInterval <= 0 {
		errs = append(errs, errors.New("cycle interval must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".birdwatcher.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
