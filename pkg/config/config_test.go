package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Addr != ":5000" {
		t.Errorf("Expected default server addr :5000, got %s", config.Server.Addr)
	}
	if config.Crawl.MaxPosts != 20 {
		t.Errorf("Expected default max posts 20, got %d", config.Crawl.MaxPosts)
	}
	if config.Scheduler.Cooldown != 60*time.Second {
		t.Errorf("Expected default cooldown 60s, got %v", config.Scheduler.Cooldown)
	}
	if config.Scheduler.CycleInterval != 5*time.Minute {
		t.Errorf("Expected default cycle interval 5m, got %v", config.Scheduler.CycleInterval)
	}
	if !strings.Contains(config.Crawl.FeedURLTemplate, "{username}") {
		t.Errorf("Expected feed URL template to carry a {username} placeholder, got %s", config.Crawl.FeedURLTemplate)
	}
	if !config.Crawl.Headless {
		t.Error("Expected headless browsing by default")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("BIRDWATCHER_ADDR", ":8080")
	os.Setenv("BIRDWATCHER_DB_PATH", "/tmp/test.db")
	os.Setenv("BIRDWATCHER_SESSION_FILE", "/tmp/session.json")
	os.Setenv("BIRDWATCHER_MAX_POSTS", "5")
	os.Setenv("BIRDWATCHER_COOLDOWN", "90s")
	os.Setenv("BIRDWATCHER_CYCLE_INTERVAL", "10m")
	os.Setenv("BIRDWATCHER_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("BIRDWATCHER_ADDR")
		os.Unsetenv("BIRDWATCHER_DB_PATH")
		os.Unsetenv("BIRDWATCHER_SESSION_FILE")
		os.Unsetenv("BIRDWATCHER_MAX_POSTS")
		os.Unsetenv("BIRDWATCHER_COOLDOWN")
		os.Unsetenv("BIRDWATCHER_CYCLE_INTERVAL")
		os.Unsetenv("BIRDWATCHER_LOG_LEVEL")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Server.Addr != ":8080" {
		t.Errorf("Expected addr :8080, got %s", config.Server.Addr)
	}
	if config.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected db path /tmp/test.db, got %s", config.Database.Path)
	}
	if config.Auth.SessionFile != "/tmp/session.json" {
		t.Errorf("Expected session file /tmp/session.json, got %s", config.Auth.SessionFile)
	}
	if config.Crawl.MaxPosts != 5 {
		t.Errorf("Expected max posts 5, got %d", config.Crawl.MaxPosts)
	}
	if config.Scheduler.Cooldown != 90*time.Second {
		t.Errorf("Expected cooldown 90s, got %v", config.Scheduler.Cooldown)
	}
	if config.Scheduler.CycleInterval != 10*time.Minute {
		t.Errorf("Expected cycle interval 10m, got %v", config.Scheduler.CycleInterval)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  addr: ":9000"
crawl:
  max_posts: 7
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Server.Addr != ":9000" {
		t.Errorf("Expected addr :9000, got %s", config.Server.Addr)
	}
	if config.Crawl.MaxPosts != 7 {
		t.Errorf("Expected max posts 7, got %d", config.Crawl.MaxPosts)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}
	// Untouched keys keep their defaults
	if config.Database.Path != "./birdwatcher.db" {
		t.Errorf("Expected default db path, got %s", config.Database.Path)
	}
}

func TestLoadFromFileMissingPathIsNotAnError(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(""); err != nil {
		t.Errorf("Expected missing config file to be tolerated, got %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	content := "server:\n  addr: \":9000\"\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("BIRDWATCHER_ADDR", ":7777")
	defer os.Unsetenv("BIRDWATCHER_ADDR")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.Server.Addr != ":7777" {
		t.Errorf("Expected env to override file, got %s", config.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, false},
		{"missing session file", func(c *Config) { c.Auth.SessionFile = "" }, false},
		{"missing feed template", func(c *Config) { c.Crawl.FeedURLTemplate = "" }, false},
		{"template without placeholder", func(c *Config) {
			c.Crawl.FeedURLTemplate = "https://x.com/search?q=static"
		}, false},
		{"missing item selector", func(c *Config) { c.Crawl.ItemSelector = "" }, false},
		{"zero max posts", func(c *Config) { c.Crawl.MaxPosts = 0 }, false},
		{"zero cooldown", func(c *Config) { c.Scheduler.Cooldown = 0 }, false},
		{"zero cycle interval", func(c *Config) { c.Scheduler.CycleInterval = 0 }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.mutate(config)
			err := config.Validate()
			if test.valid && err != nil {
				t.Errorf("Expected config to be valid, got %v", err)
			}
			if !test.valid && err == nil {
				t.Error("Expected validation to fail")
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Server.Addr = ":6060"
	config.Crawl.MaxPosts = 11

	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if reloaded.Server.Addr != ":6060" {
		t.Errorf("Expected addr :6060 after reload, got %s", reloaded.Server.Addr)
	}
	if reloaded.Crawl.MaxPosts != 11 {
		t.Errorf("Expected max posts 11 after reload, got %d", reloaded.Crawl.MaxPosts)
	}
}
