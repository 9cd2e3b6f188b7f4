package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Account   AccountConfig   `toml:"account"`
	Napcat    NapcatConfig    `toml:"napcat"`
	Auth      AuthConfig      `toml:"auth"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Generator GeneratorConfig `toml:"generator"`
	Images    ImagesConfig    `toml:"images"`
	History   HistoryConfig   `toml:"history"`
}

type AccountConfig struct {
	// UIN is the bot's QQ number.
	UIN string `toml:"uin"`
	// DataDir overrides where cookies, dedup ledgers and the archive
	// live. Empty means the platform config directory.
	DataDir string `toml:"data_dir"`
}

type NapcatConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Token   string `toml:"token"`
}

type AuthConfig struct {
	// Strategies is the fallback order; recognized names are "napcat",
	// "clientkey" and "browser".
	Strategies []string `toml:"strategies"`
	// MinRefreshMinutes suppresses re-acquisition shortly after a
	// successful refresh.
	MinRefreshMinutes int `toml:"min_refresh_minutes"`
	// BrowserCooldownHours rations the interactive QR login.
	BrowserCooldownHours int `toml:"browser_cooldown_hours"`
	// FallbackToDisk reuses cookies on disk when every strategy fails.
	FallbackToDisk bool `toml:"fallback_to_disk"`
}

type MonitorConfig struct {
	Enabled             bool     `toml:"enabled"`
	PollIntervalMinutes int      `toml:"poll_interval_minutes"`
	ScanCount           int      `toml:"scan_count"`
	LikeProbability     float64  `toml:"like_probability"`
	CommentProbability  float64  `toml:"comment_probability"`
	SilentWindows       []string `toml:"silent_windows"`
	LikeInSilent        bool     `toml:"like_in_silent"`
	CommentInSilent     bool     `toml:"comment_in_silent"`
	DedupCapacity       int      `toml:"dedup_capacity"`
}

type ScheduleConfig struct {
	Enabled bool `toml:"enabled"`
	// PostTimes are daily base times like "09:30"; each gets a random
	// jitter applied.
	PostTimes     []string `toml:"post_times"`
	JitterMinutes int      `toml:"jitter_minutes"`
	// PostProbability is the daily chance that a planned day posts.
	PostProbability float64 `toml:"post_probability"`
	Timezone        string  `toml:"timezone"`
}

type GeneratorConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	// DescribeImages enriches feed items with one-line image summaries
	// before commenting.
	DescribeImages bool `toml:"describe_images"`
}

type ImagesConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	// Count is how many images a generated post attaches.
	Count int `toml:"count"`
}

type HistoryConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
	// ContextPosts is how many past posts the generator sees when
	// writing a new one.
	ContextPosts int `toml:"context_posts"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Napcat: NapcatConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9999,
		},
		Auth: AuthConfig{
			Strategies:           []string{"napcat", "clientkey", "browser"},
			MinRefreshMinutes:    10,
			BrowserCooldownHours: 24,
			FallbackToDisk:       true,
		},
		Monitor: MonitorConfig{
			Enabled:             true,
			PollIntervalMinutes: 5,
			ScanCount:           10,
			LikeProbability:     1.0,
			CommentProbability:  0.6,
			SilentWindows:       []string{"23:30-07:00"},
			DedupCapacity:       200,
		},
		Schedule: ScheduleConfig{
			Enabled:         true,
			PostTimes:       []string{"10:00", "21:00"},
			JitterMinutes:   30,
			PostProbability: 0.7,
			Timezone:        "Asia/Shanghai",
		},
		Generator: GeneratorConfig{
			Model:          "claude-sonnet-4-20250514",
			DescribeImages: true,
		},
		Images: ImagesConfig{
			Model: "Kwai-Kolors/Kolors",
			Count: 1,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
			ContextPosts:  5,
		},
	}
}

// Validate checks the fields the bot cannot run without.
func (c *Config) Validate() error {
	if c.Account.UIN == "" {
		return fmt.Errorf("account.uin is required")
	}
	if c.Generator.APIKey == "" {
		return fmt.Errorf("generator.api_key is required")
	}
	if c.Images.Enabled && c.Images.APIKey == "" {
		return fmt.Errorf("images.api_key is required when images are enabled")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "maizone"), nil
}

// DataDir returns where runtime state (cookies, ledgers, archive) lives.
func (c *Config) DataDir() (string, error) {
	if c.Account.DataDir != "" {
		return c.Account.DataDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
