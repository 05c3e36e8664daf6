package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Mailbox       Mailbox       `yaml:"mailbox"`
	Newsletters   Newsletters   `yaml:"newsletters"`
	Summarization Summarization `yaml:"summarization"`
	Backfill      Backfill      `yaml:"backfill"`
	Notification  Notification  `yaml:"notification"`
	Archive       Archive       `yaml:"archive"`
	Server        Server        `yaml:"server"`
	Timezone      string        `yaml:"timezone"`
}

type Mailbox struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Folder      string `yaml:"folder"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

type Newsletters struct {
	Senders    []string `yaml:"senders"`
	SendersEnv string   `yaml:"senders_env"`
}

type Summarization struct {
	Provider               string `yaml:"provider"`
	GeminiModel            string `yaml:"gemini_model"`
	GeminiAPIKeyEnv        string `yaml:"gemini_api_key_env"`
	OpenAIModel            string `yaml:"openai_model"`
	OpenAIAPIKeyEnv        string `yaml:"openai_api_key_env"`
	MaxTokens              int    `yaml:"max_tokens"`
	RequestIntervalSeconds int    `yaml:"request_interval_seconds"`
}

type Backfill struct {
	DayIntervalSeconds int `yaml:"day_interval_seconds"`
}

type Notification struct {
	Enabled      bool   `yaml:"enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	RecipientEnv string `yaml:"recipient_env"`
}

type Archive struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for newsdigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsdigest")
}

// DataDir returns the XDG data directory for newsdigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsdigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsdigest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsdigest init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Mailbox: Mailbox{
			Host:        "imap.gmail.com",
			Port:        993,
			Folder:      "INBOX",
			UsernameEnv: "EMAIL_ADDRESS",
			PasswordEnv: "EMAIL_APP_PASSWORD",
		},
		Newsletters: Newsletters{
			SendersEnv: "NEWSLETTER_SENDERS",
		},
		Summarization: Summarization{
			Provider:               "gemini",
			GeminiModel:            "gemini-2.5-flash",
			GeminiAPIKeyEnv:        "GEMINI_API_KEY",
			OpenAIModel:            "gpt-4o-mini",
			OpenAIAPIKeyEnv:        "OPENAI_API_KEY",
			MaxTokens:              2048,
			RequestIntervalSeconds: 6,
		},
		Backfill: Backfill{DayIntervalSeconds: 5},
		Notification: Notification{
			SMTPHost:     "smtp.gmail.com",
			SMTPPort:     587,
			RecipientEnv: "NOTIFICATION_EMAIL",
		},
		Server:   Server{Port: 8000},
		Timezone: "Asia/Kolkata",
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Archive.DataDir != "" {
		return c.Archive.DataDir
	}
	return DataDir()
}

// SenderList returns the allowed newsletter senders. A comma-separated
// environment variable overrides the config file list.
func (c *Config) SenderList() []string {
	if c.Newsletters.SendersEnv != "" {
		if raw := os.Getenv(c.Newsletters.SendersEnv); raw != "" {
			var senders []string
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					senders = append(senders, s)
				}
			}
			return senders
		}
	}
	return c.Newsletters.Senders
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
