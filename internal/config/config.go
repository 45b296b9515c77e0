package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for CareTrack
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	RateLimit    int    `mapstructure:"rate_limit"` // mutations per second per client
}

// StorageConfig holds record store settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	Backend    string `mapstructure:"backend"` // sqlite, file or rest
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
	FilePath   string `mapstructure:"file_path"`
	RestURL    string `mapstructure:"rest_url"`
}

// ReminderConfig holds reminder poller settings
type ReminderConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TickSeconds     int  `mapstructure:"tick_seconds"`
	DebounceSeconds int  `mapstructure:"debounce_seconds"`
}

// ChannelsConfig holds notification channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
}

// TelegramConfig holds Telegram sink settings
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// DiscordConfig holds Discord sink settings
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	Password     string   `mapstructure:"password"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

var clockTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidClockTime reports whether s is a zero-padded HH:MM clock time.
func ValidClockTime(s string) bool {
	return clockTimeRe.MatchString(s)
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "caretrack.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("storage.file_path", filepath.Join(dataDir, "records.json"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "caretrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (CARETRACK_SERVER_PORT, CARETRACK_STORAGE_BACKEND, etc.)
	v.SetEnvPrefix("CARETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.rate_limit", 10)

	// Every env-overridable key needs a default: AutomaticEnv only
	// surfaces CARETRACK_* values during Unmarshal for keys viper
	// already knows about
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.rest_url", "")

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.tick_seconds", 5)
	v.SetDefault("reminder.debounce_seconds", 60)

	v.SetDefault("channels.telegram.enabled", false)
	v.SetDefault("channels.telegram.bot_token", "")
	v.SetDefault("channels.telegram.chat_id", 0)
	v.SetDefault("channels.discord.enabled", false)
	v.SetDefault("channels.discord.token", "")
	v.SetDefault("channels.discord.channel_id", "")

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.password", "")
	v.SetDefault("security.allow_origins", []string{"*"})
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "caretrack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "caretrack")
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "sqlite", "file":
	case "rest":
		if cfg.Storage.RestURL == "" {
			return fmt.Errorf("storage.rest_url is required for the rest backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	if cfg.Reminder.TickSeconds <= 0 {
		cfg.Reminder.TickSeconds = 5
	}
	if cfg.Reminder.DebounceSeconds <= 0 {
		cfg.Reminder.DebounceSeconds = 60
	}

	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateSecret(32)
	}

	return nil
}

func generateSecret(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
