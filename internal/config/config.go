package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/presence/discord"
)

const (
	appName   = "rpcbridge"
	envPrefix = "RPCBRIDGE_"

	defaultHost              = "127.0.0.1"
	defaultPort              = 8112
	defaultPingInterval      = 25 * time.Second
	defaultPingTimeout       = 20 * time.Second
	defaultMaxMessageBytes   = 1 << 20
	defaultReconnectInterval = 10 * time.Second
	defaultNotifyTimeout     = 5000
)

// Presence host names accepted by presence.host.
const (
	HostDiscord = "discord"
	HostMPRIS   = "mpris"
	HostLastfm  = "lastfm"
)

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Presence      PresenceConfig      `koanf:"presence"`
	Discord       DiscordConfig       `koanf:"discord"`
	Lastfm        LastfmConfig        `koanf:"lastfm"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Log           LogConfig           `koanf:"log"`

	// Paths lists the files that were loaded, lowest priority first.
	Paths []string `koanf:"-"`
}

// ServerConfig holds the event endpoint settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`              // default: 127.0.0.1
	Port            int           `koanf:"port"`              // default: 8112
	PingInterval    time.Duration `koanf:"ping_interval"`     // default: 25s
	PingTimeout     time.Duration `koanf:"ping_timeout"`      // default: 20s
	MaxMessageBytes int64         `koanf:"max_message_bytes"` // default: 1 MiB
	Autostart       *bool         `koanf:"autostart"`         // start listening on launch (default: true)
}

// PresenceConfig holds the presence connection settings.
type PresenceConfig struct {
	Host              string          `koanf:"host"`               // "discord", "mpris" or "lastfm" (default: "discord")
	AutoReconnect     *bool           `koanf:"auto_reconnect"`     // connect when a track arrives (default: true)
	RetryInterval     time.Duration   `koanf:"retry_interval"`     // minimum time between attempts (default: 10s)
	ReconnectInterval time.Duration   `koanf:"reconnect_interval"` // periodic reconnect cadence (default: 10s)
	CallTimeout       time.Duration   `koanf:"call_timeout"`       // per host call (default: 5s)
	Assets            presence.Assets `koanf:"assets"`
}

// DiscordConfig holds the Discord application settings.
type DiscordConfig struct {
	ClientID string `koanf:"client_id"`
}

// LastfmConfig holds Last.fm now-playing credentials.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
}

// NotificationsConfig controls desktop notifications on track change.
type NotificationsConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
	Timeout int   `koanf:"timeout"` // milliseconds (default: 5000)
}

// LogConfig controls diagnostics output.
type LogConfig struct {
	Level string `koanf:"level"` // "debug", "info", "warn" or "error" (default: "info")
}

// envKeys lists the keys that can be overridden from the environment, as
// RPCBRIDGE_ followed by the upper-cased key with dots replaced by
// underscores (RPCBRIDGE_SERVER_PORT for server.port).
var envKeys = []string{
	"server.host",
	"server.port",
	"server.ping_interval",
	"server.ping_timeout",
	"server.max_message_bytes",
	"server.autostart",
	"presence.host",
	"presence.auto_reconnect",
	"presence.retry_interval",
	"presence.reconnect_interval",
	"presence.call_timeout",
	"discord.client_id",
	"lastfm.api_key",
	"lastfm.api_secret",
	"lastfm.session_key",
	"notifications.enabled",
	"notifications.timeout",
	"log.level",
}

// Load reads the configuration files, then .env and the environment.
// explicitPath, when set, must exist and has the highest file priority.
func Load(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	configPaths := getConfigPaths()
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		configPaths = append(configPaths, explicitPath)
	}

	var loaded []string
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			loaded = append(loaded, path)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(envName(key)); ok {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("%s: %w", envName(key), err)
			}
		}
	}

	cfg := &Config{
		Presence: PresenceConfig{Assets: presence.DefaultAssets()},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.Paths = loaded

	cfg.Presence.Host = strings.ToLower(strings.TrimSpace(cfg.Presence.Host))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Presence.Host {
	case "", HostDiscord, HostMPRIS, HostLastfm:
	default:
		return fmt.Errorf("presence.host: unknown host %q", c.Presence.Host)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if d := c.Presence.RetryInterval; d > 0 && d < presence.MinRetryInterval {
		return fmt.Errorf("presence.retry_interval: %s is below the %s minimum", d, presence.MinRetryInterval)
	}
	if d := c.Presence.ReconnectInterval; d > 0 && d < presence.MinRetryInterval {
		return fmt.Errorf("presence.reconnect_interval: %s is below the %s minimum", d, presence.MinRetryInterval)
	}
	return nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/rpcbridge/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd)
		"config.toml",
	}
}

func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// GetServerConfig returns the server configuration with defaults applied.
func (c *Config) GetServerConfig() ServerConfig {
	cfg := c.Server

	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if cfg.Autostart == nil {
		cfg.Autostart = boolPtr(true)
	}

	return cfg
}

// ServerAddr returns host:port for the listener.
func (c *Config) ServerAddr() string {
	s := c.GetServerConfig()
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GetPresenceConfig returns the presence configuration with defaults applied.
func (c *Config) GetPresenceConfig() PresenceConfig {
	cfg := c.Presence

	if cfg.Host == "" {
		cfg.Host = HostDiscord
	}
	if cfg.AutoReconnect == nil {
		cfg.AutoReconnect = boolPtr(true)
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = presence.DefaultRetryInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = presence.DefaultCallTimeout
	}
	if len(cfg.Assets.Buttons) > 2 {
		cfg.Assets.Buttons = cfg.Assets.Buttons[:2]
	}

	return cfg
}

// DiscordClientID returns the configured application id or the default one.
func (c *Config) DiscordClientID() string {
	if c.Discord.ClientID == "" {
		return discord.DefaultClientID
	}
	return c.Discord.ClientID
}

// HasLastfmConfig returns true if Last.fm now-playing is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != "" && c.Lastfm.SessionKey != ""
}

// NotificationsEnabled reports whether track notifications are shown.
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications.Enabled == nil || *c.Notifications.Enabled
}

// NotificationTimeout returns the notification timeout in milliseconds.
func (c *Config) NotificationTimeout() int {
	if c.Notifications.Timeout <= 0 {
		return defaultNotifyTimeout
	}
	return c.Notifications.Timeout
}

// LogLevel returns the configured level name, "info" by default.
func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Log.Level)
}

func boolPtr(b bool) *bool { return &b }
