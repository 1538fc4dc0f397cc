package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Journey  JourneyConfig
	Database DatabaseConfig
	Prefs    PrefsConfig
	Log      LogConfig
	Device   DeviceConfig
	Sandbox  SandboxConfig
}

// JourneyConfig points the client at a journey service.
type JourneyConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	ClientID string `mapstructure:"client_id"`
	Timeout  time.Duration
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

type PrefsConfig struct {
	Namespace string
}

// LogConfig holds the log file and level. The TUI owns the terminal, so logs
// always go to a file.
type LogConfig struct {
	Path  string
	Level string
}

// DeviceConfig holds settings for the on-device authenticator.
type DeviceConfig struct {
	SeedDir string `mapstructure:"seed_dir"`
	Origin  string
	RPID    string `mapstructure:"rp_id"`
}

// SandboxConfig holds settings for the local journey sandbox server.
type SandboxConfig struct {
	Addr        string
	Script      string
	RedisAddr   string        `mapstructure:"redis_addr"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "idojourney")
}

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "idojourney")
}

// Load reads configuration from file and env. Env var overrides use prefix IDOJOURNEY_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("journey.base_url", "http://localhost:8085")
	v.SetDefault("journey.client_id", "demo-client")
	v.SetDefault("journey.timeout", 30*time.Second)
	v.SetDefault("database.path", filepath.Join(dataDir(), "idojourney.db"))
	v.SetDefault("prefs.namespace", "idojourney.prefs")
	v.SetDefault("log.path", filepath.Join(os.Getenv("HOME"), ".local", "state", "idojourney", "idojourney.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("device.seed_dir", configDir())
	v.SetDefault("device.origin", "http://localhost:8085")
	v.SetDefault("device.rp_id", "localhost")
	v.SetDefault("sandbox.addr", ":8085")
	v.SetDefault("sandbox.script", "")
	v.SetDefault("sandbox.redis_addr", "")
	v.SetDefault("sandbox.token_secret", "")
	v.SetDefault("sandbox.token_ttl", 10*time.Minute)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("IDOJOURNEY_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("IDOJOURNEY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present; a missing file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the client-facing parts of cfg to disk, creating the config
// directory if needed, and returns the path written. Sandbox secrets are
// never written.
func Save(cfg Config) (string, error) {
	path := os.Getenv("IDOJOURNEY_CONFIG")
	if path == "" {
		path = filepath.Join(configDir(), "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("journey.base_url", cfg.Journey.BaseURL)
	v.Set("journey.client_id", cfg.Journey.ClientID)
	v.Set("journey.timeout", cfg.Journey.Timeout.String())
	v.Set("database.path", cfg.Database.Path)
	v.Set("prefs.namespace", cfg.Prefs.Namespace)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("device.seed_dir", cfg.Device.SeedDir)
	v.Set("device.origin", cfg.Device.Origin)
	v.Set("device.rp_id", cfg.Device.RPID)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
