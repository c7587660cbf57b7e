package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultGofileAPIBase = "https://api.gofile.io"
	DefaultGofileServer  = "store1"
)

// Environment variables overriding the file. Credentials and chat ids are
// deployment secrets and normally arrive this way rather than on disk.
const (
	EnvConfigPath   = "UPLINK_CONFIG"
	EnvBotToken     = "UPLINK_BOT_TOKEN"
	EnvBackendToken = "UPLINK_BACKEND_TOKEN"
	EnvRelayChatID  = "UPLINK_RELAY_CHAT_ID"
	EnvAdminChatID  = "UPLINK_ADMIN_CHAT_ID"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Relay    RelayConfig    `toml:"relay"`
	Gofile   GofileConfig   `toml:"gofile"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type TelegramConfig struct {
	// BotToken authenticates the public frontend identity.
	BotToken string `toml:"bot_token" validate:"required"`
	// BackendToken authenticates the privileged backend identity.
	BackendToken string `toml:"backend_token" validate:"required"`
	// BackendAPIEndpoint points the backend identity at a self-hosted Bot API
	// server with raised file limits. Empty means the public endpoint.
	BackendAPIEndpoint string `toml:"backend_api_endpoint" validate:"omitempty,url"`
	// RelayChatID is the chat both identities share for forwarded copies and
	// envelopes.
	RelayChatID int64 `toml:"relay_chat_id" validate:"required"`
	// AdminChatID receives operational notifications. Zero disables them.
	AdminChatID int64 `toml:"admin_chat_id"`
}

type RelayConfig struct {
	JobDeadline Duration `toml:"job_deadline"`
	SweepEvery  Duration `toml:"sweep_every"`
	EvictGrace  Duration `toml:"evict_grace"`
	StagingDir  string   `toml:"staging_dir"`
}

type GofileConfig struct {
	APIBase       string   `toml:"api_base" validate:"required,url"`
	DefaultServer string   `toml:"default_server" validate:"required"`
	UploadTimeout Duration `toml:"upload_timeout"`
}

// Duration parses TOML values like "10m" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads cfg from path, applies environment overrides, and validates the
// result. A missing file is fine as long as the environment fills in the
// required credentials.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Relay: RelayConfig{
			JobDeadline: Duration(10 * time.Minute),
			SweepEvery:  Duration(time.Minute),
			EvictGrace:  Duration(2 * time.Minute),
		},
		Gofile: GofileConfig{
			APIBase:       DefaultGofileAPIBase,
			DefaultServer: DefaultGofileServer,
			UploadTimeout: Duration(30 * time.Minute),
		},
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvBotToken); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv(EnvBackendToken); v != "" {
		cfg.Telegram.BackendToken = v
	}
	if v := os.Getenv(EnvRelayChatID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRelayChatID, err)
		}
		cfg.Telegram.RelayChatID = id
	}
	if v := os.Getenv(EnvAdminChatID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAdminChatID, err)
		}
		cfg.Telegram.AdminChatID = id
	}
	return nil
}
