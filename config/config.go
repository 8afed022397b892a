// Package config resolves the server configuration from defaults, an
// optional config file, ARENA_* environment variables and command line
// overrides, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/wricardo/arena-relay/game/world"
)

const EnvPrefix = "ARENA"

// Keys double as command line flag names
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyPublicURL      = "public-url"
	KeyWorldWidth     = "world-width"
	KeyWorldHeight    = "world-height"
	KeySpawnInterval  = "spawn-interval"
	KeyMaxPlayers     = "max-players"
	KeyMaxMessageSize = "max-message-size"
	KeyAllowedOrigins = "allowed-origins"
	KeyAdminToken     = "admin-token"
	KeyConsole        = "console"
	KeyShutdownGrace  = "shutdown-grace"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyNgrok          = "ngrok"
	KeyNgrokAuth      = "ngrok-auth"
	KeyNgrokDomain    = "ngrok-domain"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	PublicURL      string        `mapstructure:"public-url"`
	WorldWidth     float64       `mapstructure:"world-width"`
	WorldHeight    float64       `mapstructure:"world-height"`
	SpawnInterval  time.Duration `mapstructure:"spawn-interval"`
	MaxPlayers     int           `mapstructure:"max-players"`
	MaxMessageSize int64         `mapstructure:"max-message-size"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
	AdminToken     string        `mapstructure:"admin-token"`
	Console        bool          `mapstructure:"console"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown-grace"`
	LogLevel       string        `mapstructure:"log-level"`
	LogFormat      string        `mapstructure:"log-format"`
	Ngrok          bool          `mapstructure:"ngrok"`
	NgrokAuth      string        `mapstructure:"ngrok-auth"`
	NgrokDomain    string        `mapstructure:"ngrok-domain"`
}

// Default returns the configuration used when nothing else is set
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		WorldWidth:     world.DefaultWidth,
		WorldHeight:    world.DefaultHeight,
		SpawnInterval:  5 * time.Second,
		MaxPlayers:     100,
		MaxMessageSize: 64 * 1024,
		AllowedOrigins: []string{"*"},
		Console:        true,
		ShutdownGrace:  time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load resolves the configuration. file may be empty. overrides holds values
// of explicitly set command line flags keyed by flag name.
func Load(file string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault(KeyHost, def.Host)
	v.SetDefault(KeyPort, def.Port)
	v.SetDefault(KeyPublicURL, def.PublicURL)
	v.SetDefault(KeyWorldWidth, def.WorldWidth)
	v.SetDefault(KeyWorldHeight, def.WorldHeight)
	v.SetDefault(KeySpawnInterval, def.SpawnInterval)
	v.SetDefault(KeyMaxPlayers, def.MaxPlayers)
	v.SetDefault(KeyMaxMessageSize, def.MaxMessageSize)
	v.SetDefault(KeyAllowedOrigins, def.AllowedOrigins)
	v.SetDefault(KeyAdminToken, def.AdminToken)
	v.SetDefault(KeyConsole, def.Console)
	v.SetDefault(KeyShutdownGrace, def.ShutdownGrace)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyLogFormat, def.LogFormat)
	v.SetDefault(KeyNgrok, def.Ngrok)
	v.SetDefault(KeyNgrokAuth, def.NgrokAuth)
	v.SetDefault(KeyNgrokDomain, def.NgrokDomain)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList flattens comma separated entries and drops blanks
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports the first invalid setting, wrapping ErrInvalidConfig
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1-65535 inclusive, got %d", ErrInvalidConfig, c.Port)
	}
	if err := c.Bounds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.SpawnInterval <= 0 {
		return fmt.Errorf("%w: spawn interval must be positive, got %s", ErrInvalidConfig, c.SpawnInterval)
	}
	if c.MaxPlayers < 0 {
		return fmt.Errorf("%w: max players must not be negative", ErrInvalidConfig)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("%w: max message size must not be negative", ErrInvalidConfig)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("%w: shutdown grace must not be negative", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format must be console or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LocalURL is the base URL local tools use to reach the HTTP API
func (c *Config) LocalURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

func (c *Config) Bounds() world.Bounds {
	return world.NewBounds(c.WorldWidth, c.WorldHeight)
}
