// Package config loads runtime settings through viper, the way the donor
// CLI (beads) loads its repo-local config.yaml: a typed struct populated
// from defaults, an optional config file, and environment variables, in
// that precedence order.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Client holds the settings internal/sync and cmd/client need.
type Client struct {
	ServerURL string `mapstructure:"server_url"`
	DeviceID  string `mapstructure:"device_id"`
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`
}

// Server holds the settings internal/server and cmd/server need.
type Server struct {
	ListenAddr string `mapstructure:"listen_addr"`
	DBPath     string `mapstructure:"db_path"`
	LogLevel   string `mapstructure:"log_level"`
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("notesync")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/notesync")
	}
	v.SetEnvPrefix("NOTESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadClient reads client settings from configPath (if non-empty) or the
// default search path, falling back to defaults when no file exists.
func LoadClient(configPath string) (*Client, error) {
	v := newViper(configPath)
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("device_id", "")
	v.SetDefault("data_dir", ".")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read client config: %w", err)
		}
	}

	var c Client
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode client config: %w", err)
	}
	return &c, nil
}

// LoadServer reads server settings the same way.
func LoadServer(configPath string) (*Server, error) {
	v := newViper(configPath)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "notesync-server.db")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read server config: %w", err)
		}
	}

	var s Server
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode server config: %w", err)
	}
	return &s, nil
}
