// Package config loads the service settings from an optional YAML file and
// BIOSCOUT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BIOSCOUT_UPSTREAM_URL.
const EnvPrefix = "BIOSCOUT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Prefs     PrefsConfig     `mapstructure:"prefs"`
	Meili     MeiliConfig     `mapstructure:"meili"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Gazetteer GazetteerConfig `mapstructure:"gazetteer"`
	Log       LogConfig       `mapstructure:"log"`
	View      ViewConfig      `mapstructure:"view"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"alloworigins"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	StatsTTL time.Duration `mapstructure:"statsttl"`
}

// PrefsConfig selects the preference backend: memory, sqlite or postgres.
type PrefsConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// MeiliConfig enables the full-text index when URL is set.
type MeiliConfig struct {
	URL   string `mapstructure:"url"`
	Key   string `mapstructure:"key"`
	Index string `mapstructure:"index"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// GazetteerConfig points at an optional YAML place table.
type GazetteerConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ViewConfig struct {
	PageSize  int `mapstructure:"pagesize"`
	ListLimit int `mapstructure:"listlimit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.alloworigins", []string{})
	v.SetDefault("upstream.url", "http://localhost:5000")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("cache.ttl", 2*time.Minute)
	v.SetDefault("cache.statsttl", 30*time.Second)
	v.SetDefault("prefs.driver", "sqlite")
	v.SetDefault("prefs.dsn", filepath.Join("data", "prefs.db"))
	v.SetDefault("meili.url", "")
	v.SetDefault("meili.key", "")
	v.SetDefault("meili.index", "observations")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.ttl", 30*24*time.Hour)
	v.SetDefault("gazetteer.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("view.pagesize", 12)
	v.SetDefault("view.listlimit", 50)
}

// Load reads path when given, otherwise config.yaml from ".", "./config" or
// "$HOME/.bioscout" if present. Environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".bioscout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if u, err := url.Parse(c.Upstream.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.url %q is not an absolute URL", c.Upstream.URL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	switch c.Prefs.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Prefs.DSN == "" {
			errs = append(errs, fmt.Errorf("prefs.dsn is required for driver %q", c.Prefs.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("prefs.driver %q must be memory, sqlite or postgres", c.Prefs.Driver))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	if c.View.PageSize <= 0 || c.View.ListLimit <= 0 {
		errs = append(errs, errors.New("view.pagesize and view.listlimit must be positive"))
	}
	return errors.Join(errs...)
}

// SearchEnabled reports whether a Meilisearch endpoint is configured.
func (c *Config) SearchEnabled() bool { return c.Meili.URL != "" }
