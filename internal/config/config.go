// Package config loads the bot's YAML configuration with environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/catchbot/core/config"
	coredatabase "github.com/m3rciful/catchbot/core/database"
)

// DefaultTimezone is used for dates typed by users when none is configured.
const DefaultTimezone = "Europe/Moscow"

// BotConfig holds settings specific to the registry bot.
type BotConfig struct {
	// Timezone names the IANA zone dates are entered and shown in.
	Timezone string `yaml:"timezone" envconfig:"BOT_TIMEZONE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Bot      BotConfig           `yaml:"bot"`

	location *time.Location
}

// CoreConfig exposes the shared part of the configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Load reads the configuration at path and validates it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if cfg.Telegram.Username == "" {
		return fmt.Errorf("telegram.username is required to build invite links")
	}
	tz := strings.TrimSpace(cfg.Bot.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid bot.timezone %q: %w", cfg.Bot.Timezone, err)
	}
	cfg.Bot.Timezone = tz
	cfg.location = loc

	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	return nil
}
