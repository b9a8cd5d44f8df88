package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port          int           `mapstructure:"port"`
	DBPath        string        `mapstructure:"db_path"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	RoomTTL       time.Duration `mapstructure:"room_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	LogLevel      string        `mapstructure:"log_level"`
}

// Load reads config.yaml when present, with MURAL_* environment variables
// taking precedence, and falls back to defaults otherwise.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("mural")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "./data/mural.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("room_ttl", "30m")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Err(err).Msg("no config file found, using defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
