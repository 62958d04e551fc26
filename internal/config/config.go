// Package config loads tcgsim configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TCGSIM_SERVER_HTTP_ADDRESS.
const EnvPrefix = "TCGSIM"

type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Database   DatabaseConfig   `mapstructure:"database"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Verbosity string `mapstructure:"verbosity"`
}

type ServerConfig struct {
	HTTPAddress       string `mapstructure:"http_address"`
	GRPCAddress       string `mapstructure:"grpc_address"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	ReplayDir         string `mapstructure:"replay_dir"`
	StaticDir         string `mapstructure:"static_dir"`
}

type SimulationConfig struct {
	Players       int   `mapstructure:"players"`
	Lands         int   `mapstructure:"lands"`
	Nonlands      int   `mapstructure:"nonlands"`
	GamesPerTrial int   `mapstructure:"games_per_trial"`
	Workers       int   `mapstructure:"workers"`
	Seed          int64 `mapstructure:"seed"`
	ChangeSize    int   `mapstructure:"change_size"`
	ConsensusWins int   `mapstructure:"consensus_wins"`
	MaxIterations int   `mapstructure:"max_iterations"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.verbosity", "normal")

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.grpc_address", ":9090")
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("server.replay_dir", "data/replays")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("simulation.players", 2)
	v.SetDefault("simulation.lands", 28)
	v.SetDefault("simulation.nonlands", 32)
	v.SetDefault("simulation.games_per_trial", 1000)
	v.SetDefault("simulation.workers", runtime.NumCPU())
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.change_size", 1)
	v.SetDefault("simulation.consensus_wins", 3)
	v.SetDefault("simulation.max_iterations", 100)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
}

// Load reads path (YAML) over the defaults and applies .env and TCGSIM_*
// environment overrides. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("failed to read config %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := ParseVerbosity(c.Logging.Verbosity); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	s := c.Simulation
	if s.Players < 2 {
		return fmt.Errorf("simulation.players must be at least 2, got %d", s.Players)
	}
	if s.Lands < 0 || s.Nonlands < 0 || s.Lands+s.Nonlands == 0 {
		return fmt.Errorf("simulation deck %d/%d is empty or negative", s.Lands, s.Nonlands)
	}
	if s.GamesPerTrial <= 0 {
		return fmt.Errorf("simulation.games_per_trial must be positive, got %d", s.GamesPerTrial)
	}
	if s.ChangeSize <= 0 {
		return fmt.Errorf("simulation.change_size must be positive, got %d", s.ChangeSize)
	}
	if s.ConsensusWins <= 0 {
		return fmt.Errorf("simulation.consensus_wins must be positive, got %d", s.ConsensusWins)
	}

	switch strings.ToLower(c.Database.Driver) {
	case "memory", "":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
