// Package config reads the service configuration from a file and the
// environment and sets up logging.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/ohowland/cgc_reserve/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_reserve/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Server  Server             `yaml:"server" json:"server"`
	Log     Log                `yaml:"log" json:"log"`
	Model   Model              `yaml:"model" json:"model"`
	Mongo   mongodb.Config     `yaml:"mongo" json:"mongo"`
	NATS    natshandler.Config `yaml:"nats" json:"nats"`
	MQTT    mqtt.Config        `yaml:"mqtt" json:"mqtt"`
	Archive sqldb.Config       `yaml:"archive" json:"archive"`
}

type Server struct {
	Addr string `yaml:"addr" json:"addr" env:"RESERVE_ADDR" env-default:":8080"`
}

type Log struct {
	Level  string `yaml:"level" json:"level" env:"RESERVE_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" json:"format" env:"RESERVE_LOG_FORMAT" env-default:"console"`
}

type Model struct {
	Snapshots     int     `yaml:"snapshots" json:"snapshots" env:"RESERVE_SNAPSHOTS" env-default:"48"`
	Method        string  `yaml:"method" json:"method" env:"RESERVE_SOLVER_METHOD" env-default:"bounded"`
	Tolerance     float64 `yaml:"tolerance" json:"tolerance" env:"RESERVE_SOLVER_TOLERANCE" env-default:"1e-9"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations" env:"RESERVE_SOLVER_MAX_ITERATIONS"`
}

// Load reads path, or only the environment when path is empty.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.Model.Options(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Options returns the solver options of m.
func (m Model) Options() (optimize.Options, error) {
	method, err := optimize.ParseMethod(m.Method)
	if err != nil {
		return optimize.Options{}, err
	}
	return optimize.Options{
		Method:        method,
		Tolerance:     m.Tolerance,
		MaxIterations: m.MaxIterations,
	}, nil
}

// Defaults returns the default settings with the configured horizon.
func (m Model) Defaults() settings.Settings {
	s := settings.Default()
	if m.Snapshots > 0 {
		s.Snapshots = m.Snapshots
	}
	return s
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(l Log) error {
	return setupLogging(l, os.Stderr)
}

func setupLogging(l Log, w io.Writer) error {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	switch l.Format {
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	default:
		return fmt.Errorf("config: unknown log format %q", l.Format)
	}
	return nil
}

// LoadSettings reads a settings file over the defaults.
func LoadSettings(path string) (settings.Settings, error) {
	s := settings.Default()
	if err := cleanenv.ReadConfig(path, &s); err != nil {
		return settings.Settings{}, fmt.Errorf("config: settings: %w", err)
	}
	return s, nil
}
