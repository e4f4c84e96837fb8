package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Clients poll between 500ms and 5s; the stream cadence is clamped to
// the same range.
const (
	minPollInterval = 500 * time.Millisecond
	maxPollInterval = 5 * time.Second
)

// Duration accepts "2s"-style values from both yaml and env vars.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

type Config struct {
	Bind           string   `yaml:"bind" env:"BTOPQ_BIND"`
	Port           int      `yaml:"port" env:"BTOPQ_PORT"`
	LogLevel       string   `yaml:"log_level" env:"BTOPQ_LOG_LEVEL"`
	PollInterval   Duration `yaml:"poll_interval" env:"BTOPQ_POLL_INTERVAL"`
	CommandTimeout Duration `yaml:"command_timeout" env:"BTOPQ_COMMAND_TIMEOUT"`
	ProcessLimit   int      `yaml:"process_limit" env:"BTOPQ_PROCESS_LIMIT"`
	EnvRedact      []string `yaml:"env_redact" env:"BTOPQ_ENV_REDACT" envSeparator:","`
	AllowedOrigin  string   `yaml:"allowed_origin" env:"BTOPQ_ALLOWED_ORIGIN"`
}

func defaultConfig() *Config {
	return &Config{
		Bind:           "127.0.0.1",
		Port:           3001,
		LogLevel:       "info",
		PollInterval:   Duration(time.Second),
		CommandTimeout: Duration(5 * time.Second),
		ProcessLimit:   defaultProcessLimit,
		AllowedOrigin:  "*",
	}
}

// loadConfig reads the yaml file at path (a missing file leaves the
// defaults), then applies BTOPQ_* environment overrides.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	if cfg.ProcessLimit <= 0 {
		cfg.ProcessLimit = defaultProcessLimit
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = Duration(5 * time.Second)
	}
	if cfg.PollInterval.Std() < minPollInterval {
		cfg.PollInterval = Duration(minPollInterval)
	}
	if cfg.PollInterval.Std() > maxPollInterval {
		cfg.PollInterval = Duration(maxPollInterval)
	}

	return cfg, nil
}
