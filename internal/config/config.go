// Package config loads the formscript service configuration from YAML with
// FORMSCRIPT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formscript/pkg/script"
	"github.com/goliatone/go-formscript/pkg/visibility"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMSCRIPT_"

// Config is the service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Script  ScriptConfig  `yaml:"script"`
	Rules   RulesConfig   `yaml:"rules"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

type ScriptConfig struct {
	Budget           time.Duration    `yaml:"budget"`
	MaxCallStackSize int              `yaml:"maxCallStackSize"`
	DefaultEventMode script.EventMode `yaml:"defaultEventMode"`
}

type RulesConfig struct {
	Dialect visibility.Dialect `yaml:"dialect"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			DSN: "file:formscript.db?_pragma=busy_timeout(5000)",
		},
		Script: ScriptConfig{
			Budget:           script.DefaultBudget,
			MaxCallStackSize: 512,
			DefaultEventMode: script.DefaultEventMode,
		},
		Rules: RulesConfig{
			Dialect: visibility.DialectExpr,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":       &cfg.Server.Addr,
		"STORE_DSN":  &cfg.Store.DSN,
		"LOG_LEVEL":  &cfg.Logging.Level,
		"LOG_FORMAT": &cfg.Logging.Format,
	}
	for name, target := range strs {
		if value, ok := lookup(EnvPrefix + name); ok {
			*target = strings.TrimSpace(value)
		}
	}

	durations := map[string]*time.Duration{
		"SCRIPT_BUDGET":    &cfg.Script.Budget,
		"SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
	}
	for name, target := range durations {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*target = parsed
	}

	if value, ok := lookup(EnvPrefix + "EVENT_MODE"); ok {
		mode, err := script.ParseEventMode(value)
		if err != nil {
			return fmt.Errorf("config: %sEVENT_MODE: %w", EnvPrefix, err)
		}
		cfg.Script.DefaultEventMode = mode
	}
	if value, ok := lookup(EnvPrefix + "RULE_DIALECT"); ok {
		dialect, err := visibility.ParseDialect(value)
		if err != nil {
			return fmt.Errorf("config: %sRULE_DIALECT: %w", EnvPrefix, err)
		}
		cfg.Rules.Dialect = dialect
	}
	return nil
}

// Validate checks the configuration for values the service cannot use.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Script.Budget < 0 {
		errs = append(errs, errors.New("script.budget must not be negative"))
	}
	if !c.Script.DefaultEventMode.Valid() {
		errs = append(errs, fmt.Errorf("script.defaultEventMode %q is unknown", c.Script.DefaultEventMode))
	}
	if _, err := visibility.ParseDialect(string(c.Rules.Dialect)); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is unknown", c.Logging.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}
