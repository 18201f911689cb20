package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLIFlags carries command line overrides. A nil field means the flag
// was not set on the command line.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	Backend    *string
	RedisURL   *string
	NATSURL    *string
}

// ParseFlags parses command line arguments into CLIFlags.
// Unknown flags are an error.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("baton", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", "", "path to the YAML config file")
	fs.StringVar(configPath, "c", "", "shorthand for -config")
	port := fs.String("port", "", "HTTP listen port")
	fs.StringVar(port, "p", "", "shorthand for -port")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	backend := fs.String("backend", "", "store backend: memory, redis, nats")
	redisURL := fs.String("redis-url", "", "redis connection URL")
	natsURL := fs.String("nats-url", "", "nats connection URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = configPath
		case "port", "p":
			flags.Port = port
		case "log-level":
			flags.LogLevel = logLevel
		case "backend":
			flags.Backend = backend
		case "redis-url":
			flags.RedisURL = redisURL
		case "nats-url":
			flags.NATSURL = natsURL
		}
	})

	return flags, nil
}

// applyCLI overlays set flags onto cfg. Unset flags change nothing.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.Backend != nil {
		cfg.Store.Backend = *flags.Backend
	}
	if flags.RedisURL != nil {
		cfg.Store.RedisURL = *flags.RedisURL
	}
	if flags.NATSURL != nil {
		cfg.Store.NATSURL = *flags.NATSURL
	}
}

// LoadWithCLI returns a Config using the hierarchy:
// defaults < YAML < ENV < CLI flags. The second return value is the
// YAML path that was consulted.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if v := os.Getenv("BATON_CONFIG"); v != "" {
		path = v
	}
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, path, nil
}
