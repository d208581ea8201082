package config

import (
	"flag"
	"io"
)

// CLIFlags holds command-line overrides. A nil field means the flag
// was not provided and the ENV/YAML/default value stands.
type CLIFlags struct {
	Port       *string
	LogLevel   *string
	NatsURL    *string
	OracleURL  *string
	ConfigPath *string
}

// ParseFlags parses command-line arguments into CLIFlags.
// Both long and shorthand forms are accepted (--port / -p, --config / -c).
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("shatteredmoon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	port := fs.String("port", "", "HTTP server port")
	fs.StringVar(port, "p", "", "HTTP server port (shorthand)")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	oracleURL := fs.String("oracle-url", "", "decomposition oracle URL")
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port", "p":
			flags.Port = port
		case "log-level":
			flags.LogLevel = logLevel
		case "nats-url":
			flags.NatsURL = natsURL
		case "oracle-url":
			flags.OracleURL = oracleURL
		case "config", "c":
			flags.ConfigPath = configPath
		}
	})
	return flags, nil
}

// LoadWithCLI loads configuration with the full hierarchy:
// defaults < YAML < ENV < CLI flags. It returns the resolved YAML path.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		return nil, yamlPath, err
	}

	applyCLI(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, yamlPath, err
	}
	return cfg, yamlPath, nil
}

// applyCLI overlays non-nil CLI flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.OracleURL != nil {
		cfg.Oracle.URL = *flags.OracleURL
	}
}
