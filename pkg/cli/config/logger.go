package config

import (
	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

// Logger holds the command line logger settings. They configure the
// bootstrap logger and act as defaults for the configuration file's
// logging section.
type Logger struct {
	Level string
	JSON  bool
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (trace, debug, info, warn, error, fatal)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("GIT_WATCHER_LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:        "log-json",
			Usage:       "Output logs in JSON format",
			Value:       false,
			Destination: &c.JSON,
			Sources:     cli.EnvVars("GIT_WATCHER_LOG_JSON"),
		},
	}
}

// Merge returns cfg with the flag values filled in where cfg is silent
func (c *Logger) Merge(cfg *logging.Config) logging.Config {
	var merged logging.Config
	if cfg != nil {
		merged = *cfg
	}
	if merged.Level == "" {
		merged.Level = c.Level
	}
	if merged.Format == "" && c.JSON {
		merged.Format = string(logging.FormatJSON)
	}
	return merged
}

// Configure builds a console-only logger from the flags, tagged with the
// application name
func (c *Logger) Configure(opts ...logging.Option) (*logging.Logger, error) {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return nil, err
	}
	return logging.New(c.Merge(nil), types.AppName, opts...)
}
