package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// Config describes the sinks of a logger. Level and Format are defaults
// for sinks that do not set their own.
type Config struct {
	Level   string         `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Format  string         `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	Console *ConsoleConfig `json:"console,omitempty" yaml:"console,omitempty" toml:"console,omitempty"`
	File    *FileConfig    `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
}

// ConsoleConfig configures the console sink
type ConsoleConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	Color  *bool  `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
}

// FileConfig configures the file sink. JSON is the default format.
type FileConfig struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Level  string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
}

// Logger is the root logger and the resources behind its sinks
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Close releases the file sink, if any
func (l *Logger) Close() error {
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Option customizes New
type Option func(*options)

type options struct {
	console io.Writer
}

// WithConsoleWriter replaces os.Stdout as the console destination
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// Validate checks level and format names without opening any file
func (c *Config) Validate() error {
	_, err := c.plan()
	return err
}

type sinkPlan struct {
	consoleLevel  slog.Level
	consoleFormat Format
	consoleColor  bool
	fileLevel     slog.Level
	fileFormat    Format
	filePath      string
}

func (c *Config) plan() (*sinkPlan, error) {
	defaultLevel := slog.LevelInfo
	if c.Level != "" {
		level, err := ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		defaultLevel = level
	}

	p := &sinkPlan{
		consoleLevel: defaultLevel,
		fileLevel:    defaultLevel,
		consoleColor: true,
	}

	var err error
	if p.consoleFormat, err = parseFormat(c.Format, FormatText); err != nil {
		return nil, err
	}
	if p.fileFormat, err = parseFormat(c.Format, FormatJSON); err != nil {
		return nil, err
	}

	if c.Console != nil {
		if c.Console.Level != "" {
			if p.consoleLevel, err = ParseLevel(c.Console.Level); err != nil {
				return nil, err
			}
		}
		if p.consoleFormat, err = parseFormat(c.Console.Format, p.consoleFormat); err != nil {
			return nil, err
		}
		if c.Console.Color != nil {
			p.consoleColor = *c.Console.Color
		}
	}

	if c.File != nil && c.File.Path != "" {
		p.filePath = c.File.Path
		if c.File.Level != "" {
			if p.fileLevel, err = ParseLevel(c.File.Level); err != nil {
				return nil, err
			}
		}
		// the file sink does not inherit the console's text default
		if p.fileFormat, err = parseFormat(c.File.Format, p.fileFormat); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// New builds a logger with a console sink and, when configured, a file sink
func New(cfg Config, source string, opts ...Option) (*Logger, error) {
	o := &options{console: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	p, err := cfg.plan()
	if err != nil {
		return nil, err
	}

	sinks := []slog.Handler{
		newConsoleHandler(o.console, p.consoleFormat, p.consoleLevel, p.consoleColor),
	}

	var closers []io.Closer
	if p.filePath != "" {
		f, err := openLockedFile(p.filePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to set up file log sink")
		}
		sinks = append(sinks, newStreamHandler(f, p.fileFormat, p.fileLevel))
		closers = append(closers, f)
	}

	return &Logger{
		Logger:  slog.New(NewHandler(source, sinks...)),
		closers: closers,
	}, nil
}
