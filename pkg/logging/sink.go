package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

// Format is the record encoding of a sink
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func parseFormat(name string, fallback Format) (Format, error) {
	switch Format(name) {
	case "":
		return fallback, nil
	case FormatText, FormatJSON:
		return Format(name), nil
	default:
		return "", goerr.New("invalid log format", goerr.V("format", name))
	}
}

// redactor hides credentials and token-looking strings in every attribute
func redactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithType[model.Credential](),
		masq.WithContain("ghp_"),
		masq.WithContain("github_pat_"),
	)
}

// replaceAttr redacts, names the custom levels and, for JSON, renames the
// built-in keys to timestamp and message
func replaceAttr(format Format) func(groups []string, a slog.Attr) slog.Attr {
	redact := redactor()
	return func(groups []string, a slog.Attr) slog.Attr {
		a = redact(groups, a)
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.LevelKey:
			if level, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(LevelName(level))
			}
		case slog.TimeKey:
			if format == FormatJSON {
				a.Key = "timestamp"
			}
		case slog.MessageKey:
			if format == FormatJSON {
				a.Key = "message"
			}
		}
		return a
	}
}

func newStreamHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr(format),
	}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func newConsoleHandler(w io.Writer, format Format, level slog.Level, color bool) slog.Handler {
	if format == FormatJSON {
		return newStreamHandler(w, format, level)
	}
	return clog.New(
		clog.WithWriter(w),
		clog.WithLevel(level),
		clog.WithColor(color),
		clog.WithReplaceAttr(redactor()),
		clog.WithLevelFormatter(LevelName),
	)
}

// lockedFile appends records to a file while holding an advisory lock, so
// several processes can share one log file without interleaving records
type lockedFile struct {
	mu   sync.Mutex
	file *os.File
	lock *flock.Flock
}

func openLockedFile(path string) (*lockedFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create log directory", goerr.V("dir", dir))
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", path))
	}

	return &lockedFile{
		file: f,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (f *lockedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return 0, goerr.Wrap(err, "failed to lock log file", goerr.V("path", f.file.Name()))
	}
	defer func() {
		_ = f.lock.Unlock()
	}()

	return f.file.Write(p)
}

func (f *lockedFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.file.Close(); err != nil {
		return goerr.Wrap(err, "failed to close log file", goerr.V("path", f.file.Name()))
	}
	return f.lock.Close()
}
