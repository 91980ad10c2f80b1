package errutil

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

var sentryEnabled bool

// InitSentry enables error reporting to Sentry. An empty dsn leaves it
// disabled.
func InitSentry(dsn, env string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     types.AppName + "@" + types.Version,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry", goerr.V("env", env))
	}
	sentryEnabled = true
	return nil
}

// FlushSentry waits for buffered events to be delivered
func FlushSentry(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}

// Attrs returns the goerr values of err as slog attributes
func Attrs(err error) []any {
	attrs := []any{slog.Any("error", err)}
	if e := goerr.Unwrap(err); e != nil {
		for k, v := range e.Values() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	return attrs
}

// Handle logs err at level with its goerr values and reports it to Sentry
// when enabled
func Handle(ctx context.Context, level slog.Level, msg string, err error) {
	if err == nil {
		return
	}
	logging.From(ctx).Log(ctx, level, msg, Attrs(err)...)

	if !sentryEnabled {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if values := errorContext(err); len(values) > 0 {
			scope.SetContext("goerr", values)
		}
		hub.CaptureException(err)
	})
}

// errorContext renders the goerr values of err for an event context. Sentry
// truncates tag values at 200 characters, contexts are not limited.
func errorContext(err error) sentry.Context {
	e := goerr.Unwrap(err)
	if e == nil {
		return nil
	}
	values := sentry.Context{}
	for k, v := range e.Values() {
		values[k] = fmt.Sprintf("%v", v)
	}
	return values
}
