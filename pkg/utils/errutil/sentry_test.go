package errutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

func TestHandle_ReportsValuesAsContext(t *testing.T) {
	transport := &sentry.MockTransport{}
	gt.NoError(t, sentry.Init(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: transport,
	}))
	sentryEnabled = true
	t.Cleanup(func() {
		sentryEnabled = false
		sentry.CurrentHub().BindClient(nil)
	})

	ctx := logging.With(context.Background(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	stderr := strings.Repeat("x", 500)
	err := goerr.New("action failed", goerr.V("stderr", stderr), goerr.V("branch", "octo/hello/main"))
	Handle(ctx, slog.LevelError, "Failed to execute action", err)

	events := transport.Events()
	gt.Number(t, len(events)).Equal(1)
	event := events[0]

	gt.Value(t, event.Tags["message"]).Equal("Failed to execute action")
	_, tagged := event.Tags["stderr"]
	gt.Value(t, tagged).Equal(false)

	values, ok := event.Contexts["goerr"]
	gt.True(t, ok)
	gt.Value(t, values["stderr"]).Equal(stderr)
	gt.Value(t, values["branch"]).Equal("octo/hello/main")
}

func TestErrorContext_PlainError(t *testing.T) {
	gt.Number(t, len(errorContext(context.Canceled))).Equal(0)
}
