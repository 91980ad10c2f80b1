package config_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

func jsonRecords(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var rec map[string]any
		gt.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		level     string
		wantErr   bool
		wantTrace bool
	}{
		{level: "trace", wantTrace: true},
		{level: "VERBOSE", wantTrace: true},
		{level: "debug"},
		{level: "INFO"},
		{level: "warn"},
		{level: "error"},
		{level: "fatal"},
		{level: "loud", wantErr: true},
		{level: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			flags := &config.Logger{Level: tt.level, JSON: true}

			logger, err := flags.Configure(logging.WithConsoleWriter(&buf))
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)

			ctx := context.Background()
			logging.Trace(ctx, logger.Logger, "tracing")
			logging.Fatal(ctx, logger.Logger, "giving up")

			records := jsonRecords(t, buf.Bytes())
			last := records[len(records)-1]
			gt.Value(t, last["level"]).Equal("FATAL")
			gt.Value(t, last["message"]).Equal("giving up")
			gt.Value(t, last["source"]).Equal("git-watcher")

			if tt.wantTrace {
				gt.Number(t, len(records)).Equal(2)
				gt.Value(t, records[0]["level"]).Equal("TRACE")
				gt.Value(t, records[0]["source"]).Equal("git-watcher")
			} else {
				gt.Number(t, len(records)).Equal(1)
			}
		})
	}
}

func TestLogger_ConfigureText(t *testing.T) {
	var buf bytes.Buffer
	flags := &config.Logger{Level: "trace"}

	logger, err := flags.Configure(logging.WithConsoleWriter(&buf))
	gt.NoError(t, err)

	ctx := context.Background()
	logging.Trace(ctx, logger.Logger, "tracing")
	logging.Fatal(ctx, logger.Logger, "giving up")

	out := buf.String()
	gt.String(t, out).Contains("TRACE")
	gt.String(t, out).Contains("FATAL")
	gt.String(t, out).Contains("git-watcher")
}

func TestLogger_Flags(t *testing.T) {
	flags := (&config.Logger{}).Flags()
	gt.Number(t, len(flags)).Equal(2)

	level, ok := flags[0].(*cli.StringFlag)
	gt.True(t, ok)
	gt.Value(t, level.Name).Equal("log-level")
	gt.Value(t, level.Value).Equal("info")

	asJSON, ok := flags[1].(*cli.BoolFlag)
	gt.True(t, ok)
	gt.Value(t, asJSON.Name).Equal("log-json")
}

func TestLogger_Merge(t *testing.T) {
	flags := &config.Logger{Level: "debug", JSON: true}

	merged := flags.Merge(nil)
	gt.Value(t, merged.Level).Equal("debug")
	gt.Value(t, merged.Format).Equal("json")

	merged = flags.Merge(&logging.Config{
		Level: "warn",
		File:  &logging.FileConfig{Path: "/var/log/git-watcher.log"},
	})
	gt.Value(t, merged.Level).Equal("warn")
	gt.Value(t, merged.Format).Equal("json")
	gt.Value(t, merged.File.Path).Equal("/var/log/git-watcher.log")

	text := &config.Logger{Level: "info"}
	gt.Value(t, text.Merge(&logging.Config{Format: "text"}).Format).Equal("text")
	gt.Value(t, text.Merge(nil).Format).Equal("")
}
