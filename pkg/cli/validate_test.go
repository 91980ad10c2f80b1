package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
)

func TestPrintValidation(t *testing.T) {
	color.NoColor = true

	t.Run("valid", func(t *testing.T) {
		rt := &config.Runtime{Subscriptions: []config.SubscriptionConfig{{
			Mode:                   "polling",
			Username:               "octo",
			RepositoryName:         "hello",
			BranchName:             "main",
			PollingIntervalSeconds: 15,
			OnEvent: []config.ActionConfig{
				{ActionType: "inline-script", Name: "pull", InlineScript: "git pull"},
			},
		}}}

		var buf bytes.Buffer
		gt.NoError(t, printValidation(&buf, "config.json", rt))
		out := buf.String()
		gt.String(t, out).Contains("config.json is valid")
		gt.String(t, out).Contains("octo/hello/main polling every 15s via https://api.github.com, 1 action(s)")
		gt.String(t, out).Contains("inline-script: pull")
	})

	t.Run("invalid", func(t *testing.T) {
		rt := &config.Runtime{Subscriptions: []config.SubscriptionConfig{{Mode: "webhook"}}}

		var buf bytes.Buffer
		gt.Error(t, printValidation(&buf, "config.json", rt))
		out := buf.String()
		gt.String(t, out).Contains("config.json is invalid")
		gt.String(t, out).Contains("  - username is required")
		gt.String(t, out).Contains("  - path must start with /")
	})
}
