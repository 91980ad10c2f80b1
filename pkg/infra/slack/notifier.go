package slack

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

const maxStderrLen = 1500

// Notifier posts failed actions to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewNotifier creates a Notifier for the given incoming webhook URL
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		post:       slack.PostWebhookContext,
	}
}

// NotifyActionFailure posts a short summary of the failed action
func (n *Notifier) NotifyActionFailure(ctx context.Context, result *model.ActionResult) error {
	msg := &slack.WebhookMessage{
		Text: formatFailure(result),
	}
	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack notification",
			goerr.V("action", result.Name), goerr.V("run_id", result.RunID))
	}
	return nil
}

func formatFailure(result *model.ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":x: Action `%s` failed (exit code %d)", result.Name, result.ExitCode)
	if result.Err != nil {
		fmt.Fprintf(&b, "\n%s", result.Err.Error())
	}
	if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\n```%s```", tail(stderr, maxStderrLen))
	}
	return b.String()
}

// tail returns at most the last n bytes of s without splitting a rune
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
