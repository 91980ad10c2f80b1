package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
)

// Relay posts push deliveries to webhook listeners
type Relay struct {
	baseURL    string
	httpClient *http.Client
	lookupEnv  func(string) (string, bool)
}

// NewRelay creates a Relay posting to baseURL joined with each
// subscription's path
func NewRelay(baseURL string, httpClient *http.Client, lookupEnv func(string) (string, bool)) *Relay {
	return &Relay{
		baseURL:    baseURL,
		httpClient: httpClient,
		lookupEnv:  lookupEnv,
	}
}

type pushPayload struct {
	Action     string         `json:"action"`
	After      string         `json:"after"`
	Sender     pushUser       `json:"sender"`
	Repository pushRepository `json:"repository"`
}

type pushUser struct {
	Login string `json:"login"`
}

type pushRepository struct {
	Name  string   `json:"name"`
	Owner pushUser `json:"owner"`
}

// Deliver sends a push for sha to sub. Failures are logged, not returned,
// so one unreachable listener does not stop the others.
func (r *Relay) Deliver(ctx context.Context, sub *model.Subscription, sha string) {
	if err := r.deliver(ctx, sub, sha); err != nil {
		errutil.Handle(ctx, slog.LevelError, "Webhook relay failed", err)
	}
}

func (r *Relay) deliver(ctx context.Context, sub *model.Subscription, sha string) error {
	body, err := json.Marshal(pushPayload{
		Action: "push",
		After:  sha,
		Sender: pushUser{Login: "mock"},
		Repository: pushRepository{
			Name:  sub.RepositoryName,
			Owner: pushUser{Login: sub.Username},
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to encode push payload")
	}

	target := joinURL(r.baseURL, sub.Webhook.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to create webhook request", goerr.V("url", target))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", uuid.NewString())
	if secret := sub.Webhook.ResolveSecret(r.lookupEnv); secret != "" {
		req.Header.Set("X-Hub-Signature-256", Sign(secret, body))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to post webhook", goerr.V("url", target))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("webhook rejected delivery",
			goerr.V("url", target),
			goerr.V("status", resp.StatusCode),
			goerr.V("subscription", sub.Key()))
	}
	return nil
}
