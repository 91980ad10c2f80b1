package github_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	githubinfra "github.com/isaac-j-miller/git-watcher/pkg/infra/github"
)

func newPollingSub(endpoint string) *model.Subscription {
	return &model.Subscription{
		Username:       "octo",
		RepositoryName: "hello",
		BranchName:     "main",
		Mode:           model.ModePolling,
		Polling: &model.PollingConfig{
			IntervalSeconds:  5,
			OverrideEndpoint: endpoint,
		},
	}
}

func TestBranchURL(t *testing.T) {
	t.Run("default endpoint", func(t *testing.T) {
		sub := newPollingSub("")
		u, err := githubinfra.BranchURL(sub, "")
		gt.NoError(t, err)
		gt.Value(t, u.String()).Equal("https://api.github.com/repos/octo/hello/branches/main")
	})

	t.Run("token in authority", func(t *testing.T) {
		sub := newPollingSub("")
		u, err := githubinfra.BranchURL(sub, "ghp_abc")
		gt.NoError(t, err)
		gt.Value(t, u.String()).Equal("https://ghp_abc@api.github.com/repos/octo/hello/branches/main")
	})

	t.Run("override endpoint keeps its path", func(t *testing.T) {
		sub := newPollingSub("https://ghe.example.com/api/v3/")
		u, err := githubinfra.BranchURL(sub, "")
		gt.NoError(t, err)
		gt.Value(t, u.String()).Equal("https://ghe.example.com/api/v3/repos/octo/hello/branches/main")
	})

	t.Run("branch with slash is escaped", func(t *testing.T) {
		sub := newPollingSub("http://localhost:3000")
		sub.BranchName = "feature/x"
		u, err := githubinfra.BranchURL(sub, "")
		gt.NoError(t, err)
		gt.Value(t, u.String()).Equal("http://localhost:3000/repos/octo/hello/branches/feature%2Fx")
	})

	t.Run("relative endpoint is rejected", func(t *testing.T) {
		sub := newPollingSub("localhost:3000")
		_, err := githubinfra.BranchURL(sub, "")
		gt.Error(t, err)
	})

	t.Run("webhook subscription is rejected", func(t *testing.T) {
		sub := &model.Subscription{Mode: model.ModeWebhook, Webhook: &model.WebhookConfig{Path: "/hook"}}
		_, err := githubinfra.BranchURL(sub, "")
		gt.Error(t, err)
	})
}

func TestClient_GetHeadCommit(t *testing.T) {
	var gotPath, gotUser, gotHeader, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		gotHeader = r.Header.Get("X-Custom")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"main","commit":{"sha":"abc123"}}`))
	}))
	defer server.Close()

	t.Run("literal token and extra headers", func(t *testing.T) {
		sub := newPollingSub(server.URL)
		sub.Polling.Token = "literal-token"
		sub.Polling.ExtraHeaders = map[string]string{"X-Custom": "yes"}

		client := githubinfra.NewClient()
		sha, err := client.GetHeadCommit(context.Background(), sub)
		gt.NoError(t, err)
		gt.Value(t, sha).Equal("abc123")
		gt.Value(t, gotPath).Equal("/repos/octo/hello/branches/main")
		gt.Value(t, gotUser).Equal("literal-token")
		gt.Value(t, gotHeader).Equal("yes")
		gt.Value(t, gotAccept).Equal("application/vnd.github+json")
	})

	t.Run("token from environment", func(t *testing.T) {
		sub := newPollingSub(server.URL)
		sub.Polling.TokenEnvVar = "WATCH_TOKEN"

		client := githubinfra.NewClient(githubinfra.WithLookupEnv(func(key string) (string, bool) {
			if key == "WATCH_TOKEN" {
				return "env-token", true
			}
			return "", false
		}))
		_, err := client.GetHeadCommit(context.Background(), sub)
		gt.NoError(t, err)
		gt.Value(t, gotUser).Equal("env-token")
	})

	t.Run("no credential", func(t *testing.T) {
		sub := newPollingSub(server.URL)
		sub.Polling.TokenEnvVar = "UNSET_TOKEN"

		client := githubinfra.NewClient(githubinfra.WithLookupEnv(func(string) (string, bool) {
			return "", false
		}))
		_, err := client.GetHeadCommit(context.Background(), sub)
		gt.NoError(t, err)
		gt.Value(t, gotUser).Equal("")
	})
}

func TestClient_GetHeadCommit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: types.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: types.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, wantErr: types.ErrNotFound},
		{name: "broken body", status: http.StatusOK, body: `{"commit":`, wantErr: types.ErrInvalidResponse},
		{name: "missing sha", status: http.StatusOK, body: `{"commit":{}}`, wantErr: types.ErrInvalidResponse},
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := githubinfra.NewClient()
			_, err := client.GetHeadCommit(context.Background(), newPollingSub(server.URL))
			gt.Error(t, err)
			if tt.wantErr != nil {
				gt.True(t, errors.Is(err, tt.wantErr))
			} else {
				for _, sentinel := range []error{types.ErrUnauthorized, types.ErrNotFound, types.ErrConnection, types.ErrInvalidResponse} {
					gt.Value(t, errors.Is(err, sentinel)).Equal(false)
				}
			}
		})
	}
}

func TestClient_GetHeadCommit_ConnectionRefused(t *testing.T) {
	// reserve a port, then close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	gt.NoError(t, err)
	addr := ln.Addr().String()
	gt.NoError(t, ln.Close())

	sub := newPollingSub("http://" + addr)
	sub.Polling.Token = "secret-token"

	client := githubinfra.NewClient()
	_, err = client.GetHeadCommit(context.Background(), sub)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrConnection))
	gt.Value(t, strings.Contains(err.Error(), "secret-token")).Equal(false)
}
