package cli

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

type nopRunner struct{}

func (nopRunner) Run(ctx context.Context, actions []model.Action) []*model.ActionResult {
	return nil
}

func webhookRuntime() *config.Runtime {
	return &config.Runtime{Subscriptions: []config.SubscriptionConfig{{
		Mode:           "webhook",
		Username:       "octo",
		RepositoryName: "hello",
		BranchName:     "main",
		Path:           "/hooks/hello",
		Actions:        []string{"push"},
		OnEvent:        []config.ActionConfig{{ActionType: "inline-script", InlineScript: "true"}},
	}}}
}

func TestWatch_ReturnsBindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	gt.NoError(t, err)
	defer func() { _ = taken.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = watch(ctx, webhookRuntime(), nopRunner{}, taken.Addr().String())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to listen for webhooks")
	gt.NoError(t, ctx.Err())
}

func TestWatch_ServesUntilCancelled(t *testing.T) {
	free, err := net.Listen("tcp", "127.0.0.1:0")
	gt.NoError(t, err)
	addr := free.Addr().String()
	gt.NoError(t, free.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, webhookRuntime(), nopRunner{}, addr)
	}()

	healthy := false
	deadline := time.Now().Add(2 * time.Second)
	for !healthy && time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			healthy = resp.StatusCode == http.StatusOK
			_ = resp.Body.Close()
		}
		if !healthy {
			time.Sleep(10 * time.Millisecond)
		}
	}
	gt.True(t, healthy)

	cancel()
	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancellation")
	}
}
