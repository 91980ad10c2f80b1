package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	"github.com/isaac-j-miller/git-watcher/pkg/usecase"
)

// MockBranchClient returns the queued responses in order, then repeats the
// last one
type MockBranchClient struct {
	mu        sync.Mutex
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	sha string
	err error
}

func (m *MockBranchClient) GetHeadCommit(ctx context.Context, sub *model.Subscription) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	r := m.responses[idx]
	return r.sha, r.err
}

func (m *MockBranchClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRunner counts how many times it was asked to run actions
type MockRunner struct {
	runs atomic.Int32
}

func (m *MockRunner) Run(ctx context.Context, actions []model.Action) []*model.ActionResult {
	m.runs.Add(1)
	return nil
}

func pollingSub() *model.Subscription {
	return &model.Subscription{
		Username:       "octo",
		RepositoryName: "hello",
		BranchName:     "main",
		Mode:           model.ModePolling,
		Actions:        []model.Action{&model.InlineScript{Command: "true"}},
		Polling:        &model.PollingConfig{IntervalSeconds: 1},
	}
}

func TestPoller_RunsOnlyWhenCommitChanges(t *testing.T) {
	ctx, _ := captureLogs(t)
	client := &MockBranchClient{responses: []mockResponse{{sha: "A"}, {sha: "A"}, {sha: "B"}}}
	runner := &MockRunner{}
	poller := usecase.NewPoller(client, runner)
	sub := pollingSub()

	poller.Poll(ctx, sub)
	gt.Number(t, runner.runs.Load()).Equal(0)

	poller.Poll(ctx, sub)
	gt.Number(t, runner.runs.Load()).Equal(0)

	poller.Poll(ctx, sub)
	gt.Number(t, runner.runs.Load()).Equal(1)

	poller.Poll(ctx, sub)
	gt.Number(t, runner.runs.Load()).Equal(1)
}

func TestPoller_FirstObservationNeverRuns(t *testing.T) {
	ctx, buf := captureLogs(t)
	client := &MockBranchClient{responses: []mockResponse{{sha: "A"}}}
	runner := &MockRunner{}
	poller := usecase.NewPoller(client, runner)

	poller.Poll(ctx, pollingSub())
	gt.Number(t, runner.runs.Load()).Equal(0)

	rec := findRecord(records(t, buf), "Initial commit SHA recorded")
	gt.NotNil(t, rec)
	gt.Value(t, rec["sha"]).Equal("A")
}

func TestPoller_SubscriptionsKeepSeparateState(t *testing.T) {
	ctx, _ := captureLogs(t)
	client := &MockBranchClient{responses: []mockResponse{{sha: "A"}, {sha: "B"}, {sha: "C"}}}
	runner := &MockRunner{}
	poller := usecase.NewPoller(client, runner)

	mainSub := pollingSub()
	dev := pollingSub()
	dev.BranchName = "dev"

	poller.Poll(ctx, mainSub) // A
	poller.Poll(ctx, dev)     // B, first sight for dev
	gt.Number(t, runner.runs.Load()).Equal(0)

	poller.Poll(ctx, mainSub) // C
	gt.Number(t, runner.runs.Load()).Equal(1)
}

func TestPoller_ErrorsKeepState(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		level   string
	}{
		{name: "unauthorized", err: goerr.Wrap(types.ErrUnauthorized, "rejected"), message: "Unauthorized to query branch", level: "FATAL"},
		{name: "not found", err: goerr.Wrap(types.ErrNotFound, "missing"), message: "Branch not found", level: "ERROR"},
		{name: "connection", err: goerr.Wrap(types.ErrConnection, "refused"), message: "Unable to connect to API endpoint", level: "ERROR"},
		{name: "invalid response", err: goerr.Wrap(types.ErrInvalidResponse, "garbage"), message: "Invalid response from API endpoint", level: "FATAL"},
		{name: "other", err: goerr.New("boom"), message: "Error while polling", level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, buf := captureLogs(t)
			client := &MockBranchClient{responses: []mockResponse{
				{sha: "A"},
				{err: tt.err},
				{sha: "A"},
				{sha: "B"},
			}}
			runner := &MockRunner{}
			poller := usecase.NewPoller(client, runner)
			sub := pollingSub()

			for range 3 {
				poller.Poll(ctx, sub)
			}
			gt.Number(t, runner.runs.Load()).Equal(0)

			poller.Poll(ctx, sub)
			gt.Number(t, runner.runs.Load()).Equal(1)

			rec := findRecord(records(t, buf), tt.message)
			gt.NotNil(t, rec)
			gt.Value(t, rec["level"]).Equal(tt.level)
			gt.Value(t, rec["branch"]).Equal("octo/hello/main")
		})
	}
}

func TestPoller_StartAndStop(t *testing.T) {
	ctx, _ := captureLogs(t)
	client := &MockBranchClient{responses: []mockResponse{{sha: "A"}, {sha: "B"}}}
	runner := &MockRunner{}
	poller := usecase.NewPoller(client, runner, usecase.WithTickUnit(20*time.Millisecond))

	hookSub := &model.Subscription{
		Mode:    model.ModeWebhook,
		Webhook: &model.WebhookConfig{Path: "/hook", Events: []string{"push"}},
	}
	gt.NoError(t, poller.Start(ctx, []*model.Subscription{pollingSub(), hookSub}))
	gt.Error(t, poller.Start(ctx, nil))

	deadline := time.Now().Add(2 * time.Second)
	for runner.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	gt.Number(t, runner.runs.Load()).Equal(1)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	gt.NoError(t, poller.Stop(stopCtx))

	calls := client.Calls()
	time.Sleep(30 * time.Millisecond)
	gt.Number(t, client.Calls()).Equal(calls)
}

func TestPoller_StartRejectsZeroInterval(t *testing.T) {
	ctx, _ := captureLogs(t)
	poller := usecase.NewPoller(&MockBranchClient{responses: []mockResponse{{sha: "A"}}}, &MockRunner{})

	sub := pollingSub()
	sub.Polling.IntervalSeconds = 0
	gt.Error(t, poller.Start(ctx, []*model.Subscription{sub}))
}

func TestPoller_StopBeforeStart(t *testing.T) {
	poller := usecase.NewPoller(&MockBranchClient{}, &MockRunner{})
	gt.NoError(t, poller.Stop(context.Background()))
}
