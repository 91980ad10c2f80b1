package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	githubinfra "github.com/isaac-j-miller/git-watcher/pkg/infra/github"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/async"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
)

// Poller checks polling subscriptions on their interval and runs their
// actions when the head commit moves
type Poller struct {
	client   interfaces.BranchClient
	runner   interfaces.ActionRunner
	tickUnit time.Duration

	mu     sync.Mutex
	states map[string]*model.CommitState

	cancel context.CancelFunc
	loops  sync.WaitGroup
	ticks  async.Group
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithTickUnit sets the length of one interval second. Tests shrink it.
func WithTickUnit(unit time.Duration) PollerOption {
	return func(p *Poller) {
		p.tickUnit = unit
	}
}

// NewPoller creates a Poller
func NewPoller(client interfaces.BranchClient, runner interfaces.ActionRunner, opts ...PollerOption) *Poller {
	p := &Poller{
		client:   client,
		runner:   runner,
		tickUnit: time.Second,
		states:   make(map[string]*model.CommitState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start schedules every polling subscription in subs. The first check of
// each one happens one interval after Start. Webhook subscriptions are
// ignored.
func (p *Poller) Start(ctx context.Context, subs []*model.Subscription) error {
	loopCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return goerr.New("poller already started")
	}
	p.cancel = cancel
	p.mu.Unlock()

	logger := logging.Child(logging.From(ctx), "poller")
	for _, sub := range subs {
		if sub.Mode != model.ModePolling || sub.Polling == nil {
			continue
		}
		interval := sub.Polling.Interval(p.tickUnit)
		if interval <= 0 {
			cancel()
			return goerr.New("polling interval must be positive",
				goerr.V("subscription", sub.Key()),
				goerr.V("interval", interval))
		}

		subLogger := logger.With("subscription", sub.Key())
		subLogger.Info("Scheduling branch poll", "interval", interval.String())

		p.loops.Add(1)
		go p.loop(logging.With(loopCtx, subLogger), sub, interval)
	}

	return nil
}

func (p *Poller) loop(ctx context.Context, sub *model.Subscription, interval time.Duration) {
	defer p.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick does not wait for the previous one to finish
			p.ticks.Go(ctx, func(ctx context.Context) error {
				p.Poll(ctx, sub)
				return nil
			})
		}
	}
}

// Stop ends every schedule and waits for in-flight polls and actions until
// ctx is done
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	p.loops.Wait()
	if err := p.ticks.Wait(ctx); err != nil {
		return goerr.Wrap(err, "in-flight polls did not finish")
	}
	return nil
}

// Poll checks the subscription once. Actions run only when a previously
// observed commit is replaced by a different one. Errors are logged and
// never stop the schedule.
func (p *Poller) Poll(ctx context.Context, sub *model.Subscription) {
	logger := logging.From(ctx)
	logging.Trace(ctx, logger, "Polling "+githubinfra.SanitizedURL(sub))

	sha, err := p.client.GetHeadCommit(ctx, sub)
	if err != nil {
		p.handleError(ctx, sub, err)
		return
	}

	prev, existed := p.state(sub).Swap(sha)
	switch {
	case !existed:
		logger.Debug("Initial commit SHA recorded", "sha", sha)
	case prev != sha:
		logger.Info("New commit SHA detected",
			"subscription", sub.FullName(),
			"previous", prev,
			"current", sha,
		)
		p.runner.Run(ctx, sub.Actions)
	}
}

func (p *Poller) state(sub *model.Subscription) *model.CommitState {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := sub.Key()
	s, ok := p.states[key]
	if !ok {
		s = &model.CommitState{}
		p.states[key] = s
	}
	return s
}

func (p *Poller) handleError(ctx context.Context, sub *model.Subscription, err error) {
	err = goerr.Wrap(err, "branch poll failed", goerr.V("branch", sub.FullName()))

	switch {
	case errors.Is(err, types.ErrUnauthorized):
		errutil.Handle(ctx, logging.LevelFatal, "Unauthorized to query branch", err)
	case errors.Is(err, types.ErrNotFound):
		errutil.Handle(ctx, slog.LevelError, "Branch not found", err)
	case errors.Is(err, types.ErrConnection):
		errutil.Handle(ctx, slog.LevelError, "Unable to connect to API endpoint", err)
	case errors.Is(err, types.ErrInvalidResponse):
		errutil.Handle(ctx, logging.LevelFatal, "Invalid response from API endpoint", err)
	default:
		errutil.Handle(ctx, slog.LevelError, "Error while polling", err)
	}
}
