package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

// Dispatch executes a handler function asynchronously with a detached
// context and panic recovery
//
// Parameters:
//   - ctx: Original context (the logger is preserved, cancellation is not)
//   - handler: Function to execute asynchronously
//
// Behavior:
//   - Executes handler in a new goroutine
//   - Recovers from panics and logs them with the stack
//   - Logs errors returned by handler
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	go func() {
		run(newCtx, handler)
	}()
}

// Group dispatches handlers like Dispatch and lets the caller wait for all
// of them to finish
type Group struct {
	wg sync.WaitGroup
}

// Go runs handler on a detached goroutine tracked by the group
func (g *Group) Go(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(newCtx, handler)
	}()
}

// Wait blocks until every handler finished or ctx is done. It returns
// ctx.Err() in the latter case.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func run(ctx context.Context, handler func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger := logging.From(ctx)
			logger.Error("panic in async handler",
				"recover", r,
				"stack", string(stack))
		}
	}()

	if err := handler(ctx); err != nil {
		logger := logging.From(ctx)
		logger.Error("error in async handler", "error", err)
	}
}

// newBackgroundContext creates a new background context that keeps the
// logger of ctx
func newBackgroundContext(ctx context.Context) context.Context {
	return logging.With(context.Background(), logging.From(ctx))
}
