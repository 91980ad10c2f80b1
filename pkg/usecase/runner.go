package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/async"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/segment"
)

const defaultShell = "/bin/sh"

type actionRunner struct {
	shell    string
	notifier interfaces.Notifier
}

// RunnerOption configures the action runner
type RunnerOption func(*actionRunner)

// WithShell replaces /bin/sh as the interpreter of command lines
func WithShell(shell string) RunnerOption {
	return func(r *actionRunner) {
		r.shell = shell
	}
}

// WithNotifier reports failed actions to n
func WithNotifier(n interfaces.Notifier) RunnerOption {
	return func(r *actionRunner) {
		r.notifier = n
	}
}

// NewRunner creates an ActionRunner that spawns each action through a shell
func NewRunner(opts ...RunnerOption) interfaces.ActionRunner {
	r := &actionRunner{shell: defaultShell}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes actions one after another. A failed action is logged and
// reported; the remaining actions still run.
func (r *actionRunner) Run(ctx context.Context, actions []model.Action) []*model.ActionResult {
	logger := logging.Child(logging.From(ctx), "action")
	results := make([]*model.ActionResult, 0, len(actions))

	for _, action := range actions {
		name := model.ActionName(action)
		runID := uuid.NewString()
		actionLogger := logger.With("action", name, "run_id", runID)
		actionCtx := logging.With(ctx, actionLogger)

		actionLogger.Info("Running action", "type", action.Type(), "cwd", action.WorkingDir())
		result := r.execute(action)
		result.RunID = runID
		results = append(results, result)

		if !result.Succeeded() {
			errutil.Handle(actionCtx, slog.LevelError, "Failed to execute action", result.Err)
			if r.notifier != nil {
				// the next action does not wait for the notification
				async.Dispatch(actionCtx, func(ctx context.Context) error {
					return r.notifier.NotifyActionFailure(ctx, result)
				})
			}
			continue
		}

		emitOutput(actionCtx, actionLogger, slog.LevelInfo, "stdout", result.Stdout)
		emitOutput(actionCtx, actionLogger, slog.LevelError, "stderr", result.Stderr)
		actionLogger.Info("Successfully executed action",
			"duration_ms", result.Duration().Milliseconds(),
		)
	}

	return results
}

// execute spawns the action and waits for it. The process is not tied to
// any context: once started it is allowed to finish.
func (r *actionRunner) execute(action model.Action) *model.ActionResult {
	name := model.ActionName(action)
	cmdline := model.CommandLine(action)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(r.shell, "-c", cmdline)
	cmd.Dir = action.WorkingDir()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := &model.ActionResult{
		Name:      name,
		Command:   cmdline,
		StartedAt: time.Now(),
	}
	err := cmd.Run()
	result.FinishedAt = time.Now()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		result.Err = goerr.Wrap(err, "action failed",
			goerr.V("name", name),
			goerr.V("exit_code", result.ExitCode),
			goerr.V("stderr", strings.TrimSpace(result.Stderr)),
		)
	}

	return result
}

// emitOutput logs every segment of one output stream at level
func emitOutput(ctx context.Context, logger *slog.Logger, level slog.Level, stream, output string) {
	for _, seg := range segment.Split(output) {
		if seg.IsStructured() {
			logger.Log(ctx, level, "structured output",
				slog.String("stream", stream),
				slog.Any("output", seg.Value),
			)
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		logger.Log(ctx, level, seg.Text, slog.String("stream", stream))
	}
}
