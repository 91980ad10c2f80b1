package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	controller "github.com/isaac-j-miller/git-watcher/pkg/controller/http"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	githubinfra "github.com/isaac-j-miller/git-watcher/pkg/infra/github"
	slackinfra "github.com/isaac-j-miller/git-watcher/pkg/infra/slack"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
	"github.com/isaac-j-miller/git-watcher/pkg/usecase"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
)

const shutdownTimeout = 30 * time.Second

func cmdWatch(loggerCfg *config.Logger) *cli.Command {
	var (
		fileCfg   config.File
		serverCfg config.Server
		sentryCfg config.Sentry
		slackCfg  config.Slack
	)

	var flags []cli.Flag
	flags = append(flags, fileCfg.Flags()...)
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "Watch the configured branches and run their actions",
		ArgsUsage: "[config file]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := loadRuntime(configPath(&fileCfg, c))
			if err != nil {
				return err
			}

			logger, err := logging.New(loggerCfg.Merge(rt.Logging), types.AppName)
			if err != nil {
				return goerr.Wrap(err, "failed to configure logger")
			}
			defer func() {
				if err := logger.Close(); err != nil {
					slog.Default().Error("Failed to close log file", "error", err)
				}
			}()
			slog.SetDefault(logger.Logger)
			ctx = logging.With(ctx, logger.Logger)

			if err := errutil.InitSentry(sentryCfg.DSN, sentryCfg.Env); err != nil {
				return err
			}
			defer errutil.FlushSentry(2 * time.Second)

			var runnerOpts []usecase.RunnerOption
			if slackCfg.WebhookURL != "" {
				runnerOpts = append(runnerOpts, usecase.WithNotifier(slackinfra.NewNotifier(slackCfg.WebhookURL)))
			}
			runner := usecase.NewRunner(runnerOpts...)

			return watch(ctx, rt, runner, serverCfg.ListenAddr(rt.Port()))
		},
	}
}

// watch runs until ctx is done or a termination signal arrives
func watch(ctx context.Context, rt *config.Runtime, runner interfaces.ActionRunner, addr string) error {
	logger := logging.From(ctx)
	subs := rt.Models()

	var server *controller.Server
	if hasWebhook(subs) {
		var err error
		server, err = controller.NewServer(ctx, usecase.NewWebhook(runner), subs, controller.WithAddr(addr))
		if err != nil {
			return goerr.Wrap(err, "failed to create HTTP server")
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return goerr.Wrap(err, "failed to listen for webhooks", goerr.V("addr", addr))
		}

		go func() {
			logger.Info("HTTP server starting", slog.String("addr", ln.Addr().String()))
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				errutil.Handle(ctx, slog.LevelError, "HTTP server error", err)
			}
		}()
	}

	poller := usecase.NewPoller(githubinfra.NewClient(), runner)
	if err := poller.Start(ctx, subs); err != nil {
		if server != nil {
			_ = server.Close()
		}
		return goerr.Wrap(err, "failed to start poller")
	}

	logger.Info("Watching branches", slog.Int("subscriptions", len(subs)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	case sig := <-sigChan:
		logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
	}

	// in-flight actions are allowed to finish within the timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server gracefully")
		}
	}
	if err := poller.Stop(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}

func hasWebhook(subs []*model.Subscription) bool {
	for _, sub := range subs {
		if sub.Mode == model.ModeWebhook {
			return true
		}
	}
	return false
}
