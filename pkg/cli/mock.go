package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	"github.com/isaac-j-miller/git-watcher/pkg/controller/mockapi"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
	"github.com/isaac-j-miller/git-watcher/pkg/utils/errutil"
)

func cmdMock() *cli.Command {
	var (
		fileCfg config.File
		mockCfg config.Mock
	)

	var flags []cli.Flag
	flags = append(flags, fileCfg.Flags()...)
	flags = append(flags, mockCfg.Flags()...)

	return &cli.Command{
		Name:      "mock",
		Usage:     "Serve a fake GitHub branches API that relays pushes to the configured webhooks",
		ArgsUsage: "[config file]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := loadRuntime(configPath(&fileCfg, c))
			if err != nil {
				return err
			}

			server := mockapi.NewServer(ctx, rt.Models(),
				mockapi.WithAddr(mockCfg.Addr),
				mockapi.WithWebhookURL(mockCfg.RelayURL(rt.Port())))
			return serveMock(ctx, server, mockCfg.Addr)
		},
	}
}

// serveMock runs the mock API until ctx is done or a termination signal
// arrives
func serveMock(ctx context.Context, server *mockapi.Server, addr string) error {
	logger := logging.Child(logging.From(ctx), "mock")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen for mock API", goerr.V("addr", addr))
	}

	go func() {
		logger.Info("Mock GitHub API listening", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errutil.Handle(ctx, slog.LevelError, "Mock API server error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
	case sig := <-sigChan:
		logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown mock API gracefully")
	}
	return nil
}
