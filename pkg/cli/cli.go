package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var loggerCfg config.Logger
	var logger *slog.Logger

	app := &cli.Command{
		Name:    types.AppName,
		Usage:   "Watch git branches and run actions when they move",
		Version: types.Version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			bootstrap, err := loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			logger = bootstrap.Logger

			slog.SetDefault(logger)
			ctx = logging.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdWatch(&loggerCfg),
			cmdValidate(),
			cmdMock(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}

// configPath returns the --config value or the first positional argument
func configPath(fileCfg *config.File, c *cli.Command) string {
	if fileCfg.Path != "" {
		return fileCfg.Path
	}
	return c.Args().First()
}

func loadRuntime(path string) (*config.Runtime, error) {
	rt, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}
