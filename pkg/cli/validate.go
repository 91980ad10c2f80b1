package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/isaac-j-miller/git-watcher/pkg/cli/config"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

func cmdValidate() *cli.Command {
	var fileCfg config.File

	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a configuration file and print its subscriptions",
		ArgsUsage: "[config file]",
		Flags:     fileCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			path := configPath(&fileCfg, c)
			rt, err := config.Load(path)
			if err != nil {
				return err
			}
			return printValidation(os.Stdout, path, rt)
		},
	}
}

func printValidation(w io.Writer, path string, rt *config.Runtime) error {
	var (
		ok   = color.New(color.FgGreen, color.Bold)
		bad  = color.New(color.FgRed, color.Bold)
		dim  = color.New(color.Faint)
		name = color.New(color.FgCyan)
	)

	if err := rt.Validate(); err != nil {
		_, _ = bad.Fprintf(w, "✗ %s is invalid\n", path)
		for _, problem := range problems(err) {
			_, _ = fmt.Fprintf(w, "  - %s\n", problem)
		}
		return err
	}

	_, _ = ok.Fprintf(w, "✓ %s is valid\n", path)
	for _, sub := range rt.Models() {
		_, _ = name.Fprintf(w, "  %s", sub.FullName())
		switch sub.Mode {
		case model.ModePolling:
			_, _ = dim.Fprintf(w, " polling every %ds via %s", sub.Polling.IntervalSeconds, sub.Polling.Endpoint())
		case model.ModeWebhook:
			_, _ = dim.Fprintf(w, " webhook at %s on %v", sub.Webhook.Path, sub.Webhook.Events)
		}
		_, _ = fmt.Fprintf(w, ", %d action(s)\n", len(sub.Actions))
		for _, action := range sub.Actions {
			_, _ = dim.Fprintf(w, "    %s: %s\n", action.Type(), model.ActionName(action))
		}
	}
	return nil
}

// problems splits a joined validation error into its messages
func problems(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
