package config

import (
	"strconv"

	"github.com/urfave/cli/v3"
)

// Mock holds the mock API settings
type Mock struct {
	Addr       string
	WebhookURL string
}

// Flags returns CLI flags for the mock API
func (c *Mock) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mock-addr",
			Usage:       "Listen address of the mock GitHub API",
			Value:       ":3000",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("GIT_WATCHER_MOCK_ADDR"),
		},
		&cli.StringFlag{
			Name:        "webhook-url",
			Usage:       "Base URL pushes are relayed to (default http://localhost:<webhookPort>)",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("GIT_WATCHER_MOCK_WEBHOOK_URL"),
		},
	}
}

// RelayURL returns the flag URL, or the local webhook listener on port
func (c *Mock) RelayURL(port int) string {
	if c.WebhookURL != "" {
		return c.WebhookURL
	}
	return "http://localhost:" + strconv.Itoa(port)
}
