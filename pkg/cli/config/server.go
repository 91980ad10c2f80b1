package config

import (
	"strconv"

	"github.com/urfave/cli/v3"
)

// Server holds webhook listener configuration
type Server struct {
	Addr string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "webhook-addr",
			Usage:       "Webhook listener address, overrides webhookPort of the configuration file",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("GIT_WATCHER_WEBHOOK_ADDR"),
		},
	}
}

// ListenAddr returns the flag address, or ":<port>" when the flag is unset
func (c *Server) ListenAddr(port int) string {
	if c.Addr != "" {
		return c.Addr
	}
	return ":" + strconv.Itoa(port)
}
