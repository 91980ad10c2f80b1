package http

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

// DefaultPort is used when the configuration does not set webhookPort
const DefaultPort = 80

// config holds internal HTTP server configuration
type config struct {
	addr      string
	lookupEnv func(string) (string, bool)
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithLookupEnv replaces os.LookupEnv for resolving webhook secrets
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(c *config) {
		c.lookupEnv = fn
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates the webhook listener. Every webhook subscription gets
// a POST route at its path; GET /health is always present.
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	subs []*model.Subscription,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr:      fmt.Sprintf(":%d", DefaultPort),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get(healthPath, handleHealth)

	seen := map[string]string{healthPath: "health check"}
	for _, sub := range subs {
		if sub.Mode != model.ModeWebhook || sub.Webhook == nil {
			continue
		}
		path := sub.Webhook.Path
		if owner, ok := seen[path]; ok {
			return nil, goerr.New("webhook path already registered",
				goerr.V("path", path),
				goerr.V("subscription", sub.Key()),
				goerr.V("registered_by", owner))
		}
		seen[path] = sub.Key()

		handler := NewWebhookHandler(sub, webhookUC, sub.Webhook.ResolveSecret(cfg.lookupEnv))
		router.Post(path, handler.Handle)
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
