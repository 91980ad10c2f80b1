// Package mockapi imitates the branches endpoint of the GitHub REST API for
// local runs. Setting a branch's commit also relays a signed push delivery
// to every webhook subscription of that branch.
package mockapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	controller "github.com/isaac-j-miller/git-watcher/pkg/controller/http"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

// DefaultAddr is the listen address of the mock API
const DefaultAddr = ":3000"

type config struct {
	addr       string
	webhookURL string
	lookupEnv  func(string) (string, bool)
	httpClient *http.Client
}

// Option configures the mock API server
type Option func(*config)

// WithAddr sets the listen address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookURL sets the base URL webhook paths are appended to
func WithWebhookURL(base string) Option {
	return func(c *config) {
		c.webhookURL = base
	}
}

// WithLookupEnv replaces os.LookupEnv for resolving webhook secrets
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(c *config) {
		c.lookupEnv = fn
	}
}

// WithHTTPClient replaces the client used for relayed deliveries
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// Server serves branch heads from memory
type Server struct {
	*http.Server
	subs  []*model.Subscription
	relay *Relay

	mu      sync.RWMutex
	commits map[string]string
}

// NewServer creates the mock API. subs are the subscriptions pushes are
// relayed to; only webhook subscriptions receive deliveries.
func NewServer(ctx context.Context, subs []*model.Subscription, opts ...Option) *Server {
	cfg := &config{
		addr:       DefaultAddr,
		webhookURL: "http://localhost",
		lookupEnv:  os.LookupEnv,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		subs:    subs,
		relay:   NewRelay(cfg.webhookURL, cfg.httpClient, cfg.lookupEnv),
		commits: map[string]string{},
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(controller.LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/repos/{username}/{repo}/branches/{branch}", s.handleGetBranch)
	router.Put("/repos/{username}/{repo}/branches/{branch}/{sha}", s.handleSetCommit)

	s.Server = &http.Server{
		Addr:              cfg.addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

type branchRef struct {
	username string
	repo     string
	branch   string
}

func (b branchRef) key() string {
	return b.username + ":" + b.repo + ":" + b.branch
}

func (b branchRef) matches(sub *model.Subscription) bool {
	return sub.Username == b.username && sub.RepositoryName == b.repo && sub.BranchName == b.branch
}

// refFromRequest reads the route parameters. Branch names containing "/"
// arrive escaped as one segment.
func refFromRequest(r *http.Request) branchRef {
	param := func(name string) string {
		v := chi.URLParam(r, name)
		if unescaped, err := url.PathUnescape(v); err == nil {
			return unescaped
		}
		return v
	}
	return branchRef{
		username: param("username"),
		repo:     param("repo"),
		branch:   param("branch"),
	}
}

// Commit returns the SHA recorded for a branch
func (s *Server) Commit(username, repo, branch string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sha, ok := s.commits[branchRef{username, repo, branch}.key()]
	return sha, ok
}

func (s *Server) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	ref := refFromRequest(r)
	logger := logging.From(r.Context())

	sha, ok := s.Commit(ref.username, ref.repo, ref.branch)
	logger.Debug("Branch head requested", "branch", ref.key(), "sha", sha)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var resp struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	resp.Commit.SHA = sha

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode branch response", "error", err)
	}
}

func (s *Server) handleSetCommit(w http.ResponseWriter, r *http.Request) {
	ref := refFromRequest(r)
	sha := chi.URLParam(r, "sha")
	ctx := r.Context()
	logging.From(ctx).Debug("Setting branch head", "branch", ref.key(), "sha", sha)

	s.mu.Lock()
	s.commits[ref.key()] = sha
	s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.Mode != model.ModeWebhook || sub.Webhook == nil || !ref.matches(sub) {
			continue
		}
		s.relay.Deliver(ctx, sub, sha)
	}

	w.WriteHeader(http.StatusOK)
}

// Sign returns the X-Hub-Signature-256 value of body
func Sign(secret model.Credential, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
