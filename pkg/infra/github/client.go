package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/types"
)

// HTTPClient is the subset of *http.Client the branch client needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type branchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Client queries branch heads through the repos/branches API
type Client struct {
	httpClient HTTPClient
	lookupEnv  func(string) (string, bool)
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c HTTPClient) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLookupEnv replaces os.LookupEnv for resolving token variables
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(client *Client) {
		client.lookupEnv = fn
	}
}

// NewClient creates a branch client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		lookupEnv:  os.LookupEnv,
		userAgent:  types.AppName + "/" + types.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BranchURL builds <endpoint>/repos/{user}/{repo}/branches/{branch}. When
// token is not empty it is placed in the URL's authority.
func BranchURL(sub *model.Subscription, token model.Credential) (*url.URL, error) {
	if sub.Polling == nil {
		return nil, goerr.New("subscription is not in polling mode", goerr.V("subscription", sub.Key()))
	}

	endpoint := sub.Polling.Endpoint()
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid endpoint", goerr.V("endpoint", endpoint))
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, goerr.New("endpoint must be an absolute URL", goerr.V("endpoint", endpoint))
	}

	base := strings.TrimSuffix(u.Path, "/")
	u.Path = base + "/repos/" + sub.Username + "/" + sub.RepositoryName + "/branches/" + sub.BranchName
	u.RawPath = base + "/repos/" +
		url.PathEscape(sub.Username) + "/" +
		url.PathEscape(sub.RepositoryName) + "/branches/" +
		url.PathEscape(sub.BranchName)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	if token != "" {
		u.User = url.User(string(token))
	}

	return u, nil
}

// SanitizedURL returns the branch URL without credentials, for logging
func SanitizedURL(sub *model.Subscription) string {
	u, err := BranchURL(sub, "")
	if err != nil {
		return sub.FullName()
	}
	return u.String()
}

// GetHeadCommit returns the SHA the subscription's branch points to.
// Failures wrap types.ErrUnauthorized, ErrNotFound, ErrConnection or
// ErrInvalidResponse where they apply.
func (c *Client) GetHeadCommit(ctx context.Context, sub *model.Subscription) (string, error) {
	if sub.Polling == nil {
		return "", goerr.New("subscription is not in polling mode", goerr.V("subscription", sub.Key()))
	}
	u, err := BranchURL(sub, sub.Polling.ResolveToken(c.lookupEnv))
	if err != nil {
		return "", err
	}
	sanitized := SanitizedURL(sub)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create request", goerr.V("url", sanitized))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range sub.Polling.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error would otherwise print the URL including the token
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		return "", goerr.Wrap(types.ErrConnection, err.Error(), goerr.V("url", sanitized))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", goerr.Wrap(types.ErrUnauthorized, "branch query rejected",
			goerr.V("url", sanitized), goerr.V("status", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return "", goerr.Wrap(types.ErrNotFound, "branch query returned 404",
			goerr.V("url", sanitized), goerr.V("branch", sub.FullName()))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", goerr.New("unexpected status from branch query",
			goerr.V("url", sanitized), goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}

	var branch branchResponse
	if err := json.NewDecoder(resp.Body).Decode(&branch); err != nil {
		return "", goerr.Wrap(types.ErrInvalidResponse, err.Error(), goerr.V("url", sanitized))
	}
	if branch.Commit.SHA == "" {
		return "", goerr.Wrap(types.ErrInvalidResponse, "response has no commit.sha", goerr.V("url", sanitized))
	}

	return branch.Commit.SHA, nil
}
