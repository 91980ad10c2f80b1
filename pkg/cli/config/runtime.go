package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

const (
	defaultWebhookPort = 80
	reservedPath       = "/health"
)

// File holds the location of the configuration file
type File struct {
	Path string
}

// Flags returns CLI flags for the configuration file
func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Configuration file (.json, .yaml, .yml or .toml)",
			Destination: &c.Path,
			Sources:     cli.EnvVars("GIT_WATCHER_CONFIG"),
		},
	}
}

// Runtime is the configuration file. It is read once at startup and not
// modified afterwards.
type Runtime struct {
	Schema        string               `json:"$schema,omitempty" yaml:"$schema,omitempty" toml:"$schema,omitempty"`
	WebhookPort   int                  `json:"webhookPort,omitempty" yaml:"webhookPort,omitempty" toml:"webhookPort,omitempty"`
	Logging       *logging.Config      `json:"logging,omitempty" yaml:"logging,omitempty" toml:"logging,omitempty"`
	Subscriptions []SubscriptionConfig `json:"subscriptions" yaml:"subscriptions" toml:"subscriptions"`
}

// SubscriptionConfig is one entry of subscriptions. Polling and webhook
// fields share the entry; mode decides which set applies.
type SubscriptionConfig struct {
	Mode           string         `json:"mode" yaml:"mode" toml:"mode"`
	Username       string         `json:"username" yaml:"username" toml:"username"`
	RepositoryName string         `json:"repositoryName" yaml:"repositoryName" toml:"repositoryName"`
	BranchName     string         `json:"branchName" yaml:"branchName" toml:"branchName"`
	OnEvent        []ActionConfig `json:"onEvent" yaml:"onEvent" toml:"onEvent"`

	// polling
	PollingIntervalSeconds    int               `json:"pollingIntervalSeconds,omitempty" yaml:"pollingIntervalSeconds,omitempty" toml:"pollingIntervalSeconds,omitempty"`
	OverrideEndpoint          string            `json:"overrideEndpoint,omitempty" yaml:"overrideEndpoint,omitempty" toml:"overrideEndpoint,omitempty"`
	ExtraHeaders              map[string]string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty" toml:"extraHeaders,omitempty"`
	PersonalAccessToken       string            `json:"personalAccessToken,omitempty" yaml:"personalAccessToken,omitempty" toml:"personalAccessToken,omitempty"`
	PersonalAccessTokenEnvVar string            `json:"personalAccessTokenEnvVar,omitempty" yaml:"personalAccessTokenEnvVar,omitempty" toml:"personalAccessTokenEnvVar,omitempty"`

	// webhook
	Path         string   `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Actions      []string `json:"actions,omitempty" yaml:"actions,omitempty" toml:"actions,omitempty"`
	Secret       string   `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty"`
	SecretEnvVar string   `json:"secretEnvVar,omitempty" yaml:"secretEnvVar,omitempty" toml:"secretEnvVar,omitempty"`
}

// ActionConfig is one entry of onEvent
type ActionConfig struct {
	ActionType     string   `json:"actionType" yaml:"actionType" toml:"actionType"`
	Name           string   `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Cwd            string   `json:"cwd,omitempty" yaml:"cwd,omitempty" toml:"cwd,omitempty"`
	InlineScript   string   `json:"inlineScript,omitempty" yaml:"inlineScript,omitempty" toml:"inlineScript,omitempty"`
	ScriptFilePath string   `json:"scriptFilePath,omitempty" yaml:"scriptFilePath,omitempty" toml:"scriptFilePath,omitempty"`
	ScriptArgs     []string `json:"scriptArgs,omitempty" yaml:"scriptArgs,omitempty" toml:"scriptArgs,omitempty"`
}

// Load reads the configuration file at path. The decoder is chosen by the
// file extension; anything other than .yaml, .yml and .toml is read as JSON.
func Load(path string) (*Runtime, error) {
	if path == "" {
		return nil, goerr.New("configuration file is not specified")
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read configuration file", goerr.V("path", path))
	}

	var rt Runtime
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &rt)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rt)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&rt)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse configuration file", goerr.V("path", path))
	}

	return &rt, nil
}

// Port returns webhookPort or its default
func (r *Runtime) Port() int {
	if r.WebhookPort == 0 {
		return defaultWebhookPort
	}
	return r.WebhookPort
}

// Validate reports every problem of the configuration at once
func (r *Runtime) Validate() error {
	var errs []error

	if r.WebhookPort < 0 || r.WebhookPort > 65535 {
		errs = append(errs, goerr.New("webhookPort is out of range", goerr.V("webhookPort", r.WebhookPort)))
	}
	if r.Logging != nil {
		if err := r.Logging.Validate(); err != nil {
			errs = append(errs, goerr.Wrap(err, "invalid logging section"))
		}
	}
	if len(r.Subscriptions) == 0 {
		errs = append(errs, goerr.New("no subscriptions configured"))
	}

	paths := map[string]int{}
	for i := range r.Subscriptions {
		sub := &r.Subscriptions[i]
		errs = append(errs, sub.validate(i)...)

		if sub.Mode == string(model.ModeWebhook) && sub.Path != "" {
			if first, ok := paths[sub.Path]; ok {
				errs = append(errs, goerr.New("duplicate webhook path",
					goerr.V("index", i), goerr.V("path", sub.Path), goerr.V("first_index", first)))
				continue
			}
			paths[sub.Path] = i
		}
	}

	return errors.Join(errs...)
}

func (s *SubscriptionConfig) validate(idx int) []error {
	var errs []error
	problem := func(msg string, values ...goerr.Option) {
		opts := append([]goerr.Option{goerr.V("index", idx)}, values...)
		errs = append(errs, goerr.New(msg, opts...))
	}

	if s.Username == "" {
		problem("username is required")
	}
	if s.RepositoryName == "" {
		problem("repositoryName is required")
	}
	if s.BranchName == "" {
		problem("branchName is required")
	}

	hasPolling := s.PollingIntervalSeconds != 0 || s.OverrideEndpoint != "" || len(s.ExtraHeaders) > 0 ||
		s.PersonalAccessToken != "" || s.PersonalAccessTokenEnvVar != ""
	hasWebhook := s.Path != "" || len(s.Actions) > 0 || s.Secret != "" || s.SecretEnvVar != ""

	switch model.SubscriptionMode(s.Mode) {
	case model.ModePolling:
		if hasWebhook {
			problem("polling subscription has webhook fields")
		}
		if s.PollingIntervalSeconds <= 0 {
			problem("pollingIntervalSeconds must be positive", goerr.V("pollingIntervalSeconds", s.PollingIntervalSeconds))
		}
		if s.OverrideEndpoint != "" {
			u, err := url.Parse(s.OverrideEndpoint)
			if err != nil || u.Scheme == "" || u.Host == "" {
				problem("overrideEndpoint must be an absolute URL", goerr.V("overrideEndpoint", s.OverrideEndpoint))
			}
		}

	case model.ModeWebhook:
		if hasPolling {
			problem("webhook subscription has polling fields")
		}
		switch {
		case !strings.HasPrefix(s.Path, "/"):
			problem("path must start with /", goerr.V("path", s.Path))
		case s.Path == reservedPath:
			problem("path is reserved", goerr.V("path", s.Path))
		}
		if len(s.Actions) == 0 {
			problem("actions must list at least one event")
		}

	default:
		problem("unknown mode", goerr.V("mode", s.Mode))
	}

	for j := range s.OnEvent {
		for _, msg := range s.OnEvent[j].problems() {
			problem(msg, goerr.V("action_index", j))
		}
	}

	return errs
}

func (a *ActionConfig) problems() []string {
	var out []string
	switch model.ActionType(a.ActionType) {
	case model.ActionTypeInlineScript:
		if a.InlineScript == "" {
			out = append(out, "inlineScript is required")
		}
		if a.ScriptFilePath != "" || len(a.ScriptArgs) > 0 {
			out = append(out, "inline-script action has file-script fields")
		}
	case model.ActionTypeFileScript:
		if a.ScriptFilePath == "" {
			out = append(out, "scriptFilePath is required")
		}
		if a.InlineScript != "" {
			out = append(out, "file-script action has inlineScript")
		}
	default:
		out = append(out, "unknown actionType "+a.ActionType)
	}
	return out
}

// Models converts the validated entries into domain subscriptions
func (r *Runtime) Models() []*model.Subscription {
	subs := make([]*model.Subscription, 0, len(r.Subscriptions))
	for i := range r.Subscriptions {
		subs = append(subs, r.Subscriptions[i].toModel())
	}
	return subs
}

func (s *SubscriptionConfig) toModel() *model.Subscription {
	sub := &model.Subscription{
		Username:       s.Username,
		RepositoryName: s.RepositoryName,
		BranchName:     s.BranchName,
		Mode:           model.SubscriptionMode(s.Mode),
		Actions:        make([]model.Action, 0, len(s.OnEvent)),
	}
	for i := range s.OnEvent {
		sub.Actions = append(sub.Actions, s.OnEvent[i].toModel())
	}

	switch sub.Mode {
	case model.ModePolling:
		sub.Polling = &model.PollingConfig{
			IntervalSeconds:  s.PollingIntervalSeconds,
			OverrideEndpoint: s.OverrideEndpoint,
			ExtraHeaders:     s.ExtraHeaders,
			Token:            model.Credential(s.PersonalAccessToken),
			TokenEnvVar:      s.PersonalAccessTokenEnvVar,
		}
	case model.ModeWebhook:
		sub.Webhook = &model.WebhookConfig{
			Path:      s.Path,
			Events:    s.Actions,
			Secret:    model.Credential(s.Secret),
			SecretEnv: s.SecretEnvVar,
		}
	}

	return sub
}

func (a *ActionConfig) toModel() model.Action {
	if model.ActionType(a.ActionType) == model.ActionTypeFileScript {
		return &model.FileScript{
			Name: a.Name,
			Cwd:  a.Cwd,
			Path: a.ScriptFilePath,
			Args: a.ScriptArgs,
		}
	}
	return &model.InlineScript{
		Name:    a.Name,
		Cwd:     a.Cwd,
		Command: a.InlineScript,
	}
}
