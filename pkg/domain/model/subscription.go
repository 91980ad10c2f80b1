package model

import (
	"fmt"
	"os"
	"time"
)

// SubscriptionMode selects how a branch is watched
type SubscriptionMode string

const (
	ModePolling SubscriptionMode = "polling"
	ModeWebhook SubscriptionMode = "webhook"
)

// DefaultEndpoint is the API host used when a polling subscription does not
// override it
const DefaultEndpoint = "https://api.github.com"

// Credential is a secret value. It is redacted by every log sink.
type Credential string

// Subscription is one watched branch and the actions to run when it changes.
// Exactly one of Polling and Webhook is set, matching Mode.
type Subscription struct {
	Username       string
	RepositoryName string
	BranchName     string
	Mode           SubscriptionMode
	Actions        []Action

	Polling *PollingConfig
	Webhook *WebhookConfig
}

// PollingConfig holds the fields only a polling subscription carries
type PollingConfig struct {
	IntervalSeconds  int
	OverrideEndpoint string
	ExtraHeaders     map[string]string
	Token            Credential
	TokenEnvVar      string
}

// WebhookConfig holds the fields only a webhook subscription carries
type WebhookConfig struct {
	Path      string
	Events    []string
	Secret    Credential
	SecretEnv string
}

// Key identifies the subscription as owner:repo:branch
func (s *Subscription) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.Username, s.RepositoryName, s.BranchName)
}

// FullName returns owner/repo/branch for log messages
func (s *Subscription) FullName() string {
	return fmt.Sprintf("%s/%s/%s", s.Username, s.RepositoryName, s.BranchName)
}

// Interval converts IntervalSeconds into a duration using unit as one second
func (p *PollingConfig) Interval(unit time.Duration) time.Duration {
	return time.Duration(p.IntervalSeconds) * unit
}

// Endpoint returns the override endpoint or DefaultEndpoint
func (p *PollingConfig) Endpoint() string {
	if p.OverrideEndpoint != "" {
		return p.OverrideEndpoint
	}
	return DefaultEndpoint
}

// ResolveToken returns the literal token if set, otherwise the value of the
// configured environment variable. An empty result means no credential.
func (p *PollingConfig) ResolveToken(lookupEnv func(string) (string, bool)) Credential {
	return resolveCredential(p.Token, p.TokenEnvVar, lookupEnv)
}

// Accepts reports whether event is in the allow-list
func (w *WebhookConfig) Accepts(event string) bool {
	if event == "" {
		return false
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// ResolveSecret returns the signing secret, literal first, then environment
func (w *WebhookConfig) ResolveSecret(lookupEnv func(string) (string, bool)) Credential {
	return resolveCredential(w.Secret, w.SecretEnv, lookupEnv)
}

func resolveCredential(literal Credential, envVar string, lookupEnv func(string) (string, bool)) Credential {
	if literal != "" {
		return literal
	}
	if envVar == "" {
		return ""
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if v, ok := lookupEnv(envVar); ok {
		return Credential(v)
	}
	return ""
}
