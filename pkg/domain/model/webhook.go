package model

import (
	"encoding/json"
	"time"
)

// WebhookDelivery is one inbound webhook request routed to a subscription
type WebhookDelivery struct {
	ID           string    // X-GitHub-Delivery header, or generated
	Event        string    // body "action" field, or X-GitHub-Event header
	Subscription string    // Subscription.Key()
	Sender       string    // sender login when the payload carries one
	ReceivedAt   time.Time // time the request was received
}

// WebhookPayload is the part of the request body the dispatcher reads
type WebhookPayload struct {
	Action string          `json:"action"`
	Sender json.RawMessage `json:"sender,omitempty"`
}

// SenderLogin returns the sender login. GitHub sends an object with a login
// field; simpler senders post a bare string.
func (p *WebhookPayload) SenderLogin() string {
	if len(p.Sender) == 0 {
		return ""
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(p.Sender, &user); err == nil {
		return user.Login
	}
	var name string
	if err := json.Unmarshal(p.Sender, &name); err == nil {
		return name
	}
	return ""
}
