package interfaces

import (
	"context"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
)

// ActionRunner executes a subscription's action list in order
type ActionRunner interface {
	// Run executes every action sequentially and returns one result per action
	Run(ctx context.Context, actions []model.Action) []*model.ActionResult
}

// WebhookUseCase decides whether a delivery triggers a subscription's actions
type WebhookUseCase interface {
	// HandleDelivery runs the actions when the event is allow-listed. It
	// reports whether the actions ran.
	HandleDelivery(ctx context.Context, sub *model.Subscription, delivery *model.WebhookDelivery) (bool, error)
}

// Notifier reports a failed action to an external channel
type Notifier interface {
	NotifyActionFailure(ctx context.Context, result *model.ActionResult) error
}
