package usecase

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/isaac-j-miller/git-watcher/pkg/domain/interfaces"
	"github.com/isaac-j-miller/git-watcher/pkg/domain/model"
	"github.com/isaac-j-miller/git-watcher/pkg/logging"
)

type webhookUseCase struct {
	runner interfaces.ActionRunner
}

// NewWebhook creates a WebhookUseCase that runs actions through runner
func NewWebhook(runner interfaces.ActionRunner) interfaces.WebhookUseCase {
	return &webhookUseCase{runner: runner}
}

// HandleDelivery runs the subscription's actions when the delivery's event
// is allow-listed. Actions finish before it returns.
func (uc *webhookUseCase) HandleDelivery(ctx context.Context, sub *model.Subscription, delivery *model.WebhookDelivery) (ran bool, err error) {
	logger := logging.From(ctx)

	if sub.Webhook == nil {
		return false, goerr.New("subscription is not in webhook mode", goerr.V("subscription", sub.Key()))
	}

	logger.Info("Processing webhook delivery",
		"id", delivery.ID,
		"event", delivery.Event,
		"subscription", delivery.Subscription,
		"sender", delivery.Sender,
	)

	if !sub.Webhook.Accepts(delivery.Event) {
		logger.Debug("Event is not allow-listed", "event", delivery.Event, "allowed", sub.Webhook.Events)
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ran = false
			err = goerr.New("panic while running actions",
				goerr.V("recover", fmt.Sprintf("%v", r)),
				goerr.V("delivery_id", delivery.ID))
		}
	}()

	uc.runner.Run(ctx, sub.Actions)
	return true, nil
}
