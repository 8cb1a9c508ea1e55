package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// WebhookUseCase is the single entry point of the routing engine. It is
// transport-agnostic: the HTTP controller hands over raw body bytes and
// extracted headers, and maps the returned Outcome to a response.
type WebhookUseCase interface {
	ProcessDelivery(ctx context.Context, body []byte, hdr model.DeliveryHeaders) (*model.Outcome, error)
}

// RuleSource supplies the active rule-set snapshot. Implementations must
// return an immutable set; a reload swaps the whole snapshot so readers
// never observe partial state.
type RuleSource interface {
	Active() *model.RuleSet
}
