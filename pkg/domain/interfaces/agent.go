package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// AgentRunner executes one rendered task. Implementations own their
// retry, timeout and idempotency policy; the engine only hands over the
// dispatch tuple and never blocks the webhook response on completion.
type AgentRunner interface {
	Run(ctx context.Context, req *model.DispatchRequest) (*model.AgentResult, error)
}

// Notifier reports a finished agent run to an external channel
type Notifier interface {
	Notify(ctx context.Context, req *model.DispatchRequest, result *model.AgentResult) error
}
