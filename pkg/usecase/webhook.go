package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/async"
)

type webhookUseCase struct {
	rules      interfaces.RuleSource
	runner     interfaces.AgentRunner
	notifier   interfaces.Notifier
	secret     string
	skipVerify bool
	maxAge     time.Duration
	matchOpts  model.MatchOptions
	postMatch  PostMatchHook
	now        func() time.Time
	syncRun    bool
}

// PostMatchHook runs after a rule matches and before the template is
// rendered. Returning false vetoes the dispatch and the delivery is
// acknowledged as unrouted. Custom routing logic composes here instead
// of extending the rule types.
type PostMatchHook func(ctx context.Context, ev *model.Event, rule *model.Rule) bool

// Option is a functional option for the webhook use case
type Option func(*webhookUseCase)

// WithSecret sets the shared signing secret. Leaving it empty rejects
// every delivery unless WithInsecureSkipVerify is also applied.
func WithSecret(secret string) Option {
	return func(uc *webhookUseCase) {
		uc.secret = secret
	}
}

// WithInsecureSkipVerify disables signature verification entirely.
// Meant for local development against replayed payloads only.
func WithInsecureSkipVerify() Option {
	return func(uc *webhookUseCase) {
		uc.skipVerify = true
	}
}

// WithMaxDeliveryAge sets the replay protection window
func WithMaxDeliveryAge(d time.Duration) Option {
	return func(uc *webhookUseCase) {
		uc.maxAge = d
	}
}

// WithAgentRunner sets the agent execution service. Without one, matched
// deliveries are acknowledged and logged but nothing runs.
func WithAgentRunner(runner interfaces.AgentRunner) Option {
	return func(uc *webhookUseCase) {
		uc.runner = runner
	}
}

// WithNotifier sets the result notifier
func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *webhookUseCase) {
		uc.notifier = n
	}
}

// WithChangedWithoutPrior switches the "changed" condition to the
// permissive reading when the payload has no prior-state snapshot
func WithChangedWithoutPrior() Option {
	return func(uc *webhookUseCase) {
		uc.matchOpts.TreatMissingPriorAsChanged = true
	}
}

// WithPostMatchHook installs a veto hook invoked after rule matching
func WithPostMatchHook(hook PostMatchHook) Option {
	return func(uc *webhookUseCase) {
		uc.postMatch = hook
	}
}

// WithClock overrides the wall clock, used by replay window tests
func WithClock(now func() time.Time) Option {
	return func(uc *webhookUseCase) {
		uc.now = now
	}
}

// WithSyncDispatch runs the agent before ProcessDelivery returns instead
// of in the background. Tests rely on it for deterministic assertions.
func WithSyncDispatch() Option {
	return func(uc *webhookUseCase) {
		uc.syncRun = true
	}
}

// NewWebhook creates the routing engine use case
func NewWebhook(rules interfaces.RuleSource, opts ...Option) interfaces.WebhookUseCase {
	uc := &webhookUseCase{
		rules:  rules,
		maxAge: time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessDelivery runs the full pipeline for one delivery: signature,
// parse, replay window, rule matching, template rendering, dispatch.
// Signature comes first so no payload-derived value, the timestamp
// included, is trusted before the payload is authenticated. Every
// rejection is an Outcome, not an error; errors are reserved for faults
// of the engine itself.
func (uc *webhookUseCase) ProcessDelivery(ctx context.Context, body []byte, hdr model.DeliveryHeaders) (*model.Outcome, error) {
	logger := ctxlog.From(ctx)

	if !uc.skipVerify {
		if !VerifySignature(body, hdr.Signature, uc.secret) {
			logger.Warn("rejected delivery: signature mismatch",
				"delivery_id", hdr.DeliveryID,
				"event_type", hdr.EventType,
			)
			return &model.Outcome{
				Status:  model.StatusRejectedSignature,
				Message: "invalid webhook signature",
			}, nil
		}
	}

	event, err := model.ParseEvent(body)
	if err != nil {
		logger.Warn("rejected delivery: unparsable payload",
			"delivery_id", hdr.DeliveryID,
			"error", err,
		)
		return &model.Outcome{
			Status:  model.StatusRejectedParse,
			Message: err.Error(),
		}, nil
	}

	nowMS := uc.now().UnixMilli()
	if !CheckTimestamp(event.OccurredAt, nowMS, uc.maxAge) {
		logger.Warn("rejected delivery: timestamp outside replay window",
			"delivery_id", hdr.DeliveryID,
			"event_key", event.Key(),
			"occurred_at_ms", event.OccurredAt,
			"now_ms", nowMS,
			"max_age", uc.maxAge.String(),
		)
		return &model.Outcome{
			Status:   model.StatusRejectedTimestamp,
			Message:  "delivery timestamp outside the accepted window",
			EventKey: event.Key(),
		}, nil
	}

	rule := uc.rules.Active().FirstMatch(event, uc.matchOpts)
	if rule == nil {
		logger.Info("no route for event", "event_key", event.Key())
		return &model.Outcome{
			Status:   model.StatusNoMatch,
			Message:  fmt.Sprintf("no route configured for %s", event.Key()),
			EventKey: event.Key(),
		}, nil
	}

	if uc.postMatch != nil && !uc.postMatch(ctx, event, rule) {
		logger.Info("dispatch vetoed by post-match hook",
			"event_key", event.Key(),
			"rule_pattern", rule.Pattern,
		)
		return &model.Outcome{
			Status:   model.StatusNoMatch,
			Message:  fmt.Sprintf("route for %s vetoed by post-match hook", event.Key()),
			EventKey: event.Key(),
		}, nil
	}

	if unknown := model.UnknownPlaceholders(rule.Template); len(unknown) > 0 {
		logger.Warn("template has unresolvable placeholders, leaving them literal",
			"rule_pattern", rule.Pattern,
			"placeholders", unknown,
		)
	}

	req := &model.DispatchRequest{
		Prompt:   model.RenderTemplate(rule.Template, event),
		DedupKey: dedupKey(event.EntityID, hdr.DeliveryID),
		Metadata: model.DispatchMetadata{
			EntityType: event.EntityType,
			Action:     event.Action,
			URL:        event.URL,
			ActorName:  event.ActorName,
			DeliveryID: hdr.DeliveryID,
		},
	}

	logger.Info("dispatching agent task",
		"event_key", event.Key(),
		"rule_pattern", rule.Pattern,
		"dedup_key", req.DedupKey,
		"delivery_id", hdr.DeliveryID,
	)

	uc.dispatch(ctx, req)

	return &model.Outcome{
		Status:   model.StatusDispatched,
		Message:  fmt.Sprintf("agent dispatched for %s", event.Key()),
		EventKey: event.Key(),
		Prompt:   req.Prompt,
		DedupKey: req.DedupKey,
	}, nil
}

func (uc *webhookUseCase) dispatch(ctx context.Context, req *model.DispatchRequest) {
	if uc.runner == nil {
		ctxlog.From(ctx).Warn("no agent runner configured, delivery acknowledged only",
			"event_key", req.EventKey(),
		)
		return
	}

	run := func(ctx context.Context) error {
		result, err := uc.runner.Run(ctx, req)
		if err != nil {
			return err
		}

		logger := ctxlog.From(ctx)
		switch result.Status {
		case model.AgentStatusSuccess:
			logger.Info("agent run finished",
				"event_key", req.EventKey(),
				"session_id", result.SessionID,
				"total_tokens", result.Usage.Total(),
				"cost_usd", result.CostUSD,
				"duration", result.Duration.String(),
			)
		case model.AgentStatusSkipped:
			logger.Info("duplicate delivery, agent run skipped",
				"event_key", req.EventKey(),
				"dedup_key", req.DedupKey,
			)
		default:
			logger.Error("agent run failed",
				"event_key", req.EventKey(),
				"status", string(result.Status),
				"error", result.Error,
			)
		}

		if uc.notifier != nil && result.Status != model.AgentStatusSkipped {
			if err := uc.notifier.Notify(ctx, req, result); err != nil {
				logger.Warn("failed to send result notification", "error", err)
			}
		}
		return nil
	}

	if uc.syncRun {
		if err := run(ctx); err != nil {
			ctxlog.From(ctx).Error("agent dispatch failed", "error", err)
		}
		return
	}

	async.Dispatch(ctx, run)
}

// dedupKey is deterministic in the entity id and delivery id, so a
// redelivery of the identical webhook maps to the same key.
func dedupKey(entityID, deliveryID string) string {
	sum := sha256.Sum256([]byte(entityID + "\x00" + deliveryID))
	return hex.EncodeToString(sum[:])
}
