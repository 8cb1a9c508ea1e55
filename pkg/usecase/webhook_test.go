package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/routes"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/gt"
)

type mockRunner struct {
	mu     sync.Mutex
	calls  []*model.DispatchRequest
	result *model.AgentResult
}

func (m *mockRunner) Run(ctx context.Context, req *model.DispatchRequest) (*model.AgentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.result != nil {
		return m.result, nil
	}
	return &model.AgentResult{Status: model.AgentStatusSuccess}, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

const testSecret = "engine-test-secret"

func signedBody(t *testing.T, secret string, payload map[string]any) ([]byte, model.DeliveryHeaders) {
	t.Helper()

	body, err := json.Marshal(payload)
	gt.NoError(t, err)

	return body, model.DeliveryHeaders{
		Signature:  sign(secret, body),
		EventType:  "Issue",
		DeliveryID: "delivery-1",
	}
}

func issuePayload(action string, tsMS int64) map[string]any {
	return map[string]any{
		"action": action,
		"type":   "Issue",
		"data": map[string]any{
			"id":       "issue-42",
			"title":    "Fix login bug",
			"priority": 1,
		},
		"url":              "https://linear.app/team/issue/ABC-42",
		"webhookTimestamp": tsMS,
	}
}

func newEngine(runner *mockRunner, rules []model.Rule, opts ...usecase.Option) *engineFixture {
	now := time.UnixMilli(1700000000000)
	store := routes.NewStaticStore(&model.RuleSet{Rules: rules})

	base := []usecase.Option{
		usecase.WithSecret(testSecret),
		usecase.WithMaxDeliveryAge(time.Minute),
		usecase.WithAgentRunner(runner),
		usecase.WithSyncDispatch(),
		usecase.WithClock(func() time.Time { return now }),
	}
	uc := usecase.NewWebhook(store, append(base, opts...)...)

	return &engineFixture{uc: uc, now: now}
}

type engineFixture struct {
	uc  interfaces.WebhookUseCase
	now time.Time
}

func TestProcessDelivery_Dispatched(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "Issue.create", Enabled: true, Template: "New: {title} (P{priority})"},
	})

	body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusDispatched)
	gt.Equal(t, outcome.EventKey, "Issue.create")
	gt.Equal(t, outcome.Prompt, "New: Fix login bug (P1)")
	gt.True(t, outcome.DedupKey != "")

	gt.Equal(t, runner.callCount(), 1)
	gt.Equal(t, runner.calls[0].Prompt, "New: Fix login bug (P1)")
	gt.Equal(t, runner.calls[0].DedupKey, outcome.DedupKey)
	gt.Equal(t, runner.calls[0].Metadata.EntityType, "Issue")
	gt.Equal(t, runner.calls[0].Metadata.Action, "create")
	gt.Equal(t, runner.calls[0].Metadata.URL, "https://linear.app/team/issue/ABC-42")
}

func TestProcessDelivery_WrongSecret(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "*", Enabled: true, Template: "{title}"},
	})

	body, hdr := signedBody(t, "wrong-secret", issuePayload("create", fx.now.UnixMilli()))
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusRejectedSignature)
	gt.Equal(t, runner.callCount(), 0)
}

func TestProcessDelivery_MissingSignatureHeader(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "*", Enabled: true, Template: "{title}"},
	})

	body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))
	hdr.Signature = ""
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusRejectedSignature)
	gt.Equal(t, runner.callCount(), 0)
}

func TestProcessDelivery_StaleTimestamp(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "*", Enabled: true, Template: "{title}"},
	})

	// 120s old with a 60s window
	body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.Add(-120*time.Second).UnixMilli()))
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusRejectedTimestamp)
	gt.Equal(t, runner.callCount(), 0)
}

func TestProcessDelivery_MalformedPayload(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "*", Enabled: true, Template: "{title}"},
	})

	body := []byte(`{"not":"an event"}`)
	hdr := model.DeliveryHeaders{Signature: sign(testSecret, body), DeliveryID: "delivery-1"}

	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)
	gt.Equal(t, outcome.Status, model.StatusRejectedParse)
	gt.Equal(t, runner.callCount(), 0)
}

func TestProcessDelivery_NoMatch(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "Issue.create", Enabled: true, Template: "{title}"},
	})

	body, hdr := signedBody(t, testSecret, issuePayload("update", fx.now.UnixMilli()))
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusNoMatch)
	gt.Equal(t, outcome.EventKey, "Issue.update")
	gt.Equal(t, runner.callCount(), 0)
}

func TestProcessDelivery_SkipVerifyAcceptsUnsigned(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "Issue.create", Enabled: true, Template: "{title}"},
	}, usecase.WithInsecureSkipVerify())

	body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))
	hdr.Signature = ""
	outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, outcome.Status, model.StatusDispatched)
	gt.Equal(t, runner.callCount(), 1)
}

func TestProcessDelivery_PostMatchHook(t *testing.T) {
	t.Run("veto turns a match into no_match", func(t *testing.T) {
		runner := &mockRunner{}
		fx := newEngine(runner, []model.Rule{
			{Pattern: "Issue.create", Enabled: true, Template: "{title}"},
		}, usecase.WithPostMatchHook(func(ctx context.Context, ev *model.Event, rule *model.Rule) bool {
			return false
		}))

		body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))
		outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

		gt.Equal(t, outcome.Status, model.StatusNoMatch)
		gt.Equal(t, runner.callCount(), 0)
	})

	t.Run("passing hook sees event and rule", func(t *testing.T) {
		runner := &mockRunner{}
		var hookedPattern string
		fx := newEngine(runner, []model.Rule{
			{Pattern: "Issue.create", Enabled: true, Template: "{title}"},
		}, usecase.WithPostMatchHook(func(ctx context.Context, ev *model.Event, rule *model.Rule) bool {
			hookedPattern = rule.Pattern
			return ev.EntityType == "Issue"
		}))

		body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))
		outcome := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

		gt.Equal(t, outcome.Status, model.StatusDispatched)
		gt.Equal(t, hookedPattern, "Issue.create")
		gt.Equal(t, runner.callCount(), 1)
	})
}

func TestProcessDelivery_DedupKeyDeterministic(t *testing.T) {
	runner := &mockRunner{}
	fx := newEngine(runner, []model.Rule{
		{Pattern: "Issue.create", Enabled: true, Template: "{title}"},
	})

	body, hdr := signedBody(t, testSecret, issuePayload("create", fx.now.UnixMilli()))

	first := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)
	second := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)

	gt.Equal(t, first.DedupKey, second.DedupKey)

	hdr.DeliveryID = "delivery-2"
	third := gt.R1(fx.uc.ProcessDelivery(context.Background(), body, hdr)).NoError(t)
	gt.True(t, third.DedupKey != first.DedupKey)
}
