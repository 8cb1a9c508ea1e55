package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// WebhookHandler receives Linear webhook deliveries and hands them to
// the routing engine. All protocol decisions (signature, replay, rule
// matching) happen in the use case; this layer only moves bytes and
// maps outcomes to HTTP responses.
type WebhookHandler struct {
	webhookUC    interfaces.WebhookUseCase
	maxBodyBytes int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookUC interfaces.WebhookUseCase, maxBodyBytes int64) *WebhookHandler {
	return &WebhookHandler{
		webhookUC:    webhookUC,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		logger.Error("failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	hdr := model.DeliveryHeaders{
		Signature:  r.Header.Get("Linear-Signature"),
		EventType:  r.Header.Get("Linear-Event"),
		DeliveryID: r.Header.Get("Linear-Delivery"),
	}

	outcome, err := h.webhookUC.ProcessDelivery(ctx, body, hdr)
	if err != nil {
		logger.Error("failed to process webhook delivery", "error", err)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	writeOutcome(w, outcome)
}

// writeOutcome maps an engine outcome to an HTTP response. Rejections of
// untrusted payloads are 401, malformed or stale ones 400, and both
// dispatch and no-match acknowledge with 200 so the source service does
// not retry deliveries we have already judged.
func writeOutcome(w http.ResponseWriter, outcome *model.Outcome) {
	var status int
	resp := map[string]string{
		"message": outcome.Message,
	}

	switch outcome.Status {
	case model.StatusDispatched:
		status = http.StatusOK
		resp["status"] = "accepted"
		resp["event_key"] = outcome.EventKey
	case model.StatusNoMatch:
		status = http.StatusOK
		resp["status"] = "ignored"
		resp["event_key"] = outcome.EventKey
	case model.StatusRejectedSignature:
		status = http.StatusUnauthorized
		resp["status"] = "rejected"
	case model.StatusRejectedParse, model.StatusRejectedTimestamp:
		status = http.StatusBadRequest
		resp["status"] = "rejected"
	default:
		status = http.StatusInternalServerError
		resp["status"] = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
