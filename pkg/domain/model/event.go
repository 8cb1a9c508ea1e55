package model

import (
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// maxFlattenDepth bounds payload normalization work on adversarial input.
// Anything nested deeper is kept as an opaque value at the capped path.
const maxFlattenDepth = 8

// Event is the normalized form of one Linear webhook delivery.
type Event struct {
	EntityType     string         // "type" field, e.g. "Issue"
	Action         string         // "action" field, e.g. "create"
	EntityID       string         // data.id when present
	Fields         map[string]any // dotted-path view of Data
	PreviousFields map[string]any // dotted-path view of updatedFrom, nil when absent
	ActorName      string
	URL            string
	OccurredAt     int64 // webhookTimestamp, epoch milliseconds
	OrganizationID string
	Data           map[string]any // entity data as delivered
}

// Key returns the routing key in "Type.action" form
func (e *Event) Key() string {
	return e.EntityType + "." + e.Action
}

type linearPayload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Actor  *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"actor"`
	Data             map[string]any `json:"data"`
	URL              string         `json:"url"`
	WebhookTimestamp int64          `json:"webhookTimestamp"`
	OrganizationID   string         `json:"organizationId"`
	UpdatedFrom      map[string]any `json:"updatedFrom"`
}

// ParseEvent decodes a raw Linear webhook body into an Event. Both
// entityType and action must be present; a body that fails to yield them
// is a parse failure, never an Event.
func ParseEvent(raw []byte) (*Event, error) {
	var payload linearPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, goerr.Wrap(err, "failed to decode webhook payload", goerr.T(types.ErrTagParse))
	}

	if payload.Type == "" || payload.Action == "" {
		return nil, goerr.New("webhook payload missing type or action",
			goerr.T(types.ErrTagParse),
			goerr.V("type", payload.Type),
			goerr.V("action", payload.Action),
		)
	}

	event := &Event{
		EntityType:     payload.Type,
		Action:         payload.Action,
		Fields:         flatten(payload.Data),
		URL:            payload.URL,
		OccurredAt:     payload.WebhookTimestamp,
		OrganizationID: payload.OrganizationID,
		Data:           payload.Data,
	}

	if payload.Actor != nil {
		event.ActorName = payload.Actor.Name
	}
	if id, ok := payload.Data["id"].(string); ok {
		event.EntityID = id
	}
	if payload.UpdatedFrom != nil {
		event.PreviousFields = flatten(payload.UpdatedFrom)
	}

	return event, nil
}

// flatten collapses a nested payload into a single-level map keyed by
// dotted paths, e.g. {"assignee": {"name": "x"}} -> {"assignee.name": "x"}.
// Arrays are kept whole at their path and also expanded per index.
func flatten(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		flattenInto(out, key, value, 1)
	}
	return out
}

func flattenInto(out map[string]any, path string, value any, depth int) {
	switch typed := value.(type) {
	case map[string]any:
		if depth >= maxFlattenDepth {
			out[path] = typed
			return
		}
		for key, child := range typed {
			flattenInto(out, path+"."+key, child, depth+1)
		}
	case []any:
		out[path] = typed
		if depth >= maxFlattenDepth {
			return
		}
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child, depth+1)
		}
	default:
		out[path] = value
	}
}
