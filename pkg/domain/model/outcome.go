package model

// OutcomeStatus is the terminal state of one processed delivery
type OutcomeStatus string

const (
	StatusDispatched        OutcomeStatus = "dispatched"
	StatusRejectedSignature OutcomeStatus = "rejected_signature"
	StatusRejectedTimestamp OutcomeStatus = "rejected_timestamp"
	StatusRejectedParse     OutcomeStatus = "rejected_parse"
	StatusNoMatch           OutcomeStatus = "no_match"
)

// Outcome is the result of processing one webhook delivery. Prompt and
// DedupKey are populated only for StatusDispatched.
type Outcome struct {
	Status   OutcomeStatus
	Message  string
	EventKey string
	Prompt   string
	DedupKey string
}

// DeliveryHeaders carries the Linear-specific request headers the engine
// needs, keeping it independent of any HTTP types.
type DeliveryHeaders struct {
	Signature  string // Linear-Signature
	EventType  string // Linear-Event
	DeliveryID string // Linear-Delivery
}

// DispatchMetadata travels with a dispatch so downstream consumers
// (agent runner, notifier) can report without re-parsing the payload.
type DispatchMetadata struct {
	EntityType string
	Action     string
	URL        string
	ActorName  string
	DeliveryID string
}

// DispatchRequest is the tuple handed to the agent execution service.
// DedupKey is deterministic in entity id and delivery id, so redelivery
// of an identical webhook can be suppressed downstream.
type DispatchRequest struct {
	Prompt   string
	DedupKey string
	Metadata DispatchMetadata
}

// EventKey returns the "Type.action" key of the originating event
func (r *DispatchRequest) EventKey() string {
	return r.Metadata.EntityType + "." + r.Metadata.Action
}
