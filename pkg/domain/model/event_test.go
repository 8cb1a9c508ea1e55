package model_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"action": "update",
		"type": "Issue",
		"actor": {"id": "actor-1", "name": "Alice"},
		"data": {
			"id": "issue-42",
			"title": "Fix login bug",
			"priority": 1,
			"state": {"name": "In Progress", "type": "started"},
			"assignee": {"name": "Claude"},
			"labels": ["bug", "auth"]
		},
		"updatedFrom": {"state": {"name": "Todo"}},
		"url": "https://linear.app/team/issue/ABC-42",
		"webhookTimestamp": 1700000000000,
		"organizationId": "org-1"
	}`)

	event := gt.R1(model.ParseEvent(body)).NoError(t)

	gt.Equal(t, event.EntityType, "Issue")
	gt.Equal(t, event.Action, "update")
	gt.Equal(t, event.Key(), "Issue.update")
	gt.Equal(t, event.EntityID, "issue-42")
	gt.Equal(t, event.ActorName, "Alice")
	gt.Equal(t, event.URL, "https://linear.app/team/issue/ABC-42")
	gt.Equal(t, event.OccurredAt, int64(1700000000000))
	gt.Equal(t, event.OrganizationID, "org-1")

	gt.Equal(t, event.Fields["title"], "Fix login bug")
	gt.Equal(t, event.Fields["priority"], any(float64(1)))
	gt.Equal(t, event.Fields["state.name"], "In Progress")
	gt.Equal(t, event.Fields["assignee.name"], "Claude")
	gt.Equal(t, event.Fields["labels[0]"], "bug")
	if _, ok := event.Fields["labels"].([]any); !ok {
		t.Error("labels should be kept whole as a slice")
	}

	gt.NotNil(t, event.PreviousFields)
	gt.Equal(t, event.PreviousFields["state.name"], "Todo")
}

func TestParseEvent_NoPriorState(t *testing.T) {
	body := []byte(`{"action":"create","type":"Issue","data":{"id":"i1"},"webhookTimestamp":1}`)

	event := gt.R1(model.ParseEvent(body)).NoError(t)
	gt.True(t, event.PreviousFields == nil)
}

func TestParseEvent_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `{{{`},
		{name: "missing type", body: `{"action":"create","data":{}}`},
		{name: "missing action", body: `{"type":"Issue","data":{}}`},
		{name: "empty type", body: `{"action":"create","type":"","data":{}}`},
		{name: "JSON scalar", body: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ParseEvent([]byte(tt.body))
			gt.Error(t, err)
		})
	}
}

func TestParseEvent_DepthCap(t *testing.T) {
	// Build a payload nested well past the flatten depth cap; parsing
	// must terminate and keep the deep remainder as an opaque value.
	inner := `"leaf"`
	for i := 0; i < 40; i++ {
		inner = fmt.Sprintf(`{"n%d": %s}`, i, inner)
	}
	body := fmt.Sprintf(`{"action":"create","type":"Issue","data":{"deep": %s},"webhookTimestamp":1}`, inner)

	// Sanity check the constructed body
	var check map[string]any
	gt.NoError(t, json.Unmarshal([]byte(body), &check))

	event := gt.R1(model.ParseEvent([]byte(body))).NoError(t)

	for path := range event.Fields {
		if strings.Count(path, ".") > 8 {
			t.Errorf("field path exceeds depth cap: %s", path)
		}
	}
}
