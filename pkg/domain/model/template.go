package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderTemplate substitutes {name} tokens in a rule template with values
// from the event. Unknown placeholders are left as literal text so a typo
// in a routes file produces debuggable output instead of a failed render.
// Values absent from the event render as empty string.
func RenderTemplate(template string, ev *Event) string {
	context := templateContext(ev)

	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := context[name]; ok {
			return value
		}
		return token
	})
}

// templateContext builds the fixed placeholder table. Entity-specific
// values come from the flattened field map; Linear nests workflow state
// as an object, hence "state.name".
func templateContext(ev *Event) map[string]string {
	return map[string]string{
		"action":      ev.Action,
		"type":        ev.EntityType,
		"url":         ev.URL,
		"actor_name":  ev.ActorName,
		"title":       formatValue(ev.Fields["title"]),
		"description": formatValue(ev.Fields["description"]),
		"state":       formatValue(ev.Fields["state.name"]),
		"priority":    formatValue(ev.Fields["priority"]),
		"data":        formatData(ev.Data),
	}
}

// UnknownPlaceholders lists placeholder names in a template that the
// renderer will never resolve. Useful for flagging routes-file typos at
// dispatch time without failing the render.
func UnknownPlaceholders(template string) []string {
	known := map[string]bool{
		"action": true, "type": true, "url": true, "actor_name": true,
		"title": true, "description": true, "state": true,
		"priority": true, "data": true,
	}

	var unknown []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !known[m[1]] {
			unknown = append(unknown, m[1])
		}
	}
	return unknown
}

func formatValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a trailing ".0" so "P{priority}" reads "P1"
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "{}"
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(encoded)
}
