package model

import "time"

// AgentStatus is the terminal state of one agent run
type AgentStatus string

const (
	AgentStatusSuccess        AgentStatus = "success"
	AgentStatusError          AgentStatus = "error"
	AgentStatusTimeout        AgentStatus = "timeout"
	AgentStatusBudgetExceeded AgentStatus = "budget_exceeded"
	// AgentStatusSkipped means the dedup key was already seen and the
	// delivery was acknowledged without running the agent again
	AgentStatusSkipped AgentStatus = "skipped"
)

// TokenUsage aggregates token counts reported by the agent
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
}

// Total returns input plus output tokens
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// AgentResult is the outcome of one agent execution
type AgentResult struct {
	Status     AgentStatus
	SessionID  string
	ResultText string
	Usage      TokenUsage
	CostUSD    float64
	NumTurns   int
	Duration   time.Duration
	Error      string
}
