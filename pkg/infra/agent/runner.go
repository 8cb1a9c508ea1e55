package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// Config holds agent runner configuration. Command is a headless agent
// CLI; the rendered prompt is appended as the final argument and the run
// result is expected as a single JSON document on stdout.
type Config struct {
	Command      string
	Args         []string
	WorkDir      string
	Timeout      time.Duration
	MaxBudgetUSD float64
	CostLogPath  string
	DedupTTL     time.Duration
}

// Runner executes agent tasks as subprocesses with idempotency and
// budget awareness. It implements interfaces.AgentRunner.
type Runner struct {
	cfg   Config
	dedup *dedupStore
	costs *costLog
}

// New creates a Runner. When CostLogPath is set, existing entries are
// scanned so the budget guard survives restarts.
func New(cfg Config) (*Runner, error) {
	if cfg.Command == "" {
		return nil, goerr.New("agent command must not be empty")
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = time.Hour
	}

	r := &Runner{
		cfg:   cfg,
		dedup: newDedupStore(cfg.DedupTTL),
	}

	if cfg.CostLogPath != "" {
		costs, err := openCostLog(cfg.CostLogPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open cost log", goerr.V("path", cfg.CostLogPath))
		}
		r.costs = costs
	}

	return r, nil
}

// cliResult is the JSON document a headless agent run prints on stdout
type cliResult struct {
	Result       string           `json:"result"`
	IsError      bool             `json:"is_error"`
	TotalCostUSD float64          `json:"total_cost_usd"`
	NumTurns     int              `json:"num_turns"`
	Usage        model.TokenUsage `json:"usage"`
}

// Run executes one dispatch. A dedup key seen within TTL short-circuits
// to AgentStatusSkipped without spawning a process. Agent-side failures
// come back as a result with a failure status, not as an error; errors
// mean the runner itself could not operate.
func (r *Runner) Run(ctx context.Context, req *model.DispatchRequest) (*model.AgentResult, error) {
	logger := ctxlog.From(ctx)

	if !r.dedup.markIfNew(req.DedupKey) {
		return &model.AgentResult{
			Status: model.AgentStatusSkipped,
		}, nil
	}

	if r.cfg.MaxBudgetUSD > 0 && r.costs != nil {
		if spent := r.costs.Total(); spent >= r.cfg.MaxBudgetUSD {
			logger.Warn("budget exhausted, refusing agent run",
				"spent_usd", spent,
				"budget_usd", r.cfg.MaxBudgetUSD,
			)
			return &model.AgentResult{
				Status: model.AgentStatusBudgetExceeded,
				Error:  "cumulative cost exceeds configured budget",
			}, nil
		}
	}

	sessionID := uuid.NewString()
	start := time.Now()

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := append(slices.Clone(r.cfg.Args), req.Prompt)
	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	cmd.Dir = r.cfg.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("starting agent run",
		"session_id", sessionID,
		"event_key", req.EventKey(),
		"command", r.cfg.Command,
	)

	err := cmd.Run()
	duration := time.Since(start)

	result := &model.AgentResult{
		SessionID: sessionID,
		Duration:  duration,
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.Status = model.AgentStatusTimeout
		result.Error = "agent run exceeded timeout of " + r.cfg.Timeout.String()

	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, goerr.Wrap(err, "failed to start agent process",
				goerr.V("command", r.cfg.Command),
			)
		}
		result.Status = model.AgentStatusError
		result.Error = tail(stderr.String(), 2048)

	default:
		parseOutput(stdout.Bytes(), result)
	}

	r.recordCost(ctx, sessionID, req, result)
	return result, nil
}

// parseOutput fills result from the agent's stdout. Output that is not
// the expected JSON document is kept verbatim as the result text; an
// agent that prints plain text still produced a usable answer.
func parseOutput(output []byte, result *model.AgentResult) {
	var parsed cliResult
	if err := json.Unmarshal(bytes.TrimSpace(output), &parsed); err != nil {
		result.Status = model.AgentStatusSuccess
		result.ResultText = strings.TrimSpace(string(output))
		return
	}

	result.ResultText = parsed.Result
	result.CostUSD = parsed.TotalCostUSD
	result.NumTurns = parsed.NumTurns
	result.Usage = parsed.Usage
	if parsed.IsError {
		result.Status = model.AgentStatusError
		result.Error = parsed.Result
	} else {
		result.Status = model.AgentStatusSuccess
	}
}

func (r *Runner) recordCost(ctx context.Context, sessionID string, req *model.DispatchRequest, result *model.AgentResult) {
	if r.costs == nil || result.CostUSD == 0 {
		return
	}

	entry := costEntry{
		Timestamp:    time.Now().UTC(),
		SessionID:    sessionID,
		DedupKey:     req.DedupKey,
		EventKey:     req.EventKey(),
		CostUSD:      result.CostUSD,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}
	if err := r.costs.Append(entry); err != nil {
		ctxlog.From(ctx).Warn("failed to append cost entry", "error", err)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
