package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Agent holds agent execution configuration
type Agent struct {
	Command      string
	Args         []string
	WorkDir      string
	Timeout      time.Duration
	MaxBudgetUSD float64
	CostLogPath  string
	DedupTTL     time.Duration
}

// Flags returns CLI flags for agent configuration
func (c *Agent) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "agent-command",
			Usage:       "Headless agent CLI to execute (empty acknowledges deliveries without running anything)",
			Destination: &c.Command,
			Sources:     cli.EnvVars("DROVER_AGENT_COMMAND"),
		},
		&cli.StringSliceFlag{
			Name:        "agent-arg",
			Usage:       "Extra argument passed to the agent CLI before the prompt (repeatable)",
			Destination: &c.Args,
			Sources:     cli.EnvVars("DROVER_AGENT_ARGS"),
		},
		&cli.StringFlag{
			Name:        "agent-workdir",
			Usage:       "Working directory for agent runs",
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("DROVER_AGENT_WORKDIR"),
		},
		&cli.DurationFlag{
			Name:        "agent-timeout",
			Usage:       "Timeout for a single agent run",
			Value:       10 * time.Minute,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("DROVER_AGENT_TIMEOUT"),
		},
		&cli.FloatFlag{
			Name:        "max-budget-usd",
			Usage:       "Refuse agent runs once cumulative cost reaches this amount (0 disables)",
			Destination: &c.MaxBudgetUSD,
			Sources:     cli.EnvVars("DROVER_MAX_BUDGET_USD"),
		},
		&cli.StringFlag{
			Name:        "cost-log",
			Usage:       "JSONL file recording per-run cost entries",
			Destination: &c.CostLogPath,
			Sources:     cli.EnvVars("DROVER_COST_LOG"),
		},
		&cli.DurationFlag{
			Name:        "dedup-ttl",
			Usage:       "How long a dedup key suppresses re-running the same delivery",
			Value:       time.Hour,
			Destination: &c.DedupTTL,
			Sources:     cli.EnvVars("DROVER_DEDUP_TTL"),
		},
	}
}
