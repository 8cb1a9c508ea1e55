package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Webhook holds Linear webhook verification and routing configuration
type Webhook struct {
	Secret              string
	SkipVerify          bool
	MaxDeliveryAge      time.Duration
	RoutesPath          string
	ChangedWithoutPrior bool
}

// Flags returns CLI flags for webhook configuration
func (c *Webhook) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "webhook-secret",
			Usage:       "Linear webhook signing secret (unset rejects all deliveries unless verification is disabled)",
			Destination: &c.Secret,
			Sources:     cli.EnvVars("DROVER_WEBHOOK_SECRET"),
		},
		&cli.BoolFlag{
			Name:        "insecure-skip-verify",
			Usage:       "Disable webhook signature verification (local development only)",
			Destination: &c.SkipVerify,
			Sources:     cli.EnvVars("DROVER_INSECURE_SKIP_VERIFY"),
		},
		&cli.DurationFlag{
			Name:        "max-delivery-age",
			Usage:       "Reject deliveries whose timestamp is older than this",
			Value:       time.Minute,
			Destination: &c.MaxDeliveryAge,
			Sources:     cli.EnvVars("DROVER_MAX_DELIVERY_AGE"),
		},
		&cli.StringFlag{
			Name:        "routes",
			Usage:       "Path to YAML routing rules file",
			Required:    true,
			Destination: &c.RoutesPath,
			Sources:     cli.EnvVars("DROVER_ROUTES"),
		},
		&cli.BoolFlag{
			Name:        "changed-without-prior",
			Usage:       "Treat the 'changed' condition as true when a delivery has no prior-state snapshot",
			Destination: &c.ChangedWithoutPrior,
			Sources:     cli.EnvVars("DROVER_CHANGED_WITHOUT_PRIOR"),
		},
	}
}
