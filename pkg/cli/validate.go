package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/infra/routes"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var routesPath string

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a routing rules file without starting the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "routes",
				Usage:       "Path to YAML routing rules file",
				Required:    true,
				Destination: &routesPath,
				Sources:     cli.EnvVars("DROVER_ROUTES"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			ruleSet, err := routes.Load(routesPath)
			if err != nil {
				return goerr.Wrap(err, "routes file is invalid")
			}

			for i, rule := range ruleSet.Rules {
				logger.Info("rule",
					slog.Int("index", i),
					slog.String("pattern", rule.Pattern),
					slog.Bool("enabled", rule.Enabled),
					slog.Int("conditions", len(rule.Conditions)),
					slog.String("description", rule.Description),
				)
			}
			logger.Info("routes file is valid",
				slog.String("path", routesPath),
				slog.Int("rules", len(ruleSet.Rules)),
			)
			return nil
		},
	}
}
