package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/cli/config"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/infra/agent"
	"github.com/m-mizutani/drover/pkg/infra/notify"
	"github.com/m-mizutani/drover/pkg/infra/routes"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg  config.Server
		webhookCfg config.Webhook
		agentCfg   config.Agent
		slackCfg   config.Slack
	)

	flags := serverCfg.Flags()
	flags = append(flags, webhookCfg.Flags()...)
	flags = append(flags, agentCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			store, err := routes.NewStore(webhookCfg.RoutesPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load routing rules")
			}
			logger.Info("routing rules loaded",
				slog.String("path", webhookCfg.RoutesPath),
				slog.Int("rules", len(store.Active().Rules)),
			)

			ucOpts := []usecase.Option{
				usecase.WithSecret(webhookCfg.Secret),
				usecase.WithMaxDeliveryAge(webhookCfg.MaxDeliveryAge),
			}
			if webhookCfg.SkipVerify {
				logger.Warn("webhook signature verification is DISABLED")
				ucOpts = append(ucOpts, usecase.WithInsecureSkipVerify())
			} else if webhookCfg.Secret == "" {
				logger.Warn("no webhook secret configured, all deliveries will be rejected")
			}
			if webhookCfg.ChangedWithoutPrior {
				ucOpts = append(ucOpts, usecase.WithChangedWithoutPrior())
			}

			if agentCfg.Command != "" {
				runner, err := agent.New(agent.Config{
					Command:      agentCfg.Command,
					Args:         agentCfg.Args,
					WorkDir:      agentCfg.WorkDir,
					Timeout:      agentCfg.Timeout,
					MaxBudgetUSD: agentCfg.MaxBudgetUSD,
					CostLogPath:  agentCfg.CostLogPath,
					DedupTTL:     agentCfg.DedupTTL,
				})
				if err != nil {
					return goerr.Wrap(err, "failed to create agent runner")
				}
				ucOpts = append(ucOpts, usecase.WithAgentRunner(runner))
			} else {
				logger.Warn("no agent command configured, matched deliveries are acknowledged only")
			}

			if slackCfg.WebhookURL != "" {
				var notifier interfaces.Notifier = notify.NewSlack(slackCfg.WebhookURL)
				ucOpts = append(ucOpts, usecase.WithNotifier(notifier))
			}

			webhookUC := usecase.NewWebhook(store, ucOpts...)

			server, err := controller.NewServer(
				ctx,
				webhookUC,
				controller.WithAddr(serverCfg.Addr),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// SIGHUP reloads routing rules, SIGINT/SIGTERM shut down
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		loop:
			for {
				select {
				case <-ctx.Done():
					logger.Info("context cancelled, shutting down...")
					break loop
				case sig := <-sigChan:
					if sig == syscall.SIGHUP {
						if err := store.Reload(ctx); err != nil {
							logger.Error("rule reload failed", slog.Any("error", err))
						}
						continue
					}
					logger.Info("signal received, shutting down...", slog.Any("signal", sig))
					break loop
				}
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("server shutdown complete")
			return nil
		},
	}
}
