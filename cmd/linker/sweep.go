package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go_domainlink/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSweepCmd(load func() (*config.Config, error)) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one verification sweep and intent recovery pass, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return sweepOnce(cmd.Context(), cfg, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to let resumed workflows run before exiting")
	return cmd
}

func sweepOnce(parent context.Context, cfg *config.Config, wait time.Duration) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disconnect, err := connect(cfg)
	if err != nil {
		return err
	}
	defer disconnect()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}

	stats := a.worker.RunOnce(ctx)
	logrus.Infof("Sweep done: exhausted=%d, expired=%d, candidates=%d, redriven=%d, skipped=%d, recovered=%d, errors=%d",
		stats.Exhausted, stats.Expired, stats.Candidates, stats.Redriven, stats.Skipped, stats.Recovered, stats.Errors)

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := a.orchestrator.WaitIdle(waitCtx); err != nil {
		logrus.Warnf("Workflows still running after %s, the next sweep resumes them", wait)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return a.orchestrator.Shutdown(shutdownCtx)
}
