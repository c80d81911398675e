package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkout/internal/reconcile"
)

func reconcileCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve stale pending purchases against the eSewa status API",
		Long: `Lists pending eSewa purchases older than RECONCILE_MIN_AGE and asks the
gateway for their status. Purchases the gateway reports COMPLETE are
completed exactly as a successful callback would complete them.

Examples:
  checkout reconcile --once
  checkout reconcile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			reconciler := reconcile.NewReconciler(
				app.service,
				app.cfg.ReconcileInterval,
				app.cfg.ReconcileMinAge,
				app.cfg.ReconcileBatchSize,
				app.logger.With(zap.String("component", "Reconciler")),
			)

			if !once {
				reconciler.Start(ctx)
				return nil
			}

			summary, err := reconciler.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d completed=%d failed=%d\n",
				summary.Checked, summary.Completed, summary.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}
