package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/catalog"
	"github.com/lgndcraft2/giving-tree/internal/ledger"
	"github.com/lgndcraft2/giving-tree/internal/payment"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/ratelimit"
	"github.com/lgndcraft2/giving-tree/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// withPayments starts the payment stack without the HTTP server, runs fn
// and shuts everything down.
func withPayments(ctx context.Context, fn func(ctx context.Context, svc paymentdomain.Service, sched *scheduler.Scheduler) error) error {
	var (
		svc   paymentdomain.Service
		sched *scheduler.Scheduler
	)
	app := fx.New(
		fx.NopLogger,
		infrastructure(),
		catalog.Module,
		ledger.Module,
		payment.Module,
		ratelimit.Module,
		scheduler.Module,
		fx.Populate(&svc, &sched),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()
	return fn(ctx, svc, sched)
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [reference]",
		Short: "Verify a payment reference with the gateway and apply it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPayments(cmd.Context(), func(ctx context.Context, svc paymentdomain.Service, _ *scheduler.Scheduler) error {
				outcome, err := svc.Reconcile(ctx, args[0])
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", args[0], err)
				}

				out := cmd.OutOrStdout()
				switch {
				case outcome.Duplicate:
					fmt.Fprintf(out, "%s already applied to wish %s\n", outcome.Reference, outcome.WishID)
				case outcome.PartialFailure:
					fmt.Fprintf(out, "%s recorded, wish %s not updated yet\n", outcome.Reference, outcome.WishID)
				default:
					fmt.Fprintf(out, "%s applied %s to wish %s\n", outcome.Reference, outcome.Amount.StringFixed(2), outcome.WishID)
				}
				return nil
			})
		},
	}
}

func replayLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay-ledger",
		Short: "Apply stored payments whose wish totals were never updated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPayments(cmd.Context(), func(ctx context.Context, _ paymentdomain.Service, sched *scheduler.Scheduler) error {
				if err := sched.RunOnce(ctx); err != nil {
					return fmt.Errorf("replay ledger: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ledger replay finished")
				return nil
			})
		},
	}
}
