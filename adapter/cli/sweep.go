package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/redislock"
	"github.com/felixgeelhaar/arrears/pkg/observability"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one-shot lifecycle sweeps",
	Long: `Each sweep scans its slice of the ledger once and exits. Sweeps
take a distributed lock per kind, so concurrent triggers of the same sweep
collapse to one run.`,
}

func init() {
	sweepCmd.AddCommand(newSweepCommand("overdue", "Escalate overdue contracts through warnings and penalties",
		func(ctx context.Context) (*sweep.Report, error) {
			c, err := requireContainer()
			if err != nil {
				return nil, err
			}
			return c.EscalationSweeper.Sweep(ctx)
		}))
	sweepCmd.AddCommand(newSweepCommand("liquidation", "Open auctions for seriously delinquent collateralized contracts",
		func(ctx context.Context) (*sweep.Report, error) {
			c, err := requireContainer()
			if err != nil {
				return nil, err
			}
			return c.LiquidationSweeper.Sweep(ctx)
		}))
	sweepCmd.AddCommand(newSweepCommand("settlement", "Settle ended liquidation auctions",
		func(ctx context.Context) (*sweep.Report, error) {
			c, err := requireContainer()
			if err != nil {
				return nil, err
			}
			return c.Settlement.Sweep(ctx)
		}))
	sweepCmd.AddCommand(newSweepCommand("retry", "Re-attempt due failed payments",
		func(ctx context.Context) (*sweep.Report, error) {
			c, err := requireContainer()
			if err != nil {
				return nil, err
			}
			return c.RetryManager.Sweep(ctx)
		}))
	sweepCmd.AddCommand(newSweepCommand("reminders", "Send due-soon payment reminders",
		func(ctx context.Context) (*sweep.Report, error) {
			c, err := requireContainer()
			if err != nil {
				return nil, err
			}
			return c.ReminderSweeper.Sweep(ctx)
		}))

	rootCmd.AddCommand(sweepCmd)
}

func newSweepCommand(kind, short string, run func(ctx context.Context) (*sweep.Report, error)) *cobra.Command {
	return &cobra.Command{
		Use:   kind,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}

			ctx := observability.NewSweepContext(cmd.Context(), kind)
			var report *sweep.Report
			err = c.Locker.WithLock(ctx, "sweep:"+kind, func(ctx context.Context) error {
				report, err = run(ctx)
				return err
			})
			if errors.Is(err, redislock.ErrNotAcquired) {
				cmd.Println("sweep already running elsewhere, skipped")
				return nil
			}
			if err != nil {
				return err
			}

			printReport(cmd, report)
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, r *sweep.Report) {
	cmd.Printf("%s sweep: scanned %d, acted %d, skipped %d, failed %d (%.2fs)\n",
		r.Kind, r.Scanned, r.Acted, r.Skipped, r.Failed,
		r.FinishedAt.Sub(r.StartedAt).Seconds())

	if !verbose {
		return
	}
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("  %s  %s", o.ID, o.Status)
		for _, a := range o.Actions {
			line += " " + a
		}
		if o.Error != "" {
			line += "  (" + o.Error + ")"
		}
		cmd.Println(line)
	}
}
