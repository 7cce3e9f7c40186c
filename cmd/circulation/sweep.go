package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-circulation/engine/sweep"
)

func newSweepCommand(envFile *string) *cobra.Command {
	var fines, holds bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the overdue fine scan and the hold expiry once",
		Long: "Runs the daily sweep once and exits. Without flags both steps run.\n" +
			"Use this from an external scheduler together with 'serve --no-scheduler'.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !fines && !holds {
				fines, holds = true, true
			}

			rt, err := openRuntime(ctx, *envFile, holds)
			if err != nil {
				return err
			}

			defer func() { _ = rt.close() }()

			fineSweeper, holdSweeper, err := rt.sweepers()
			if err != nil {
				return err
			}

			runner, err := sweep.NewRunner(fineSweeper, holdSweeper,
				sweep.WithLogger(rt.logger),
				sweep.WithSteps(fines, holds),
			)
			if err != nil {
				return err
			}

			report, err := runner.RunOnce(ctx)
			printReport(cmd, report, fines, holds)

			return err
		},
	}

	cmd.Flags().BoolVar(&fines, "fines", false, "run the overdue fine scan")
	cmd.Flags().BoolVar(&holds, "holds", false, "run the hold expiry")

	return cmd
}

func printReport(cmd *cobra.Command, report sweep.Report, fines, holds bool) {
	out := cmd.OutOrStdout()

	if fines {
		_, _ = fmt.Fprintf(out, "overdue loans: %s scanned, %s charged, %s unchanged, %s failed\n",
			humanize.Comma(int64(report.Fines.Scanned)),
			humanize.Comma(int64(report.Fines.Charged)),
			humanize.Comma(int64(report.Fines.Unchanged)),
			humanize.Comma(int64(report.Fines.Failed)),
		)
	}

	if holds {
		_, _ = fmt.Fprintf(out, "expired holds: %s scanned, %s expired, %s handed on, %s failed\n",
			humanize.Comma(int64(report.Holds.Scanned)),
			humanize.Comma(int64(report.Holds.Expired)),
			humanize.Comma(int64(report.Holds.HandedOn)),
			humanize.Comma(int64(report.Holds.Failed)),
		)
	}
}
