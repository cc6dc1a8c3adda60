package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/types"
)

var (
	sweepEvery  time.Duration
	prepareDate string
)

var sweepCommand = &cobra.Command{
	Use:   "sweep",
	Short: "Run due work for every enabled site",
	Long: `For each enabled site, executes today's keyword_picked calendar runs and then starts a fresh
run when the cadence is due. Sites awaiting resume are skipped.

With --every the sweep repeats on that interval until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var prepareDayCommand = &cobra.Command{
	Use:   "prepare-day <site-id>",
	Short: "Refresh opportunities and pick keywords for a day's pending runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrepareDay,
}

func init() {
	sweepCommand.Flags().DurationVar(&sweepEvery, "every", 0, "Repeat the sweep on this interval (e.g. 15m)")
	addRunFlags(sweepCommand)
	prepareDayCommand.Flags().StringVar(&prepareDate, "date", "", "Day to prepare as YYYY-MM-DD (defaults to today)")
	rootCmd.AddCommand(sweepCommand, prepareDayCommand)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}

	opts := a.runOptions(cmd)
	opts.OnProgress = nil // sweep output is one line per site

	for {
		results, err := executor.Sweep(ctx, opts)
		if err != nil {
			return err
		}
		a.printer.PrintSweep(results)

		if sweepEvery <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sweepEvery):
		}
	}
}

func runPrepareDay(cmd *cobra.Command, args []string) error {
	siteID, err := parseSiteID(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}

	day, err := parseDay(prepareDate, executor.Today())
	if err != nil {
		return err
	}

	result, err := executor.PrepareDay(ctx, siteID, day)
	if result != nil {
		out := cmd.OutOrStdout()
		if result.Refreshed != nil {
			fmt.Fprintf(out, "Refreshed: %d queries synced, %d opportunities scored\n", //nolint:errcheck
				result.Refreshed.QueriesSynced, result.Refreshed.OpportunitiesScored)
		}
		fmt.Fprintf(out, "%s: %d run(s) ready\n", day.Format(types.DateLayout), len(result.Picked)) //nolint:errcheck
		a.printer.PrintScheduledRuns(result.Picked)
	}
	return err
}
