package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/pipeline"
)

var (
	runInstructions string
	runThumbnail    bool
	runIndex        bool
)

var runCommand = &cobra.Command{
	Use:   "run <site-id>",
	Short: "Run the pipeline now for a site",
	Long: `Runs a fresh batch of articles_per_run units: refresh opportunities once, then pick a keyword,
generate an article and publish it for each unit, stopping at the first failure.

A site with an article awaiting generation must be resumed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithExecutor(cmd, args[0], (*pipeline.Executor).RunNow)
	},
}

var resumeCommand = &cobra.Command{
	Use:   "resume <site-id>",
	Short: "Resume an in-flight unit from article generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithExecutor(cmd, args[0], (*pipeline.Executor).Resume)
	},
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runInstructions, "instructions", "", "Extra instructions passed to article generation")
	cmd.Flags().BoolVar(&runThumbnail, "thumbnail", false, "Render a thumbnail when publishing (defaults to config)")
	cmd.Flags().BoolVar(&runIndex, "index", false, "Submit the published URL for indexing (defaults to config)")
}

func init() {
	addRunFlags(runCommand)
	addRunFlags(resumeCommand)
	rootCmd.AddCommand(runCommand, resumeCommand)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type siteRun func(e *pipeline.Executor, ctx context.Context, siteID uuid.UUID, opts pipeline.RunOptions) (*pipeline.RunReport, error)

func runWithExecutor(cmd *cobra.Command, arg string, run siteRun) error {
	siteID, err := parseSiteID(arg)
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

	report, err := run(executor, ctx, siteID, a.runOptions(cmd))
	a.printer.PrintRunReport(report)
	return err
}
