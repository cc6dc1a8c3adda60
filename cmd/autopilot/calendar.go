package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/types"
)

var (
	calendarMonth    string
	calendarWeekdays []int
	calendarDate     string
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage a site's publishing calendar",
}

var calendarListCmd = &cobra.Command{
	Use:   "list <site-id>",
	Short: "Show the scheduled runs of a month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			ym, err := monthFlag(c.today)
			if err != nil {
				return err
			}
			runs, err := c.app.scheduler.ListMonth(c.ctx, c.siteID, ym)
			if err != nil {
				return err
			}
			c.app.printer.PrintCalendar(ym, runs, c.today)
			return nil
		})
	},
}

var calendarToggleCmd = &cobra.Command{
	Use:   "toggle <site-id> <YYYY-MM-DD>",
	Short: "Add or remove a pending run on a day",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			day, err := types.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[1])
			}
			result, err := c.app.scheduler.ToggleDay(c.ctx, c.siteID, day)
			if err != nil {
				return err
			}
			c.app.printer.PrintToggle(result)
			return nil
		})
	},
}

var calendarScheduleMonthCmd = &cobra.Command{
	Use:   "schedule-month <site-id>",
	Short: "Schedule pending runs on selected weekdays of a month",
	Long: `Creates a pending run on every remaining day of the month whose weekday is selected.
Weekdays are numbered 0 (Sunday) to 6 (Saturday). Days already scheduled are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			ym, err := monthFlag(c.today)
			if err != nil {
				return err
			}
			created, err := c.app.scheduler.ScheduleMonth(c.ctx, c.siteID, ym, calendarWeekdays, c.today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %d run(s) in %s\n", len(created), ym) //nolint:errcheck
			c.app.printer.PrintScheduledRuns(created)
			return nil
		})
	},
}

var calendarCreateCmd = &cobra.Command{
	Use:   "create <site-id> <YYYY-MM-DD>...",
	Short: "Schedule pending runs on explicit dates",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dates := make([]time.Time, 0, len(args)-1)
		for _, arg := range args[1:] {
			day, err := types.ParseDate(arg)
			if err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", arg)
			}
			dates = append(dates, day)
		}
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			created, err := c.app.scheduler.CreateRuns(c.ctx, c.siteID, dates)
			if err != nil {
				return err
			}
			c.app.printer.PrintScheduledRuns(created)
			return nil
		})
	},
}

var calendarDeleteCmd = &cobra.Command{
	Use:   "delete <site-id> <YYYY-MM-DD>",
	Short: "Remove a pending run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			day, err := types.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[1])
			}
			if err := c.app.scheduler.DeleteRun(c.ctx, c.siteID, day); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run on %s\n", day.Format(types.DateLayout)) //nolint:errcheck
			return nil
		})
	},
}

var calendarReadyCmd = &cobra.Command{
	Use:   "ready <site-id>",
	Short: "List runs with a picked keyword for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			day, err := parseDay(calendarDate, c.today)
			if err != nil {
				return err
			}
			runs, err := c.app.scheduler.ReadyToday(c.ctx, c.siteID, day)
			if err != nil {
				return err
			}
			c.app.printer.PrintScheduledRuns(runs)
			return nil
		})
	},
}

var calendarRunReadyCmd = &cobra.Command{
	Use:   "run-ready <site-id>",
	Short: "Generate and publish today's ready runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithExecutor(cmd, args[0], runReadyToday)
	},
}

func init() {
	calendarListCmd.Flags().StringVar(&calendarMonth, "month", "", "Month as YYYY-MM (defaults to the current month)")
	calendarScheduleMonthCmd.Flags().StringVar(&calendarMonth, "month", "", "Month as YYYY-MM (defaults to the current month)")
	calendarScheduleMonthCmd.Flags().IntSliceVar(&calendarWeekdays, "weekdays", nil, "Weekdays to schedule, 0=Sunday..6=Saturday")
	_ = calendarScheduleMonthCmd.MarkFlagRequired("weekdays")
	calendarReadyCmd.Flags().StringVar(&calendarDate, "date", "", "Day as YYYY-MM-DD (defaults to today)")
	addRunFlags(calendarRunReadyCmd)

	calendarCmd.AddCommand(
		calendarListCmd,
		calendarToggleCmd,
		calendarScheduleMonthCmd,
		calendarCreateCmd,
		calendarDeleteCmd,
		calendarReadyCmd,
		calendarRunReadyCmd,
	)
	rootCmd.AddCommand(calendarCmd)
}

func runReadyToday(e *pipeline.Executor, ctx context.Context, siteID uuid.UUID, opts pipeline.RunOptions) (*pipeline.RunReport, error) {
	return e.RunReadyToday(ctx, siteID, e.Today(), opts)
}

// calendarContext carries what every calendar subcommand needs.
type calendarContext struct {
	ctx    context.Context
	app    *app
	siteID uuid.UUID
	today  time.Time
}

// withScheduler opens the app and checks the site exists before running fn.
// Calendar commands never need provider credentials.
func withScheduler(cmd *cobra.Command, arg string, fn func(c *calendarContext) error) error {
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

	site, err := a.db.GetAutopilotConfig(ctx, siteID)
	if err != nil {
		return err
	}
	if site == nil {
		return fmt.Errorf("site %s: %w", siteID, db.ErrSiteNotFound)
	}

	return fn(&calendarContext{ctx: ctx, app: a, siteID: siteID, today: a.scheduler.Today()})
}

// monthFlag parses --month, falling back to the month containing today.
func monthFlag(today time.Time) (calendar.YearMonth, error) {
	if calendarMonth == "" {
		return calendar.MonthOf(today), nil
	}
	ym, err := calendar.ParseYearMonth(calendarMonth)
	if err != nil {
		return calendar.YearMonth{}, fmt.Errorf("invalid month %q: expected YYYY-MM", calendarMonth)
	}
	return ym, nil
}
