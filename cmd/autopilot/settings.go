package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/types"
)

var (
	setEnabled        bool
	setCadence        string
	setReasoningLevel string
	setArticlesPerRun int
	setNextRunAt      string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change a site's autopilot settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <site-id>",
	Short: "Show autopilot settings and pipeline progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			cfg, err := c.app.db.GetAutopilotConfig(c.ctx, c.siteID)
			if err != nil {
				return err
			}
			c.app.printer.PrintAutopilotConfig(cfg)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <site-id>",
	Short: "Change autopilot settings",
	Long: `Changes only the settings whose flags are given. Pipeline progress
fields are owned by the pipeline and cannot be set here.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := settingsUpdate(cmd)
		if err != nil {
			return err
		}
		if update.Empty() {
			return fmt.Errorf("nothing to update: pass at least one setting flag")
		}
		if err := update.Validate(); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}

		return withScheduler(cmd, args[0], func(c *calendarContext) error {
			cfg, err := c.app.db.UpdateAutopilotConfig(c.ctx, c.siteID, update)
			if err != nil {
				return err
			}
			c.app.printer.PrintAutopilotConfig(cfg)
			return nil
		})
	},
}

func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&setEnabled, "enabled", false, "Enable or disable the autopilot")
	cmd.Flags().StringVar(&setCadence, "cadence", "", "Run cadence: daily, every_3_days or weekly")
	cmd.Flags().StringVar(&setReasoningLevel, "reasoning-level", "", "Generation effort: low, medium or high")
	cmd.Flags().IntVar(&setArticlesPerRun, "articles-per-run", 0, "Articles produced by each run (at least 1)")
	cmd.Flags().StringVar(&setNextRunAt, "next-run-at", "", "Next cadence run as RFC 3339")
}

func init() {
	addSettingsFlags(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// settingsUpdate builds a partial update from the flags that were set.
func settingsUpdate(cmd *cobra.Command) (types.AutopilotConfigUpdate, error) {
	var update types.AutopilotConfigUpdate
	flags := cmd.Flags()

	if flags.Changed("enabled") {
		enabled := setEnabled
		update.Enabled = &enabled
	}
	if flags.Changed("cadence") {
		cadence := types.Cadence(setCadence)
		update.Cadence = &cadence
	}
	if flags.Changed("reasoning-level") {
		level := types.ReasoningLevel(setReasoningLevel)
		update.ReasoningLevel = &level
	}
	if flags.Changed("articles-per-run") {
		n := setArticlesPerRun
		update.ArticlesPerRun = &n
	}
	if flags.Changed("next-run-at") {
		at, err := time.Parse(time.RFC3339, setNextRunAt)
		if err != nil {
			return update, fmt.Errorf("invalid --next-run-at %q: expected RFC 3339", setNextRunAt)
		}
		update.NextRunAt = &at
	}
	return update, nil
}
