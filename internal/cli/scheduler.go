package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var schedulerRunOnceCmd = &cobra.Command{
	Use:   "scheduler-run",
	Short: "Lease and process one batch of queued topics",
	Long: `Runs a single scheduler tick: leases up to posts_per_day queued topics,
decomposes each into component claims, audits the components not already
on file, composes an article, and files it for review. Intended to be
invoked by an external cron trigger (e.g. a system crontab entry at
cron_hour:cron_minute) rather than run continuously itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("scheduler-run: %w", err)
		}
		defer func() { _ = a.Close() }()

		if err := a.Scheduler.RunOnce(context.Background()); err != nil {
			return fmt.Errorf("scheduler-run: %w", err)
		}
		fmt.Println("scheduler tick complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schedulerRunOnceCmd)
}
