package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var autoSuggestCmd = &cobra.Command{
	Use:   "auto-suggest [seed-url...]",
	Short: "Crawl seed URLs for novel candidate topics",
	Long: `Fetches each seed URL (honoring robots.txt), extracts claim-like
sentences and outbound citation links with a domain-specific adapter, and
enqueues any sentence that isn't already a near-duplicate of a claim on
file as a TopicQueueEntry for the scheduler to pick up. Seed URLs are
taken from the command line if given, otherwise from
scheduler.auto_suggest_seed_urls in config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("auto-suggest: %w", err)
		}
		defer func() { _ = a.Close() }()

		seeds := args
		if len(seeds) == 0 {
			seeds = a.Config.Scheduler.AutoSuggestSeedURLs
		}
		if len(seeds) == 0 {
			return fmt.Errorf("auto-suggest: no seed URLs given and scheduler.auto_suggest_seed_urls is empty")
		}

		enqueued, err := a.AutoSuggester.Discover(context.Background(), seeds)
		if err != nil {
			return fmt.Errorf("auto-suggest: %w", err)
		}
		fmt.Printf("auto-suggest: enqueued %d novel topic(s) from %d seed URL(s)\n", enqueued, len(seeds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(autoSuggestCmd)
}
