package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit [claim]",
	Short: "Run the full pipeline against a single claim",
	Long: `Audit drives one claim straight through the pipeline - Topic Finder,
Source Checker, Adversarial Checker, Writer, Publisher - bypassing the
Router, and prints the resulting claim card. Use "veritas chat" for the
Router-mediated conversational surface that reuses prior audits instead of
always re-running the pipeline.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		defer func() { _ = a.Close() }()

		sessionID := uuid.NewString()
		result, err := a.Orchestrator.Run(context.Background(), sessionID, agent.Inputs{"question": args[0]})
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		card, _ := result.Final["claim_card"].(*model.ClaimCard)
		if card == nil {
			fmt.Println("pipeline completed without producing a claim card")
			return nil
		}
		printClaimCard(card)
		return nil
	},
}

func printClaimCard(card *model.ClaimCard) {
	fmt.Printf("Claim:      %s\n", card.ClaimText)
	fmt.Printf("Verdict:    %s (%s confidence)\n", card.Verdict, card.ConfidenceLevel)
	fmt.Printf("\n%s\n", card.ShortAnswer)
	if card.DeepAnswer != "" {
		fmt.Printf("\n%s\n", card.DeepAnswer)
	}
	fmt.Printf("\nSources (%d):\n", len(card.Sources))
	for i, s := range card.Sources {
		fmt.Printf("  [%d] %s - %s\n", i+1, s.Citation, s.URL)
	}
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
