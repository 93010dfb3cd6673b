package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/veritas-audit/veritas/internal/model"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively through the Router",
	Long: `Chat reads questions from stdin, reformulates each one against the
running conversation with the Context Analyzer, and hands it to the Router.
An EXACT_MATCH or CONTEXTUAL answer is printed immediately, synthesized from
claims already on file. A NOVEL_CLAIM starts a fresh audit in the
background and prints the session id it was reserved under; query
"veritas audit" or watch the HTTP surface for that session's progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		defer func() { _ = a.Close() }()

		ctx := context.Background()
		sessionID := uuid.NewString()
		var history []model.ChatMessage

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("veritas chat - ask a question, Ctrl-D to quit")
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			reformulated, err := a.ContextAnalyzer.Reformulate(ctx, sessionID, question, history)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reformulate: %v\n", err)
				continue
			}

			decision, err := a.Router.Decide(ctx, sessionID, reformulated, append(history, model.ChatMessage{Role: "user", Content: question}))
			if err != nil {
				fmt.Fprintf(os.Stderr, "route: %v\n", err)
				continue
			}

			history = append(history, model.ChatMessage{Role: "user", Content: question})
			switch decision.ModeSelected {
			case model.ModeNovelClaim:
				fmt.Printf("(auditing this as a new claim - %s)\n", decision.Reasoning)
				history = append(history, model.ChatMessage{Role: "assistant", Content: decision.Reasoning})
			default:
				fmt.Println(decision.Answer)
				history = append(history, model.ChatMessage{Role: "assistant", Content: decision.Answer})
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
