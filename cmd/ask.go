package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docuchat/docuchat/internal/qa"
)

var (
	askSession string
	askAdmin   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed documents",
	Long: `Asks a single question against the active corpus and prints the
answer. Pass --session to keep conversational context across calls.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := askSession
		if sessionID == "" {
			sessionID = "cli-" + uuid.New().String()
		}

		query := strings.Join(args, " ")
		answer, err := a.service.Ask(cmd.Context(), sessionID, qa.Caller{UserID: "cli", Admin: askAdmin}, query)
		if err != nil {
			return err
		}

		fmt.Println(answer.Markdown)
		if askSession == "" {
			fmt.Printf("\n(session: %s)\n", sessionID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "session id for follow-up questions")
	askCmd.Flags().BoolVar(&askAdmin, "admin", false, "run with administrator privileges")
	rootCmd.AddCommand(askCmd)
}
