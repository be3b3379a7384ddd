package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "List candidate records for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.pipeline.SearchChat(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(records) == 0 {
			ui.New(noColor).Info("no candidates")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, record := range records {
			rows = append(rows, []string{
				record.ID,
				string(record.Category),
				record.CreatedAt.Format(time.RFC3339),
				truncate(record.Question, 60),
			})
		}
		ui.Table([]string{"ID", "Category", "Created", "Question"}, rows)
		return nil
	},
}

// truncate shortens s to at most max runes, marking the cut with an
// ellipsis. Counting runes keeps Thai text from being split mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
