package commands

import (
	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

var saveUserID string

var saveCmd = &cobra.Command{
	Use:   "save <question> <answer>",
	Short: "Save a question/answer exchange",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := ui.New(noColor)
		defer out.Close()

		record, err := a.store.Save(cmd.Context(), saveUserID, args[0], args[1])
		if err != nil {
			return err
		}

		out.Success("saved %s (category %s)", record.ID, record.Category)
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveUserID, "user", "", "user ID to attribute the exchange to")
	rootCmd.AddCommand(saveCmd)
}
