package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Find the best cached answer for a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := ui.New(noColor)
		defer out.Close()

		sp := ui.NewSpinner("searching cached answers")
		sp.Start()
		result, err := a.pipeline.FindBestAnswer(cmd.Context(), args[0])
		sp.Stop()
		if err != nil {
			return err
		}

		if !result.Found {
			out.Info("no match")
			return nil
		}

		if result.Synthesized {
			out.Success("synthesized answer (confidence %.2f)", result.Score)
		} else {
			out.Success("matched %q (score %.2f, stage %s)", result.MatchedQuestion, result.Score, result.Stage)
		}
		fmt.Println(result.Answer.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
