package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed stored questions that do not yet have a vector",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Embedding.APIKey == "" {
			return fmt.Errorf("backfill requires an embedding API key")
		}

		out := ui.New(noColor)
		defer out.Close()

		var bar *mpb.Bar
		done := 0
		indexed, err := a.store.BackfillVectors(cmd.Context(), func(current, total int) {
			if bar == nil {
				bar = out.Bar("backfill", int64(total))
			}
			for done < current {
				bar.Increment()
				done++
			}
		})
		if err != nil {
			return err
		}

		if done == 0 {
			out.Info("nothing to backfill")
			return nil
		}
		out.Success("indexed %d of %d records", indexed, done)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
