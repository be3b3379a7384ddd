package commands

import (
	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Remove keyword index entries that point at evicted records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := ui.New(noColor)
		defer out.Close()

		sp := ui.NewSpinner("compacting keyword index")
		sp.Start()
		removed, err := a.store.CompactKeywords(cmd.Context())
		sp.Stop()
		if err != nil {
			return err
		}

		out.Success("removed %d stale keyword entries", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
}
