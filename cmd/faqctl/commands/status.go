package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
	"github.com/klasshub/faq-engine/internal/classify"
	"github.com/klasshub/faq-engine/internal/monitoring"
)

var statusSince time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts and recent lookup outcomes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rows := make([][]string, 0, len(classify.Categories))
		var total int64
		for _, category := range classify.Categories {
			count, err := a.store.CategoryCount(cmd.Context(), category)
			if err != nil {
				return err
			}
			total += count
			rows = append(rows, []string{string(category), fmt.Sprintf("%d", count)})
		}
		rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})

		fmt.Println("Records by category:")
		ui.Table([]string{"Category", "Count"}, rows)

		vectors := a.store.Vectors()
		if vectors.Available() {
			count, err := vectors.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("\nVector index: available, %d indexed\n", count)
		} else {
			fmt.Println("\nVector index: unavailable")
		}

		if a.cfg.Audit.Enabled {
			audit, err := monitoring.OpenAuditStore(a.cfg.Audit, a.logger)
			if err != nil {
				return err
			}
			defer audit.Close()

			counts, err := audit.StageCounts(cmd.Context(), time.Now().Add(-statusSince))
			if err != nil {
				return err
			}

			stageRows := make([][]string, 0, len(counts))
			for stage, count := range counts {
				name := string(stage)
				if name == "" {
					name = "miss"
				}
				stageRows = append(stageRows, []string{name, fmt.Sprintf("%d", count)})
			}
			fmt.Printf("\nLookups in the last %s:\n", statusSince)
			ui.Table([]string{"Stage", "Count"}, stageRows)
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().DurationVar(&statusSince, "since", 24*time.Hour, "audit window for lookup stats")
	rootCmd.AddCommand(statusCmd)
}
