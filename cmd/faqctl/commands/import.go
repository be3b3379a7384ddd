package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/cmd/faqctl/ui"
)

// importRow is one JSONL line in an import file.
type importRow struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Bulk-import question/answer exchanges from a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		// First pass counts rows so the bar has a total.
		total := 0
		counter := bufio.NewScanner(file)
		for counter.Scan() {
			if len(counter.Bytes()) > 0 {
				total++
			}
		}
		if err := counter.Err(); err != nil {
			return err
		}
		if _, err := file.Seek(0, 0); err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := ui.New(noColor)
		defer out.Close()

		bar := ui.ImportBar(int64(total), "importing")
		scanner := bufio.NewScanner(file)
		line := 0
		imported := 0
		failed := 0
		for scanner.Scan() {
			line++
			data := scanner.Bytes()
			if len(data) == 0 {
				continue
			}

			var row importRow
			if err := json.Unmarshal(data, &row); err != nil {
				out.Error("line %d: %v", line, err)
				failed++
				_ = bar.Add(1)
				continue
			}

			if _, err := a.store.Save(cmd.Context(), row.UserID, row.Question, row.Answer); err != nil {
				out.Error("line %d: %v", line, err)
				failed++
				_ = bar.Add(1)
				continue
			}
			imported++
			_ = bar.Add(1)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		_ = bar.Finish()

		if failed > 0 {
			out.Info("imported %d exchanges, %d failed", imported, failed)
			return fmt.Errorf("%d rows failed", failed)
		}
		out.Success("imported %d exchanges", imported)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
