package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/centerback/centerback-go/internal/models"
)

var dlqLimit int

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show ingestion queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := getIngest().QueueSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("queue summary: %w", err)
		}

		statuses := []models.QueueStatus{
			models.QueueStatusQueued,
			models.QueueStatusProcessing,
			models.QueueStatusDone,
			models.QueueStatusFailed,
			models.QueueStatusDeadLetter,
		}

		fmt.Printf("%-12s %s\n", "STATUS", "COUNT")
		for _, status := range statuses {
			fmt.Printf("%-12s %d\n", status, summary[status])
		}
		return nil
	},
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		letters, err := getIngest().DeadLetters(cmd.Context(), dlqLimit)
		if err != nil {
			return fmt.Errorf("list dead letters: %w", err)
		}

		if len(letters) == 0 {
			fmt.Println("No dead-lettered messages")
			return nil
		}

		fmt.Printf("%-22s %-12s %-9s %-20s %s\n", "ID", "SOURCE", "ATTEMPTS", "UPDATED", "ERROR")
		for _, msg := range letters {
			errText := ""
			if msg.LastError != nil {
				errText = *msg.LastError
			}
			if len(errText) > 60 {
				errText = errText[:57] + "..."
			}
			fmt.Printf("%-22s %-12s %-9d %-20s %s\n",
				models.MustRecordIDString(msg.ID),
				msg.Source,
				msg.Attempts,
				msg.UpdatedAt.Format(time.RFC3339),
				errText)
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <message-id>",
	Short: "Reset a message for reprocessing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := "cli"
		msg, err := getIngest().Retry(cmd.Context(), args[0], &actor)
		if err != nil {
			return fmt.Errorf("retry message: %w", err)
		}

		fmt.Printf("Message %s reset to %s\n", models.MustRecordIDString(msg.ID), msg.Status)
		return nil
	},
}

func init() {
	dlqCmd.Flags().IntVar(&dlqLimit, "limit", 50, "maximum messages to list")
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(dlqCmd)
	rootCmd.AddCommand(retryCmd)
}
