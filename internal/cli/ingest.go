package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/centerback/centerback-go/internal/models"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json>",
	Short: "Enqueue flows from a JSON file",
	Long: `Read a JSON array of flow payloads from a file and enqueue them.

Each entry needs source_ip, destination_ip and a features array; flow_id is
optional and used for idempotency when present.

Examples:
  centerback ingest flows.json
  centerback ingest flows.json --source pcap-replay`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "cli", "source label for the batch")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read flows file: %w", err)
	}

	var flows []models.FlowPayload
	if err := json.Unmarshal(data, &flows); err != nil {
		return fmt.Errorf("parse flows file: %w", err)
	}
	if len(flows) == 0 {
		return fmt.Errorf("no flows in %s", args[0])
	}

	result, err := getIngest().Enqueue(cmd.Context(), ingestSource, flows)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	fmt.Printf("Queued: %d\n", result.Queued)
	fmt.Printf("Duplicates skipped: %d\n", result.DuplicatesSkipped)
	fmt.Printf("Queue depth: %d\n", result.QueueDepth)
	return nil
}
