package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/centerback/centerback-go/internal/service"
)

var driftWindow int

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compute the model drift report",
	RunE: func(cmd *cobra.Command, args []string) error {
		detector := service.NewDriftDetector(dbClient, cfg)
		report, err := detector.Report(cmd.Context(), driftWindow)
		if err != nil {
			return fmt.Errorf("drift report: %w", err)
		}

		fmt.Printf("Status: %s\n", report.Status)
		if report.Status == service.DriftInsufficientData {
			fmt.Printf("Need %d predictions, have %d\n", report.RequiredEvents, report.AvailableEvents)
			return nil
		}

		fmt.Printf("Window: %d events\n", report.WindowEvents)
		fmt.Printf("JS divergence: %.4f (threshold %.4f)\n", *report.JSDivergence, report.Threshold)
		if report.CanaryDivergenceRate != nil {
			fmt.Printf("Canary divergence rate: %.4f\n", *report.CanaryDivergenceRate)
		} else {
			fmt.Println("Canary divergence rate: n/a (no evaluation events)")
		}

		printDistribution("Current", report.CurrentDistribution)
		printDistribution("Baseline", report.BaselineDistribution)
		return nil
	},
}

func printDistribution(name string, dist map[string]float64) {
	labels := make([]string, 0, len(dist))
	for label := range dist {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Printf("\n%s distribution:\n", name)
	for _, label := range labels {
		fmt.Printf("  %-20s %.4f\n", label, dist[label])
	}
}

func init() {
	driftCmd.Flags().IntVar(&driftWindow, "window", 0, "window size (0 uses the configured default)")
	rootCmd.AddCommand(driftCmd)
}
