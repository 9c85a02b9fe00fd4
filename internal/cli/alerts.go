package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
	"github.com/centerback/centerback-go/internal/service"
)

var (
	alertsLimit    int
	alertsSeverity string
)

// getDetection builds a detection service without notification sinks; CLI
// triage never fires webhooks.
func getDetection() *service.DetectionService {
	audit := service.NewAudit(dbClient, logger)
	return service.NewDetectionService(dbClient, nil, nil, audit, metrics.NewCollector(), cfg, logger)
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var severity *models.AlertSeverity
		if alertsSeverity != "" {
			sev := models.AlertSeverity(alertsSeverity)
			severity = &sev
		}

		alerts, err := getDetection().RecentAlerts(cmd.Context(), alertsLimit, severity)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No alerts")
			return nil
		}

		fmt.Printf("%-22s %-16s %-9s %-15s %-15s %-6s %-14s %s\n",
			"ID", "TYPE", "SEVERITY", "SOURCE", "DESTINATION", "CONF", "STATUS", "CREATED")
		for _, alert := range alerts {
			fmt.Printf("%-22s %-16s %-9s %-15s %-15s %-6.2f %-14s %s\n",
				models.MustRecordIDString(alert.ID),
				alert.Type,
				alert.Severity,
				alert.SourceIP,
				alert.DestinationIP,
				alert.Confidence,
				alert.Status,
				alert.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var triageCmd = &cobra.Command{
	Use:   "triage <alert-id> <status>",
	Short: "Change an alert's triage status",
	Long: `Change an alert's triage status.

Valid statuses: new, triaged, investigating, resolved, false_positive.
Transitions follow the triage state machine; resolved and false_positive
alerts re-open only via triaged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := "cli"
		alert, err := getDetection().UpdateAlertStatus(cmd.Context(), args[0], models.AlertStatus(args[1]), &actor)
		if err != nil {
			return fmt.Errorf("update alert: %w", err)
		}

		fmt.Printf("Alert %s is now %s\n", models.MustRecordIDString(alert.ID), alert.Status)
		return nil
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum alerts to list")
	alertsCmd.Flags().StringVar(&alertsSeverity, "severity", "", "filter by severity")
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(triageCmd)
}
