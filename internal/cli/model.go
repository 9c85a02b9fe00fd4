package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/centerback/centerback-go/internal/service"
)

var registerAccuracy float64

func getRegistry() *service.ModelRegistry {
	audit := service.NewAudit(dbClient, logger)
	return service.NewModelRegistry(dbClient, audit, logger)
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage registered model versions",
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered model versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		versions, err := getRegistry().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list versions: %w", err)
		}

		if len(versions) == 0 {
			fmt.Println("No registered model versions")
			return nil
		}

		fmt.Printf("%-20s %-9s %-9s %-20s %s\n", "VERSION", "STATUS", "ACCURACY", "REGISTERED", "PATH")
		for _, mv := range versions {
			accuracy := "-"
			if mv.Accuracy != nil {
				accuracy = fmt.Sprintf("%.4f", *mv.Accuracy)
			}
			fmt.Printf("%-20s %-9s %-9s %-20s %s\n",
				mv.Version, mv.Status, accuracy, mv.CreatedAt.Format(time.RFC3339), mv.Path)
		}
		return nil
	},
}

var modelRegisterCmd = &cobra.Command{
	Use:   "register <version> <artifact-path>",
	Short: "Register a model artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := "cli"
		var accuracy *float64
		if cmd.Flags().Changed("accuracy") {
			accuracy = &registerAccuracy
		}

		mv, err := getRegistry().Register(cmd.Context(), args[0], args[1], accuracy, &actor)
		if err != nil {
			return fmt.Errorf("register version: %w", err)
		}

		fmt.Printf("Registered %s (%s)\n", mv.Version, mv.Status)
		return nil
	},
}

var modelActivateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Activate a registered model version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := "cli"
		mv, err := getRegistry().Activate(cmd.Context(), args[0], &actor)
		if err != nil {
			return fmt.Errorf("activate version: %w", err)
		}

		fmt.Printf("Activated %s\n", mv.Version)
		return nil
	},
}

func init() {
	modelRegisterCmd.Flags().Float64Var(&registerAccuracy, "accuracy", 0, "held-out accuracy of the artifact")
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelRegisterCmd)
	modelCmd.AddCommand(modelActivateCmd)
	rootCmd.AddCommand(modelCmd)
}
