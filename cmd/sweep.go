package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one full pass over all auto-enabled properties",
		Long: `Executes a single sweep immediately and prints the per-property report
as JSON. Each property consumes only its own remaining daily budget; a
property that fails does not stop the rest.`,
		RunE: runSweepCommand,
	}
}

func runSweepCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	report, err := appInstance.Sweeper.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	for _, prop := range report.Properties {
		if prop.Error != "" {
			appInstance.Logger.Warn("property sweep failed",
				zap.String("property", prop.PropertyID),
				zap.String("error", prop.Error),
			)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
