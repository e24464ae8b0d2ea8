package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voralis/indexwatch/internal/runner"
)

func newInspectCmd() *cobra.Command {
	var (
		propertyID string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "inspect [urls...]",
		Short: "Run one inspection batch for a property",
		Long: `Inspects the given URLs, or lets the candidate selector pick them when
none are given. The batch stops at the property's remaining daily budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Runner.RunInspection(cmd.Context(), runner.InspectionRequest{
				PropertyID: propertyID,
				URLs:       args,
				Limit:      limit,
			})
			if err != nil {
				return fmt.Errorf("run inspection: %w", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "property ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max URLs this batch (default from config)")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
