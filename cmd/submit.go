package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/runner"
)

func newSubmitCmd() *cobra.Command {
	var (
		propertyID string
		deleted    bool
	)
	cmd := &cobra.Command{
		Use:   "submit urls...",
		Short: "Submit URLs for indexing or removal",
		Long: `Notifies the indexing endpoint about the given URLs. URLs beyond the
remaining daily budget are queued and picked up by later sweeps.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			action := indexer.ActionURLUpdated
			if deleted {
				action = indexer.ActionURLDeleted
			}
			result, err := appInstance.Runner.RunSubmission(cmd.Context(), runner.SubmissionRequest{
				PropertyID: propertyID,
				URLs:       args,
				Action:     action,
			})
			if err != nil {
				return fmt.Errorf("run submission: %w", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "property ID (required)")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "notify removal instead of update")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}
