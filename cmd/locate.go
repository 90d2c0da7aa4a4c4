// File: cmd/locate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// newLocateCmd creates and configures the `locate` command.
func newLocateCmd() *cobra.Command {
	var (
		deepThink bool
		vlMode    string
	)

	locateCmd := &cobra.Command{
		Use:   "locate <description>",
		Short: "Finds the single element matching a natural-language description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := getLogger()

			components, err := initializeComponents(appCfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			if err := openPage(ctx, components); err != nil {
				return err
			}

			query := &schemas.LocateQuery{
				Prompt:    args[0],
				DeepThink: deepThink,
				VLMode:    vlMode,
			}
			result, err := components.Engine.Locate(ctx, query, nil)
			if err != nil {
				return fmt.Errorf("locate failed: %w", err)
			}

			if result.Element == nil {
				logger.Info("No element matched", zap.String("description", args[0]))
			}
			return printResult(result)
		},
	}

	locateCmd.Flags().BoolVar(&deepThink, "deep-think", false, "Narrow the search area with a vision model before locating")
	locateCmd.Flags().StringVar(&vlMode, "vl-mode", "", "Vision-language mode for this call ('false' disables narrowing)")

	return locateCmd
}
