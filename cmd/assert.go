// File: cmd/assert.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAssertCmd creates and configures the `assert` command.
func newAssertCmd() *cobra.Command {
	var strict bool

	assertCmd := &cobra.Command{
		Use:   "assert <assertion>",
		Short: "Evaluates a natural-language assertion against the page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			components, err := initializeComponents(appCfg, getLogger())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			if err := openPage(ctx, components); err != nil {
				return err
			}

			result, err := components.Engine.Assert(ctx, args[0], nil)
			if err != nil {
				return fmt.Errorf("assert failed: %w", err)
			}
			if err := printResult(result); err != nil {
				return err
			}

			// A failed assertion is a normal evaluation; --strict maps it onto
			// the process exit code for shell pipelines.
			if strict && !result.Pass {
				return fmt.Errorf("assertion did not hold: %s", result.Thought)
			}
			return nil
		},
	}

	assertCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the assertion does not hold")

	return assertCmd
}
