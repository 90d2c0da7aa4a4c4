// File: cmd/extract.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// newExtractCmd creates and configures the `extract` command.
func newExtractCmd() *cobra.Command {
	var fields []string

	extractCmd := &cobra.Command{
		Use:   "extract [description]",
		Short: "Pulls structured data out of the page",
		Long: `Pulls structured data out of the page.

Pass either a free-form description:
  glimpse extract "the total price in the cart" --url https://shop.example/cart

or one --field name=description pair per output field:
  glimpse extract --field price="the item price" --field currency="the currency code" --url ...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			demand, err := buildDemand(args, fields)
			if err != nil {
				return err
			}

			components, err := initializeComponents(appCfg, getLogger())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			if err := openPage(ctx, components); err != nil {
				return err
			}

			result, err := components.Engine.Extract(ctx, demand, nil)
			if err != nil {
				return fmt.Errorf("extract failed: %w", err)
			}
			return printResult(result)
		},
	}

	extractCmd.Flags().StringArrayVar(&fields, "field", nil, "Output field as name=description (repeatable)")

	return extractCmd
}

// buildDemand turns the command line into an extract demand. A free-form
// description and --field pairs are mutually exclusive.
func buildDemand(args, fields []string) (schemas.ExtractDemand, error) {
	if len(args) == 1 && len(fields) > 0 {
		return schemas.ExtractDemand{}, fmt.Errorf("pass either a description or --field pairs, not both")
	}
	if len(args) == 1 {
		return schemas.TextDemand(args[0]), nil
	}
	if len(fields) == 0 {
		return schemas.ExtractDemand{}, fmt.Errorf("extract needs a description or at least one --field pair")
	}

	schema := make(map[string]string, len(fields))
	for _, f := range fields {
		name, desc, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(desc) == "" {
			return schemas.ExtractDemand{}, fmt.Errorf("invalid --field value %q, expected name=description", f)
		}
		schema[strings.TrimSpace(name)] = strings.TrimSpace(desc)
	}
	return schemas.SchemaDemand(schema), nil
}
