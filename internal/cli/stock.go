package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stock <product-id> <quantity>",
		Short: "Set a product's stock quantity",
		Long: `Set a product's stock quantity. The server raises a low stock alert
when the new quantity is below its threshold.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a whole number: %q", args[1])
			}

			s := newSession(rootOpts)
			p, err := s.service.Products.SetStock(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, p)
		},
	}
}

func NewOverviewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "overview",
		Short:        "Show record counts per collection",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(rootOpts)
			counts, err := s.service.Overview(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, counts)
		},
	}
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "report inventory",
		Short:        "Show the products below the server's stock threshold",
		Args:         cobra.ExactArgs(1),
		ValidArgs:    []string{"inventory"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "inventory" {
				return fmt.Errorf("unknown report %q", args[0])
			}
			s := newSession(rootOpts)
			report, err := s.client.InventoryReport(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, report)
		},
	}
}
