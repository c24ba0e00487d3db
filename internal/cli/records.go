package cli

import (
	"encoding/json"
	"fmt"

	"github.com/Abdul07in/supplychainx/internal/domain"
	"github.com/spf13/cobra"
)

const collectionsHelp = "Collections: products, suppliers, purchase-orders, sales-orders, shipments."

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Params domain.ListParams
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List one page of a collection",
		Long: `List one page of a collection, newest first unless --sort-by is given.

` + collectionsHelp + `

Example:
  supplyctl list products --search widget --sort-by stock_quantity --sort-order asc`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(opts.RootOptions)
			recs, err := s.collection(args[0])
			if err != nil {
				return err
			}
			page, err := recs.List(cmd.Context(), opts.Params)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, page)
		},
	}

	cmd.Flags().StringVar(&opts.Params.Search, "search", "", "case-insensitive substring filter")
	cmd.Flags().StringVar(&opts.Params.SortBy, "sort-by", "", "sort field (default created_at)")
	cmd.Flags().StringVar(&opts.Params.SortOrder, "sort-order", "", "asc or desc (default desc)")
	cmd.Flags().IntVar(&opts.Params.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Params.Limit, "limit", domain.DefaultPageSize, "page size")

	return cmd
}

func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "get <collection> <id>",
		Short:        "Show one record",
		Long:         "Show one record.\n\n" + collectionsHelp,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(rootOpts)
			recs, err := s.collection(args[0])
			if err != nil {
				return err
			}
			v, err := recs.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, v)
		},
	}
}

// DataOptions holds the JSON body flag shared by create and update.
type DataOptions struct {
	*RootOptions
	Data string
}

func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a record",
		Long: `Create a record from a JSON document.

` + collectionsHelp + `

Example:
  supplyctl create products --data '{"name":"Widget","sku":"W-1","category":"Parts","price":9.5,"stock_quantity":25}'`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(opts.RootOptions)
			recs, err := s.collection(args[0])
			if err != nil {
				return err
			}
			v, err := recs.Create(cmd.Context(), []byte(opts.Data))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, v)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "record as JSON")
	cmd.MarkFlagRequired("data")

	return cmd
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <collection> <id>",
		Short: "Apply a partial update to a record",
		Long: `Apply a JSON merge patch to a record. Only the named fields change.

` + collectionsHelp + `

Example:
  supplyctl update shipments 8d3c... --data '{"status":"Delivered"}'`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.Patch
			if err := json.Unmarshal([]byte(opts.Data), &patch); err != nil {
				return fmt.Errorf("invalid --data JSON: %w", err)
			}

			s := newSession(opts.RootOptions)
			recs, err := s.collection(args[0])
			if err != nil {
				return err
			}
			v, err := recs.Update(cmd.Context(), args[1], patch)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, v)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "fields to change as a JSON object")
	cmd.MarkFlagRequired("data")

	return cmd
}

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <collection> <id>",
		Short:        "Delete a record",
		Long:         "Delete a record and print what was removed.\n\n" + collectionsHelp,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(rootOpts)
			recs, err := s.collection(args[0])
			if err != nil {
				return err
			}
			v, err := recs.Delete(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, v)
		},
	}
}
