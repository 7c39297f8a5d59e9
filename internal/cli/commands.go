package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wc-salesforce-sync/internal/store"
	"wc-salesforce-sync/internal/sync"
)

var errSalesforceUnavailable = errors.New("salesforce request failed")

// NewSyncCommand syncs one order in the foreground.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "sync <order-id>",
		Short:        "Sync one order to Salesforce and wait for the result",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}

			res, err := a.Manager.SyncNow(cmd.Context(), orderID, sync.TriggerManual)
			if err != nil {
				return err
			}
			if err := opts.print(cmd.OutOrStdout(), res, func(w io.Writer) { printResult(w, res) }); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("order %d failed to sync", orderID)
			}
			return nil
		},
	}
}

func printResult(w io.Writer, res sync.Result) {
	fmt.Fprintf(w, "order %d: %s (run %s)\n", res.OrderID, res.Status(), res.RunID)
	for i, msg := range res.Errors {
		fmt.Fprintf(w, "  %d. %s\n", i+1, msg)
	}
}

func NewAuthorizeURLCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "authorize-url",
		Short:        "Print the URL that starts the Salesforce OAuth flow",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}
			u, err := a.Tokens.AuthorizeURL(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), map[string]interface{}{"url": u, "authorized": u == ""}, func(w io.Writer) {
				if u == "" {
					fmt.Fprintln(w, "already authorized")
					return
				}
				fmt.Fprintln(w, u)
			})
		},
	}
}

func NewExchangeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "exchange <code>",
		Short:        "Exchange an OAuth authorization code for tokens",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}
			if err := a.Tokens.ExchangeCode(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "authorized")
			return nil
		},
	}
}

func NewRelationshipsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relationships",
		Short: "List and toggle field-mapping relationships",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List all relationships",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}
			rels, err := a.Store.ListRelationships(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), rels, func(w io.Writer) { printRelationships(w, rels) })
		},
	})
	cmd.AddCommand(setActiveCommand(opts, "activate", true))
	cmd.AddCommand(setActiveCommand(opts, "deactivate", false))

	return cmd
}

func setActiveCommand(opts *RootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:          use + " <id>...",
		Short:        strings.ToUpper(use[:1]) + use[1:] + " relationships by id",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}
			n, err := a.Store.SetRelationshipsActive(cmd.Context(), ids, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d relationship(s) updated\n", n)
			return nil
		},
	}
}

func printRelationships(w io.Writer, rels []*store.Relationship) {
	for _, r := range rels {
		state := "inactive"
		if r.Active {
			state = "active"
		}
		fmt.Fprintf(w, "%d\t%s -> %s\t%s\t%d field(s)", r.ID, r.FromObject, r.ToObject, state, len(r.FieldMappings))
		if len(r.RequiredObjects) > 0 {
			names := make([]string, 0, len(r.RequiredObjects))
			for _, req := range r.RequiredObjects {
				names = append(names, req.Name)
			}
			fmt.Fprintf(w, "\trequires %s", strings.Join(names, ", "))
		}
		fmt.Fprintln(w)
	}
}

// NewObjectsCommand lists the sobject catalog, or describes one object.
func NewObjectsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "objects [name]",
		Short:        "List Salesforce objects or describe one",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				resp, ok := a.Objects.DescribeObject(cmd.Context(), args[0])
				if !ok {
					return errSalesforceUnavailable
				}
				return opts.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					printNamed(w, resp.Object()["fields"], "name", "type")
				})
			}

			resp, ok := a.Objects.AllObjects(cmd.Context())
			if !ok {
				return errSalesforceUnavailable
			}
			return opts.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
				printNamed(w, resp.Object()["sobjects"], "name", "label")
			})
		},
	}
}

func printNamed(w io.Writer, list interface{}, keys ...string) {
	items, _ := list.([]interface{})
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cols := make([]string, 0, len(keys))
		for _, k := range keys {
			cols = append(cols, fmt.Sprint(m[k]))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
}

func NewProductsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "products",
		Short:        "List Salesforce products that have a price book entry",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd)
			if err != nil {
				return err
			}
			products, ok := a.Objects.Products(cmd.Context())
			if !ok {
				return errSalesforceUnavailable
			}
			return opts.print(cmd.OutOrStdout(), products, func(w io.Writer) {
				for _, p := range products {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", p.ID, p.Code, p.Name, p.UnitPrice)
				}
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
