package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"wc-salesforce-sync/internal/app"
	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool

	app *app.App
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the syncctl command tree. The caller closes opts
// once the command has run, whether or not it failed.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the WooCommerce to Salesforce order sync",
		SilenceErrors: true, // main prints the returned error
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewAuthorizeURLCommand(opts))
	cmd.AddCommand(NewExchangeCommand(opts))
	cmd.AddCommand(NewRelationshipsCommand(opts))
	cmd.AddCommand(NewObjectsCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))

	return cmd
}

// App builds the application on first use, so commands that fail flag
// validation never touch the database.
func (o *RootOptions) App(cmd *cobra.Command) (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}

	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	if err := logger.InitLogger(level, "console"); err != nil {
		return nil, err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	o.app = a
	return a, nil
}

// Close releases the application built by App, if any, and flushes the
// logger.
func (o *RootOptions) Close() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
	logger.Sync()
}

// print writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
