// Package cli implements sundayctl, the SundayBot admin command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/config"
	"github.com/ashureev/sundaybot/internal/store"
)

// RootOptions holds global flags for all commands. Empty values fall back
// to the server's environment configuration.
type RootOptions struct {
	DBPath      string
	CatalogPath string
	Credentials string
	Format      string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for sundayctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sundayctl",
		Short: "SundayBot admin tool",
		Long:  "Inspect registrations and sessions of a SundayBot deployment and export camp registrations to Google Sheets.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.fillFromEnv()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default $DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.CatalogPath, "catalog", "", "catalog YAML path (default $CATALOG_PATH or built-in)")
	cmd.PersistentFlags().StringVar(&opts.Credentials, "credentials", "", "service account JSON or file (default $GOOGLE_CREDENTIALS_JSON)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))

	return cmd
}

func (o *RootOptions) fillFromEnv() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.DBPath == "" {
		o.DBPath = cfg.DBPath
	}
	if o.CatalogPath == "" {
		o.CatalogPath = cfg.CatalogPath
	}
	if o.Credentials == "" {
		o.Credentials = cfg.GoogleCredentials
	}
	return nil
}

func (o *RootOptions) openStore() (*store.SQLiteStore, error) {
	repo, err := store.NewSQLite(o.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.DBPath, err)
	}
	return repo, nil
}

func (o *RootOptions) catalog() (*catalog.Catalog, error) {
	if o.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(o.CatalogPath)
}

// print writes v as indented JSON in json format, or text otherwise.
func (o *RootOptions) print(w io.Writer, text string, v any) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
