package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/sundaybot/internal/domain"
	"github.com/ashureev/sundaybot/internal/export"
)

const exportTimeout = 5 * time.Minute

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <event>",
		Short: "Overwrite an event's spreadsheet with its registrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, ok := domain.ParseEventType(args[0])
			if !ok {
				return fmt.Errorf("unknown event %q: use one of %v", args[0], domain.EventTypes)
			}
			if rootOpts.Credentials == "" {
				return fmt.Errorf("no Google credentials: set GOOGLE_CREDENTIALS_JSON or --credentials")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), exportTimeout)
			defer cancel()

			sheet, err := export.NewSheetsWriter(ctx, export.CredentialsOption(rootOpts.Credentials))
			if err != nil {
				return err
			}
			return runExport(ctx, cmd, rootOpts, event, sheet)
		},
	}
}

func runExport(ctx context.Context, cmd *cobra.Command, opts *RootOptions, event domain.EventType, sheet export.Sheet) error {
	repo, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	cat, err := opts.catalog()
	if err != nil {
		return err
	}

	report, err := export.New(repo, sheet, cat, nil).Export(ctx, event)
	if err != nil {
		return fmt.Errorf("export %s: %w", event, err)
	}
	return opts.print(cmd.OutOrStdout(), report, map[string]string{"event": string(event), "report": report})
}
