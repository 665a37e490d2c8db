package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/sundaybot/internal/domain"
)

// NewSessionsCommand groups the session maintenance commands. They act on
// the SQLite session table; Redis sessions expire on their own.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and purge dialogue sessions",
	}
	cmd.AddCommand(newSessionsPurgeCommand(rootOpts))
	cmd.AddCommand(newSessionsShowCommand(rootOpts))
	return cmd
}

func newSessionsPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete sessions idle for longer than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			repo, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			n, err := repo.DeleteStaleSessions(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			return rootOpts.print(cmd.OutOrStdout(),
				fmt.Sprintf("Deleted %d session(s) idle for more than %s.", n, olderThan),
				map[string]any{"deleted": n, "older_than": olderThan.String()})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 72*time.Hour, "idle duration")
	return cmd
}

func newSessionsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user>",
		Short: "Print a user's current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			sess, err := repo.LoadSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			if sess == nil {
				return rootOpts.print(cmd.OutOrStdout(),
					fmt.Sprintf("%s has no session (main menu).", args[0]),
					map[string]any{"user_id": args[0], "found": false})
			}

			state, err := domain.MarshalState(sess.State)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("%s: mode=%s step=%s updated=%s\n%s",
				sess.UserID, sess.Mode(), sess.Step(), sess.UpdatedAt.UTC().Format(time.RFC3339), state)
			return rootOpts.print(cmd.OutOrStdout(), text, map[string]any{
				"user_id":    sess.UserID,
				"found":      true,
				"mode":       sess.Mode(),
				"step":       sess.Step(),
				"updated_at": sess.UpdatedAt,
				"state":      json.RawMessage(state),
			})
		},
	}
}
