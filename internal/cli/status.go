package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/sundaybot/internal/domain"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <event> <id>",
		Short: "Look up one registration by ID/passport number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, ok := domain.ParseEventType(args[0])
			if !ok {
				return fmt.Errorf("unknown event %q: use one of %v", args[0], domain.EventTypes)
			}
			id := strings.ToUpper(strings.Join(strings.Fields(args[1]), ""))

			repo, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			reg, err := repo.GetRegistration(cmd.Context(), event, id)
			if err != nil {
				return fmt.Errorf("lookup %s/%s: %w", event, id, err)
			}
			if reg == nil {
				return rootOpts.print(cmd.OutOrStdout(),
					fmt.Sprintf("No %s registration for %s.", event, id),
					map[string]any{"event": event, "id": id, "found": false})
			}

			return rootOpts.print(cmd.OutOrStdout(), describe(reg), map[string]any{
				"event":      reg.Event,
				"id":         reg.ID(),
				"found":      true,
				"created_at": reg.CreatedAt,
				"data":       reg.Data,
			})
		},
	}
}

func describe(reg *domain.Registration) string {
	d := reg.Data
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", d.FullName(), d.IDPassport)
	fmt.Fprintf(&b, "  event:      %s\n", reg.Event)
	fmt.Fprintf(&b, "  registered: %s\n", reg.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  phone:      %s\n", d.Phone)
	fmt.Fprintf(&b, "  stay:       %s to %s\n", d.CampStart, d.CampEnd)
	fmt.Fprintf(&b, "  worker:     %s (%s)\n", d.IsWorker, d.WorkerType)
	fmt.Fprintf(&b, "  volunteer:  %s (%s)\n", d.VolunteerStatus, d.VolunteerDepartment)
	fmt.Fprintf(&b, "  transport:  %s", d.TransportAssistance)
	return b.String()
}
