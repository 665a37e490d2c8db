package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/sundaybot/internal/domain"
)

const msgInvalidExport = "Invalid export command. Use `export youths` or `export annual`."

// startExport acknowledges an admin export and runs it in the background.
// The admin's session is not touched.
func (e *Engine) startExport(in domain.Inbound) domain.Message {
	fields := strings.Fields(in.Command)
	if len(fields) != 2 || fields[0] != "export" {
		return domain.Text(msgInvalidExport)
	}
	ev, ok := domain.ParseEventType(fields[1])
	if !ok {
		return domain.Text(msgInvalidExport)
	}
	if e.deps.Exporter == nil {
		return domain.Text("Sheet export is not configured on this server.")
	}

	jobID := uuid.NewString()
	e.logger.Info("Export requested", "job_id", jobID, "user_id", in.UserID, "event", ev)
	e.spawn(func() { e.runExport(jobID, in.UserID, ev) })

	return domain.Text(fmt.Sprintf("Okay, starting export for *%s*. This may take a moment...", e.cat.EventName(ev)))
}

func (e *Engine) runExport(jobID, userID string, ev domain.EventType) {
	ctx, cancel := context.WithTimeout(context.Background(), e.deps.JobTimeout)
	defer cancel()

	logger := e.logger.With("job_id", jobID, "user_id", userID, "event", ev)
	report, err := e.deps.Exporter.Export(ctx, ev)
	if err != nil {
		logger.Error("Export failed", "error", err)
		report = fmt.Sprintf("❌ Export for *%s* failed. Please check the server logs.", e.cat.EventName(ev))
	} else {
		logger.Info("Export finished")
	}
	e.send(ctx, userID, []domain.Message{domain.Text(report)})
}
