package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"backupwatch/internal/recipients"
)

// Diagnostic notes shown to operators when a run cannot scan the mailbox.
const (
	noteIncompleteMailboxConfig = "incomplete mailbox configuration"
	mailboxErrorNotePrefix      = "mailbox error: "
)

// Engine is the email-status reconciliation engine. It exposes exactly two
// externally triggerable operations, ReconcileNow and SendReportNow, shared by
// the scheduler and manual triggers. Overlapping invocations are not mutually
// exclusive: each performs an independent full read-modify-write pass and the
// last commit wins.
type Engine struct {
	clients       ClientStore
	settings      SettingsStore
	scanner       MailboxScanner
	sender        ReportSender
	logger        *zap.Logger
	location      *time.Location
	reportSubject string
	now           func() time.Time
}

// NewEngine creates a reconciliation engine. The timezone is threaded through
// every time-sensitive computation; core logic never reads it from the process
// environment.
func NewEngine(
	clients ClientStore,
	settings SettingsStore,
	scanner MailboxScanner,
	sender ReportSender,
	logger *zap.Logger,
	location *time.Location,
	reportSubject string,
) *Engine {
	return &Engine{
		clients:       clients,
		settings:      settings,
		scanner:       scanner,
		sender:        sender,
		logger:        logger,
		location:      location,
		reportSubject: reportSubject,
		now:           time.Now,
	}
}

// WithClock replaces the engine's time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ReconcileNow scans the mailbox and updates every monitored client's status
// fields in one transactional commit. Transport failures and incomplete
// configuration are converted into all-MISSING outcomes with a note; they are
// reported through the OpResult message, never raised.
func (e *Engine) ReconcileNow(ctx context.Context) OpResult {
	now := e.now().In(e.location)

	clients, err := e.clients.List(ctx)
	if err != nil {
		e.logger.Error("Failed to list monitored clients", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not load monitored clients: %v", err)}
	}
	if len(clients) == 0 {
		return OpResult{OK: true, Message: "no monitored clients"}
	}

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		e.logger.Error("Failed to load settings", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not load configuration: %v", err)}
	}

	if !settings.MailboxConfigured() {
		e.logger.Warn("Mailbox configuration incomplete, marking all clients missing",
			zap.Int("clients", len(clients)))
		if err := e.clients.ApplyOutcomes(ctx, missingOutcomes(clients, noteIncompleteMailboxConfig), now); err != nil {
			e.logger.Error("Failed to commit outcomes", zap.Error(err))
			return OpResult{Message: fmt.Sprintf("could not save check results: %v", err)}
		}
		return OpResult{Message: "mailbox configuration is incomplete"}
	}

	window := ComputeScanWindow(now, settings.CheckWindowStartHour, settings.CheckWindowEndHour)
	e.logger.Info("Starting mailbox reconciliation",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("clients", len(clients)))

	scan, err := e.scanner.Scan(ctx, settings, window)
	if err != nil {
		// A half-completed scan must not partially commit: every client is
		// marked missing with the failure detail.
		e.logger.Error("Mailbox scan failed", zap.Error(err))
		note := mailboxErrorNotePrefix + err.Error()
		if commitErr := e.clients.ApplyOutcomes(ctx, missingOutcomes(clients, note), now); commitErr != nil {
			e.logger.Error("Failed to commit outcomes", zap.Error(commitErr))
			return OpResult{Message: fmt.Sprintf("could not save check results: %v", commitErr)}
		}
		return OpResult{Message: fmt.Sprintf("mailbox scan failed: %v", err)}
	}

	outcomes := make(map[int64]Outcome, len(clients))
	for i := range clients {
		outcomes[clients[i].ID] = AggregateClient(&clients[i], scan.Messages, scan.Note, window)
	}

	if err := e.clients.ApplyOutcomes(ctx, outcomes, now); err != nil {
		e.logger.Error("Failed to commit outcomes", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not save check results: %v", err)}
	}

	e.logger.Info("Reconciliation complete",
		zap.Int("clients", len(clients)),
		zap.Int("messages", len(scan.Messages)))
	return OpResult{
		OK:      true,
		Message: fmt.Sprintf("checked %d client(s) against %d message(s)", len(clients), len(scan.Messages)),
	}
}

// SendReportNow renders the current persisted state and sends it to the
// configured recipients. Preconditions are checked in order: recipients first,
// then transport configuration, each yielding its own failure message.
// Delivery is best-effort with a single attempt.
func (e *Engine) SendReportNow(ctx context.Context) OpResult {
	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		e.logger.Error("Failed to load settings", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not load configuration: %v", err)}
	}

	to := recipients.Parse(settings.ReportRecipients)
	if len(to) == 0 {
		return OpResult{Message: "no report recipients configured"}
	}
	if !settings.TransportConfigured() {
		return OpResult{Message: "outgoing mail configuration is incomplete"}
	}

	clients, err := e.clients.List(ctx)
	if err != nil {
		e.logger.Error("Failed to list monitored clients", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not load monitored clients: %v", err)}
	}

	now := e.now().In(e.location)
	textBody := BuildTextReport(clients, now)
	htmlBody, err := BuildHTMLReport(clients, now)
	if err != nil {
		e.logger.Error("Failed to render report", zap.Error(err))
		return OpResult{Message: fmt.Sprintf("could not render report: %v", err)}
	}

	if err := e.sender.Send(ctx, settings, to, e.reportSubject, textBody, htmlBody); err != nil {
		e.logger.Error("Failed to send report", zap.Error(err), zap.Int("recipients", len(to)))
		return OpResult{Message: fmt.Sprintf("could not send report: %v", err)}
	}

	e.logger.Info("Report sent", zap.Int("recipients", len(to)), zap.Int("clients", len(clients)))
	return OpResult{OK: true, Message: fmt.Sprintf("report sent to %d recipient(s)", len(to))}
}
