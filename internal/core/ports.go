package core

import (
	"context"
	"time"
)

// ClientStore persists monitored clients. List returns clients ordered by
// name. ApplyOutcomes writes one run's outcomes for all clients in a single
// transaction so readers never observe a half-written run.
type ClientStore interface {
	List(ctx context.Context) ([]Client, error)
	Get(ctx context.Context, id int64) (*Client, error)
	Create(ctx context.Context, client *Client) error
	Update(ctx context.Context, client *Client) error
	Delete(ctx context.Context, id int64) error
	ApplyOutcomes(ctx context.Context, outcomes map[int64]Outcome, checkedAt time.Time) error
}

// SettingsStore persists the singleton configuration record. GetSettings
// creates the record with defaults when it does not exist yet.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, settings *Settings) error
}

// MailboxScanner lists, fetches and decodes candidate messages from the
// configured mailbox. Implementations return only messages whose receipt time
// falls inside the window, newest first. Any transport-level failure aborts
// the whole scan with an error.
type MailboxScanner interface {
	Scan(ctx context.Context, settings *Settings, window ScanWindow) (*ScanResult, error)
}

// ReportSender delivers a rendered report over the outbound mail transport.
// Delivery is best-effort: one attempt per call, clean shutdown regardless of
// outcome.
type ReportSender interface {
	Send(ctx context.Context, settings *Settings, recipients []string, subject, textBody, htmlBody string) error
}
