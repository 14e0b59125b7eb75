package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClientStore struct {
	clients    []Client
	listErr    error
	applyErr   error
	applied    map[int64]Outcome
	appliedAt  time.Time
	applyCalls int
}

func (f *fakeClientStore) List(ctx context.Context) ([]Client, error) {
	return f.clients, f.listErr
}

func (f *fakeClientStore) Get(ctx context.Context, id int64) (*Client, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClientStore) Create(ctx context.Context, client *Client) error { return nil }
func (f *fakeClientStore) Update(ctx context.Context, client *Client) error { return nil }
func (f *fakeClientStore) Delete(ctx context.Context, id int64) error       { return nil }

func (f *fakeClientStore) ApplyOutcomes(ctx context.Context, outcomes map[int64]Outcome, checkedAt time.Time) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = outcomes
	f.appliedAt = checkedAt
	return nil
}

type fakeSettingsStore struct {
	settings *Settings
	err      error
}

func (f *fakeSettingsStore) GetSettings(ctx context.Context) (*Settings, error) {
	return f.settings, f.err
}

func (f *fakeSettingsStore) UpdateSettings(ctx context.Context, settings *Settings) error {
	f.settings = settings
	return nil
}

type fakeScanner struct {
	result *ScanResult
	err    error
	calls  int
	window ScanWindow
}

func (f *fakeScanner) Scan(ctx context.Context, settings *Settings, window ScanWindow) (*ScanResult, error) {
	f.calls++
	f.window = window
	return f.result, f.err
}

type fakeSender struct {
	err        error
	calls      int
	recipients []string
	subject    string
	textBody   string
	htmlBody   string
}

func (f *fakeSender) Send(ctx context.Context, settings *Settings, recipients []string, subject, textBody, htmlBody string) error {
	f.calls++
	f.recipients = recipients
	f.subject = subject
	f.textBody = textBody
	f.htmlBody = htmlBody
	return f.err
}

func configuredSettings() *Settings {
	return &Settings{
		IMAPHost:             "imap.example.com",
		IMAPPort:             993,
		IMAPUsername:         "watcher",
		IMAPPassword:         "secret",
		IMAPUseTLS:           true,
		CheckWindowStartHour: 16,
		CheckWindowEndHour:   9,
		SMTPHost:             "smtp.example.com",
		SMTPPort:             587,
		SMTPUsername:         "watcher",
		SMTPPassword:         "secret",
		SMTPUseTLS:           true,
		ReportRecipients:     "ops@example.com, admin@example.com",
	}
}

func newTestEngine(clients *fakeClientStore, settings *fakeSettingsStore, scanner *fakeScanner, sender *fakeSender) *Engine {
	engine := NewEngine(clients, settings, scanner, sender, zap.NewNop(), time.UTC, "Backup status report")
	return engine.WithClock(func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	})
}

func TestReconcileNowNoClients(t *testing.T) {
	clients := &fakeClientStore{}
	scanner := &fakeScanner{}
	engine := newTestEngine(clients, &fakeSettingsStore{settings: configuredSettings()}, scanner, &fakeSender{})

	result := engine.ReconcileNow(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "no monitored clients", result.Message)
	assert.Zero(t, scanner.calls)
	assert.Zero(t, clients.applyCalls)
}

func TestReconcileNowIncompleteMailboxConfig(t *testing.T) {
	clients := &fakeClientStore{clients: []Client{{ID: 1}, {ID: 2}}}
	scanner := &fakeScanner{}
	settings := &fakeSettingsStore{settings: &Settings{IMAPHost: "imap.example.com"}}
	engine := newTestEngine(clients, settings, scanner, &fakeSender{})

	result := engine.ReconcileNow(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "mailbox configuration is incomplete", result.Message)
	assert.Zero(t, scanner.calls, "no transport attempt on incomplete configuration")

	require.Len(t, clients.applied, 2)
	for _, outcome := range clients.applied {
		assert.Equal(t, SeverityMissing, outcome.Status)
		assert.Equal(t, "incomplete mailbox configuration", outcome.Note)
	}
}

func TestReconcileNowScanFailure(t *testing.T) {
	clients := &fakeClientStore{clients: []Client{{ID: 1}, {ID: 2}}}
	scanner := &fakeScanner{err: errors.New("connection refused")}
	engine := newTestEngine(clients, &fakeSettingsStore{settings: configuredSettings()}, scanner, &fakeSender{})

	result := engine.ReconcileNow(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "mailbox scan failed: connection refused", result.Message)

	require.Len(t, clients.applied, 2)
	for _, outcome := range clients.applied {
		assert.Equal(t, SeverityMissing, outcome.Status)
		assert.Equal(t, "mailbox error: connection refused", outcome.Note)
	}
	assert.Equal(t, 1, clients.applyCalls, "failure commits in one pass")
}

func TestReconcileNowSuccess(t *testing.T) {
	clients := &fakeClientStore{clients: []Client{
		{ID: 1, Name: "fileserver", SubjectOK: "Backup OK fileserver"},
		{ID: 2, Name: "vm01", SubjectOK: "Backup OK vm01"},
	}}
	scanner := &fakeScanner{result: &ScanResult{Messages: []MailMessage{
		{Subject: "Backup OK fileserver", ReceivedAt: time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)},
	}}}
	engine := newTestEngine(clients, &fakeSettingsStore{settings: configuredSettings()}, scanner, &fakeSender{})

	result := engine.ReconcileNow(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "checked 2 client(s) against 1 message(s)", result.Message)
	assert.Equal(t, 1, clients.applyCalls)

	require.Len(t, clients.applied, 2)
	assert.Equal(t, SeverityOK, clients.applied[1].Status)
	assert.Equal(t, SeverityMissing, clients.applied[2].Status)

	// The window passed to the scanner is derived from the settings.
	assert.Equal(t, time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC), scanner.window.Start)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), scanner.window.End)
}

func TestSendReportNowNoRecipients(t *testing.T) {
	settings := configuredSettings()
	settings.ReportRecipients = " ; , "
	sender := &fakeSender{}
	engine := newTestEngine(&fakeClientStore{}, &fakeSettingsStore{settings: settings}, &fakeScanner{}, sender)

	result := engine.SendReportNow(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "no report recipients configured", result.Message)
	assert.Zero(t, sender.calls)
}

func TestSendReportNowRecipientsCheckedBeforeTransport(t *testing.T) {
	// Both preconditions fail; the recipient message must win.
	settings := &Settings{}
	sender := &fakeSender{}
	engine := newTestEngine(&fakeClientStore{}, &fakeSettingsStore{settings: settings}, &fakeScanner{}, sender)

	result := engine.SendReportNow(context.Background())
	assert.Equal(t, "no report recipients configured", result.Message)

	settings.ReportRecipients = "ops@example.com"
	result = engine.SendReportNow(context.Background())
	assert.Equal(t, "outgoing mail configuration is incomplete", result.Message)
	assert.Zero(t, sender.calls)
}

func TestSendReportNowSuccess(t *testing.T) {
	clients := &fakeClientStore{clients: []Client{{ID: 1, Name: "fileserver", LastStatus: SeverityOK}}}
	sender := &fakeSender{}
	engine := newTestEngine(clients, &fakeSettingsStore{settings: configuredSettings()}, &fakeScanner{}, sender)

	result := engine.SendReportNow(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "report sent to 2 recipient(s)", result.Message)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"ops@example.com", "admin@example.com"}, sender.recipients)
	assert.Equal(t, "Backup status report", sender.subject)
	assert.Contains(t, sender.textBody, "fileserver")
	assert.Contains(t, sender.htmlBody, "<td>fileserver</td>")
}

func TestSendReportNowSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay access denied")}
	engine := newTestEngine(&fakeClientStore{}, &fakeSettingsStore{settings: configuredSettings()}, &fakeScanner{}, sender)

	result := engine.SendReportNow(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "could not send report: relay access denied", result.Message)
	assert.Equal(t, 1, sender.calls, "delivery is a single attempt")
}
