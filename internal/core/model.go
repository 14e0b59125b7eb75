package core

import (
	"time"
)

// Severity classifies a single backup notification message. Missing is never
// produced by the classifier; it is the aggregator's outcome when nothing
// matched or the mailbox was unreachable.
type Severity string

const (
	SeverityOK      Severity = "OK"
	SeverityWarning Severity = "WARNING"
	SeverityFailed  Severity = "FAILED"
	SeverityMissing Severity = "MISSING"
)

// severityPriority lists classifiable severities from worst to best. Tallies
// and summaries always follow this order.
var severityPriority = []Severity{SeverityFailed, SeverityWarning, SeverityOK}

// Rank returns the precedence of a severity (higher is worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityFailed:
		return 3
	case SeverityWarning:
		return 2
	case SeverityOK:
		return 1
	default:
		return 0
	}
}

// Client is a monitored backup client whose notification emails are tracked.
// The expected-subject fields are matching prefixes, one per severity; an
// empty prefix never matches. The Last* fields are written by the engine on
// every reconciliation run and persisted by the store.
type Client struct {
	ID             int64
	Name           string
	SubjectOK      string
	SubjectWarning string
	SubjectFailed  string

	LastStatus     Severity
	LastSubject    string
	LastStatuses   string
	LastEmailCount int
	LastNote       string
	LastCheckedAt  *time.Time
}

// Settings is the singleton mailbox and report configuration record. It is
// owned by the external configuration layer and re-read by the engine on every
// run, so changes apply without a restart.
type Settings struct {
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPUseTLS   bool

	CheckWindowStartHour int
	CheckWindowEndHour   int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool

	ReportRecipients string
	ReportEnabled    bool

	CheckHour    int
	CheckMinute  int
	ReportHour   int
	ReportMinute int

	UpdatedAt time.Time
}

// MailboxConfigured reports whether the mailbox transport can be attempted.
// Absence of host, username or password is a valid "not configured" state.
func (s *Settings) MailboxConfigured() bool {
	return s.IMAPHost != "" && s.IMAPUsername != "" && s.IMAPPassword != ""
}

// TransportConfigured reports whether the outbound mail transport is fully
// configured.
func (s *Settings) TransportConfigured() bool {
	return s.SMTPHost != "" && s.SMTPPort > 0 && s.SMTPUsername != "" && s.SMTPPassword != ""
}

// MailMessage is one decoded mailbox message: its subject and true receipt
// time. Message bodies are never retained.
type MailMessage struct {
	Subject    string
	ReceivedAt time.Time
}

// ScanResult is the successful output of a mailbox scan: in-window messages in
// newest-first order, plus a diagnostic note accumulated from per-message
// fetch or decode failures. A transport-level failure is returned as an error
// instead, never as a partial ScanResult.
type ScanResult struct {
	Messages []MailMessage
	Note     string
}

// Outcome is the per-client result of one reconciliation run. It is ephemeral:
// created during the run and discarded once written into the client's
// persisted Last* fields.
type Outcome struct {
	Status     Severity
	Subject    string
	Summary    string
	EmailCount int
	Note       string
}

// OpResult is the caller-facing result of an engine entry point. Message is a
// natural-language status suitable for direct display; transport errors never
// surface as raw faults.
type OpResult struct {
	OK      bool
	Message string
}
