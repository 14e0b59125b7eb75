// Package store implements client and settings persistence.
package store

import (
	"time"

	"backupwatch/internal/core"
)

// defaultIMAPPort is the implicit-TLS IMAP port used when the singleton
// settings record is first created.
const defaultIMAPPort = 993

// defaultSettings is the singleton configuration created on first access.
// Host and credential fields stay empty: "not configured" is a valid state.
func defaultSettings(now time.Time) *core.Settings {
	return &core.Settings{
		IMAPPort:             defaultIMAPPort,
		IMAPUseTLS:           true,
		SMTPUseTLS:           true,
		CheckWindowStartHour: core.DefaultWindowStartHour,
		CheckWindowEndHour:   core.DefaultWindowEndHour,
		CheckHour:            core.DefaultCheckHour,
		CheckMinute:          core.DefaultCheckMinute,
		ReportHour:           core.DefaultReportHour,
		ReportMinute:         core.DefaultReportMinute,
		UpdatedAt:            now,
	}
}
