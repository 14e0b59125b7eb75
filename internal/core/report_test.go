package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportClients() []Client {
	checked := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return []Client{
		{
			Name:           "fileserver",
			LastStatus:     SeverityOK,
			LastSubject:    "Backup OK fileserver",
			LastStatuses:   "OK ×2",
			LastEmailCount: 2,
			LastCheckedAt:  &checked,
		},
		{
			Name:       "vm01",
			LastStatus: SeverityMissing,
			LastNote:   "incomplete mailbox configuration",
		},
		{
			Name: "fresh",
		},
	}
}

func TestBuildTextReport(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	report := BuildTextReport(reportClients(), now)

	assert.Contains(t, report, "2026-03-10 09:30")
	assert.Contains(t, report, "3 monitored client(s)")

	assert.Contains(t, report, "fileserver")
	assert.Contains(t, report, "OK (OK ×2)")
	assert.Contains(t, report, "Backup OK fileserver")
	assert.Contains(t, report, "2026-03-10 09:00")

	assert.Contains(t, report, "note:    incomplete mailbox configuration")

	// Never-checked client falls back to placeholders.
	assert.Contains(t, report, "never checked")
	assert.Contains(t, report, "subject: -")
	assert.Contains(t, report, "status:  MISSING")

	// The note line only appears for clients that carry one.
	assert.Equal(t, 1, strings.Count(report, "note:"))
}

func TestBuildTextReportDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	clients := reportClients()

	assert.Equal(t, BuildTextReport(clients, now), BuildTextReport(clients, now))
}

func TestBuildHTMLReport(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	report, err := BuildHTMLReport(reportClients(), now)
	require.NoError(t, err)

	assert.Contains(t, report, "2026-03-10 09:30")
	assert.Contains(t, report, "<td>fileserver</td>")
	assert.Contains(t, report, "OK (OK ×2)")
	assert.Contains(t, report, "never checked")
	assert.Contains(t, report, "incomplete mailbox configuration")
}

func TestBuildHTMLReportEscapesContent(t *testing.T) {
	clients := []Client{{
		Name:        "evil <script>alert(1)</script>",
		LastStatus:  SeverityFailed,
		LastSubject: "Backup FAILED <b>bold</b>",
	}}

	report, err := BuildHTMLReport(clients, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.NotContains(t, report, "<script>")
	assert.NotContains(t, report, "<b>bold</b>")
	assert.Contains(t, report, "&lt;script&gt;")
}
