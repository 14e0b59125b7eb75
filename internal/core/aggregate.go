package core

import (
	"fmt"
	"strings"
)

// timeNoteFormat renders window boundaries inside diagnostic notes.
const timeNoteFormat = "2006-01-02 15:04"

// AggregateClient combines all in-window messages into one outcome for a
// single client. Messages must already be in newest-first scan order: the
// representative subject is the first one that classifies at all, while the
// tally considers every message. scanNote carries the scanner's per-message
// diagnostics and is only surfaced when nothing matched.
func AggregateClient(client *Client, messages []MailMessage, scanNote string, window ScanWindow) Outcome {
	counts := make(map[Severity]int)
	var firstSubject string

	for _, msg := range messages {
		severity, ok := ClassifySubject(msg.Subject, client)
		if !ok {
			continue
		}
		if firstSubject == "" {
			firstSubject = msg.Subject
		}
		counts[severity]++
	}

	if len(counts) == 0 {
		note := scanNote
		if note == "" {
			note = fmt.Sprintf("no message between %s and %s matched the expected subjects",
				window.Start.Format(timeNoteFormat), window.End.Format(timeNoteFormat))
		}
		return Outcome{Status: SeverityMissing, Note: note}
	}

	return Outcome{
		Status:     worstSeverity(counts),
		Subject:    firstSubject,
		Summary:    summarizeCounts(counts),
		EmailCount: totalCount(counts),
	}
}

// worstSeverity returns the highest-priority severity with a non-zero count.
func worstSeverity(counts map[Severity]int) Severity {
	for _, severity := range severityPriority {
		if counts[severity] > 0 {
			return severity
		}
	}
	return SeverityMissing
}

// summarizeCounts renders the per-severity tally as a human-readable list in
// priority order, e.g. "FAILED ×2, OK".
func summarizeCounts(counts map[Severity]int) string {
	parts := make([]string, 0, len(counts))
	for _, severity := range severityPriority {
		n := counts[severity]
		if n == 0 {
			continue
		}
		if n > 1 {
			parts = append(parts, fmt.Sprintf("%s ×%d", severity, n))
		} else {
			parts = append(parts, string(severity))
		}
	}
	return strings.Join(parts, ", ")
}

func totalCount(counts map[Severity]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// missingOutcomes builds an all-MISSING outcome set with a shared note, used
// when the scan could not run at all. Subjects, summaries and counts are
// cleared so no stale evidence survives the failed run.
func missingOutcomes(clients []Client, note string) map[int64]Outcome {
	outcomes := make(map[int64]Outcome, len(clients))
	for _, client := range clients {
		outcomes[client.ID] = Outcome{Status: SeverityMissing, Note: note}
	}
	return outcomes
}
