package core

import (
	"strings"
)

// ClassifySubject decides which severity a message subject represents for one
// client. Prefixes are tested worst-first (FAILED, WARNING, OK) so a subject
// that could satisfy more than one prefix always classifies as the worse
// severity. Matching is a case-insensitive prefix test; an empty expected
// prefix never matches. The second return value is false when the message is
// not about this client at all.
func ClassifySubject(subject string, client *Client) (Severity, bool) {
	normalized := normalizeSubject(subject)

	for _, severity := range severityPriority {
		expected := normalizeSubject(client.expectedSubject(severity))
		if expected == "" {
			continue
		}
		if strings.HasPrefix(normalized, expected) {
			return severity, true
		}
	}

	return "", false
}

func (c *Client) expectedSubject(severity Severity) string {
	switch severity {
	case SeverityFailed:
		return c.SubjectFailed
	case SeverityWarning:
		return c.SubjectWarning
	case SeverityOK:
		return c.SubjectOK
	default:
		return ""
	}
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
