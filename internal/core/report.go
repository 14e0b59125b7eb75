package core

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

const reportTimeFormat = "2006-01-02 15:04"

// Placeholders used when an output field is absent.
const (
	noSubjectPlaceholder = "-"
	neverCheckedLabel    = "never checked"
)

// BuildTextReport renders the current persisted state of all clients as a
// plain-text document. Rendering is deterministic: the same client state
// produces the same document, timestamps aside. Clients are rendered in the
// order given by the caller (the store lists them by name).
func BuildTextReport(clients []Client, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backup status report — %s\n", now.Format(reportTimeFormat))
	fmt.Fprintf(&b, "%d monitored client(s)\n\n", len(clients))

	for _, client := range clients {
		fmt.Fprintf(&b, "%s\n", client.Name)
		fmt.Fprintf(&b, "  status:  %s\n", statusLine(&client))
		fmt.Fprintf(&b, "  emails:  %d\n", client.LastEmailCount)
		fmt.Fprintf(&b, "  subject: %s\n", orPlaceholder(client.LastSubject))
		fmt.Fprintf(&b, "  checked: %s\n", checkedLabel(&client))
		if client.LastNote != "" {
			fmt.Fprintf(&b, "  note:    %s\n", client.LastNote)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func statusLine(client *Client) string {
	status := client.LastStatus
	if status == "" {
		status = SeverityMissing
	}
	if client.LastStatuses != "" {
		return fmt.Sprintf("%s (%s)", status, client.LastStatuses)
	}
	return string(status)
}

func orPlaceholder(s string) string {
	if s == "" {
		return noSubjectPlaceholder
	}
	return s
}

func checkedLabel(client *Client) string {
	if client.LastCheckedAt == nil {
		return neverCheckedLabel
	}
	return client.LastCheckedAt.Format(reportTimeFormat)
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #222;">
<h2>Backup status report — {{.Generated}}</h2>
<p>{{.Count}} monitored client(s)</p>
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
<tr style="background: #f0f0f0;">
<th>Client</th><th>Status</th><th>Emails</th><th>Subject</th><th>Checked</th><th>Note</th>
</tr>
{{range .Rows}}<tr>
<td>{{.Name}}</td>
<td style="color: {{.Color}};"><strong>{{.Status}}</strong></td>
<td>{{.Count}}</td>
<td>{{.Subject}}</td>
<td>{{.Checked}}</td>
<td>{{.Note}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

type htmlReportRow struct {
	Name    string
	Status  string
	Color   string
	Count   int
	Subject string
	Checked string
	Note    string
}

type htmlReportData struct {
	Generated string
	Count     int
	Rows      []htmlReportRow
}

func severityColor(s Severity) string {
	switch s {
	case SeverityOK:
		return "#1a7f37"
	case SeverityWarning:
		return "#b8860b"
	case SeverityFailed:
		return "#b22222"
	default:
		return "#666666"
	}
}

// BuildHTMLReport renders the same state as BuildTextReport as a styled HTML
// document suitable for the report email's alternative body.
func BuildHTMLReport(clients []Client, now time.Time) (string, error) {
	data := htmlReportData{
		Generated: now.Format(reportTimeFormat),
		Count:     len(clients),
	}
	for _, client := range clients {
		status := client.LastStatus
		if status == "" {
			status = SeverityMissing
		}
		data.Rows = append(data.Rows, htmlReportRow{
			Name:    client.Name,
			Status:  statusLine(&client),
			Color:   severityColor(status),
			Count:   client.LastEmailCount,
			Subject: orPlaceholder(client.LastSubject),
			Checked: checkedLabel(&client),
			Note:    client.LastNote,
		})
	}

	var b strings.Builder
	if err := htmlReportTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return b.String(), nil
}
