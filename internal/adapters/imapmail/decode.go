package imapmail

import (
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

var mimeWordDecoder = &mime.WordDecoder{}

// decodeHeader decodes RFC 2047 encoded-words (=?charset?encoding?text?=) in a
// header value, falling back to the raw value on failure.
func decodeHeader(s string) string {
	decoded, err := mimeWordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// Fallback layouts for Date headers without a timezone. Such dates are
// interpreted in the configured local zone.
var naiveDateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2006-01-02 15:04:05",
}

// parseReceiptDate extracts the message's receipt time from its Date header.
// Returns the zero time when the header is absent or unparsable.
func parseReceiptDate(header *mail.Header, location *time.Location) time.Time {
	if date, err := header.Date(); err == nil && !date.IsZero() {
		return date
	}

	raw := strings.TrimSpace(header.Get("Date"))
	if raw == "" {
		return time.Time{}
	}
	return parseNaiveDate(raw, location)
}

func parseNaiveDate(raw string, location *time.Location) time.Time {
	for _, layout := range naiveDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, location); err == nil {
			return t
		}
	}
	return time.Time{}
}
