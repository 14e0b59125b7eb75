// Package imapmail implements the mailbox scanner over IMAP.
package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"

	"backupwatch/internal/core"
	"backupwatch/internal/utils"
)

// Diagnostic notes for per-message failures. Only the first failure of a scan
// is recorded; the aggregator surfaces it when no message matched.
const (
	noteFetchFailed    = "could not fetch a message from the mailbox"
	noteUnreadableDate = "skipped a message with an unreadable date"
)

// maxSubjectLength caps decoded subjects so they fit the store's columns.
const maxSubjectLength = 512

// Scanner lists and decodes candidate messages from an IMAP INBOX. It
// implements core.MailboxScanner.
type Scanner struct {
	logger      *zap.Logger
	text        *utils.TextProcessor
	location    *time.Location
	dialTimeout time.Duration
}

// NewScanner creates an IMAP mailbox scanner. Timezone-naive message dates are
// interpreted in the given location.
func NewScanner(logger *zap.Logger, location *time.Location, dialTimeout time.Duration) *Scanner {
	return &Scanner{
		logger:      logger,
		text:        utils.NewTextProcessor(logger),
		location:    location,
		dialTimeout: dialTimeout,
	}
}

// Scan connects to the mailbox, searches messages received on or after the
// window start's calendar date, fetches each one newest-first and returns the
// decoded messages whose true receipt time falls inside the window. Transport
// failures (connect, login, select, search) abort the whole scan with an
// error; per-message failures are isolated and recorded as a note.
func (s *Scanner) Scan(ctx context.Context, settings *core.Settings, window core.ScanWindow) (*core.ScanResult, error) {
	client, err := s.dial(ctx, settings)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Login(settings.IMAPUsername, settings.IMAPPassword).Wait(); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	// IMAP SINCE is day-granular; the exact window filter happens client-side
	// on the parsed Date header.
	sinceDay := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(),
		0, 0, 0, 0, window.Start.Location())
	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: sinceDay}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("mailbox search failed: %w", err)
	}

	uids := searchData.AllUIDs()
	s.logger.Debug("Mailbox search complete",
		zap.Int("candidates", len(uids)),
		zap.Time("since", sinceDay))

	result := &core.ScanResult{}
	for i := len(uids) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan aborted: %w", err)
		}

		msg, err := s.fetchMessage(client, uids[i])
		if err != nil {
			s.logger.Warn("Failed to fetch message", zap.Uint32("uid", uint32(uids[i])), zap.Error(err))
			if result.Note == "" {
				result.Note = noteFetchFailed
			}
			continue
		}
		if msg.ReceivedAt.IsZero() {
			s.logger.Debug("Skipping message with unparsable date", zap.Uint32("uid", uint32(uids[i])))
			if result.Note == "" {
				result.Note = noteUnreadableDate
			}
			continue
		}
		if !window.Contains(msg.ReceivedAt) {
			// Expected for day-granular SINCE results, not an error.
			continue
		}

		result.Messages = append(result.Messages, *msg)
	}

	return result, nil
}

// dial opens a connection to the configured IMAP server, with implicit TLS
// when the transport-security flag is set. The context deadline is propagated
// onto the socket so every later protocol step is bounded by it; a server that
// accepts and then goes silent cannot wedge the run.
func (s *Scanner) dial(ctx context.Context, settings *core.Settings) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", settings.IMAPHost, settings.IMAPPort)

	conn, err := (&net.Dialer{Timeout: s.dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	if settings.IMAPUseTLS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: settings.IMAPHost})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s failed: %w", addr, err)
		}
		conn = tlsConn
	}

	return imapclient.New(conn, nil), nil
}

// fetchMessage fetches one message fully (without setting \Seen) and decodes
// its subject and receipt time. A zero ReceivedAt means the Date header was
// absent or unparsable.
func (s *Scanner) fetchMessage(client *imapclient.Client, uid imap.UID) (*core.MailMessage, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	var uidSet imap.UIDSet
	uidSet.AddNum(uid)

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	msgData := fetchCmd.Next()
	if msgData == nil {
		fetchCmd.Close()
		return nil, fmt.Errorf("message %d not returned by server", uid)
	}

	var raw []byte
	for {
		item := msgData.Next()
		if item == nil {
			break
		}
		body, ok := item.(imapclient.FetchItemDataBodySection)
		if !ok {
			continue
		}
		data, err := io.ReadAll(body.Literal)
		if err != nil {
			fetchCmd.Close()
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}
		raw = data
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("message %d has no content", uid)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, fmt.Errorf("failed to parse message headers: %w", err)
	}

	subject, err := mr.Header.Subject()
	if err != nil || subject == "" {
		subject = decodeHeader(mr.Header.Get("Subject"))
	}

	subject = s.text.SanitizeUTF8(subject)
	subject = s.text.TruncateText(subject, maxSubjectLength)

	return &core.MailMessage{
		Subject:    subject,
		ReceivedAt: parseReceiptDate(&mr.Header, s.location),
	}, nil
}
