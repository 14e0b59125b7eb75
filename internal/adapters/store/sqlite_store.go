package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"backupwatch/internal/core"
)

// SQLiteStore is a SQLite implementation of the client and settings stores.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath, ensures the
// schema and applies the legacy expected-subject migration.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			subject_ok TEXT NOT NULL DEFAULT '',
			subject_warning TEXT NOT NULL DEFAULT '',
			subject_failed TEXT NOT NULL DEFAULT '',
			last_status TEXT NOT NULL DEFAULT 'MISSING',
			last_subject TEXT NOT NULL DEFAULT '',
			last_statuses TEXT NOT NULL DEFAULT '',
			last_email_count INTEGER NOT NULL DEFAULT 0,
			last_note TEXT NOT NULL DEFAULT '',
			last_checked_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create clients table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			imap_host TEXT NOT NULL DEFAULT '',
			imap_port INTEGER NOT NULL DEFAULT 993,
			imap_username TEXT NOT NULL DEFAULT '',
			imap_password TEXT NOT NULL DEFAULT '',
			imap_use_tls BOOLEAN NOT NULL DEFAULT 1,
			check_window_start_hour INTEGER NOT NULL DEFAULT 16,
			check_window_end_hour INTEGER NOT NULL DEFAULT 9,
			smtp_host TEXT NOT NULL DEFAULT '',
			smtp_port INTEGER NOT NULL DEFAULT 0,
			smtp_username TEXT NOT NULL DEFAULT '',
			smtp_password TEXT NOT NULL DEFAULT '',
			smtp_use_tls BOOLEAN NOT NULL DEFAULT 1,
			report_recipients TEXT NOT NULL DEFAULT '',
			report_enabled BOOLEAN NOT NULL DEFAULT 0,
			check_hour INTEGER NOT NULL DEFAULT 9,
			check_minute INTEGER NOT NULL DEFAULT 0,
			report_hour INTEGER NOT NULL DEFAULT 9,
			report_minute INTEGER NOT NULL DEFAULT 30,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrateLegacySubjects(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// migrateLegacySubjects copies the old single expected_subject column into
// subject_ok, once, for databases created by earlier versions. The resolution
// happens here at the data-access boundary so the classifier never sees the
// legacy field.
func (s *SQLiteStore) migrateLegacySubjects() error {
	rows, err := s.db.Query(`PRAGMA table_info(clients)`)
	if err != nil {
		return fmt.Errorf("failed to inspect clients table: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return fmt.Errorf("failed to inspect clients table: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect clients table: %w", err)
	}
	if !columns["expected_subject"] {
		return nil
	}

	// A database from before the per-severity split may also predate the
	// newer columns; add whatever is absent before copying.
	added := []struct{ name, definition string }{
		{"subject_ok", `TEXT NOT NULL DEFAULT ''`},
		{"subject_warning", `TEXT NOT NULL DEFAULT ''`},
		{"subject_failed", `TEXT NOT NULL DEFAULT ''`},
		{"last_statuses", `TEXT NOT NULL DEFAULT ''`},
		{"last_email_count", `INTEGER NOT NULL DEFAULT 0`},
		{"last_note", `TEXT NOT NULL DEFAULT ''`},
	}
	for _, col := range added {
		if columns[col.name] {
			continue
		}
		if _, err := s.db.Exec(`ALTER TABLE clients ADD COLUMN ` + col.name + ` ` + col.definition); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	result, err := s.db.Exec(`
		UPDATE clients
		SET subject_ok = expected_subject
		WHERE subject_ok = '' AND expected_subject <> ''
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate legacy expected subjects: %w", err)
	}
	if migrated, err := result.RowsAffected(); err == nil && migrated > 0 {
		s.logger.Info("Migrated legacy expected subjects", zap.Int64("clients", migrated))
	}
	return nil
}

const clientColumns = `id, name, subject_ok, subject_warning, subject_failed,
	last_status, last_subject, last_statuses, last_email_count, last_note, last_checked_at`

func scanClient(row interface{ Scan(...any) error }) (*core.Client, error) {
	var c core.Client
	var checkedAt sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.SubjectOK, &c.SubjectWarning, &c.SubjectFailed,
		&c.LastStatus, &c.LastSubject, &c.LastStatuses, &c.LastEmailCount, &c.LastNote, &checkedAt)
	if err != nil {
		return nil, err
	}
	if checkedAt.Valid && checkedAt.String != "" {
		t, err := time.Parse(time.RFC3339, checkedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_checked_at timestamp: %w", err)
		}
		c.LastCheckedAt = &t
	}
	return &c, nil
}

// List returns all monitored clients ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]core.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Get retrieves a client by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*core.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	return c, nil
}

// Create stores a new client and assigns its ID.
func (s *SQLiteStore) Create(ctx context.Context, client *core.Client) error {
	if client.LastStatus == "" {
		client.LastStatus = core.SeverityMissing
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (name, subject_ok, subject_warning, subject_failed, last_status)
		VALUES (?, ?, ?, ?, ?)
	`, client.Name, client.SubjectOK, client.SubjectWarning, client.SubjectFailed, client.LastStatus)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted client id: %w", err)
	}
	client.ID = id
	return nil
}

// Update overwrites a client's identity and matching rules.
func (s *SQLiteStore) Update(ctx context.Context, client *core.Client) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, subject_ok = ?, subject_warning = ?, subject_failed = ?
		WHERE id = ?
	`, client.Name, client.SubjectOK, client.SubjectWarning, client.SubjectFailed, client.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a client.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyOutcomes writes one run's outcomes for all clients in a single
// transaction so readers never observe a half-written run.
func (s *SQLiteStore) ApplyOutcomes(ctx context.Context, outcomes map[int64]core.Outcome, checkedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id, outcome := range outcomes {
		_, err := tx.ExecContext(ctx, `
			UPDATE clients
			SET last_status = ?, last_subject = ?, last_statuses = ?,
				last_email_count = ?, last_note = ?, last_checked_at = ?
			WHERE id = ?
		`, outcome.Status, outcome.Subject, outcome.Summary,
			outcome.EmailCount, outcome.Note, checkedAt.Format(time.RFC3339), id)
		if err != nil {
			return fmt.Errorf("failed to update client %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcomes: %w", err)
	}
	return nil
}

// GetSettings returns the singleton settings record, creating it with
// defaults when it does not exist yet.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*core.Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT imap_host, imap_port, imap_username, imap_password, imap_use_tls,
			check_window_start_hour, check_window_end_hour,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_use_tls,
			report_recipients, report_enabled,
			check_hour, check_minute, report_hour, report_minute, updated_at
		FROM settings WHERE id = 1
	`)

	var st core.Settings
	var updatedAt string
	err := row.Scan(&st.IMAPHost, &st.IMAPPort, &st.IMAPUsername, &st.IMAPPassword, &st.IMAPUseTLS,
		&st.CheckWindowStartHour, &st.CheckWindowEndHour,
		&st.SMTPHost, &st.SMTPPort, &st.SMTPUsername, &st.SMTPPassword, &st.SMTPUseTLS,
		&st.ReportRecipients, &st.ReportEnabled,
		&st.CheckHour, &st.CheckMinute, &st.ReportHour, &st.ReportMinute, &updatedAt)
	if err == sql.ErrNoRows {
		return s.createDefaultSettings(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	st.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings timestamp: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) createDefaultSettings(ctx context.Context) (*core.Settings, error) {
	st := defaultSettings(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, imap_port, imap_use_tls, smtp_use_tls,
			check_window_start_hour, check_window_end_hour,
			check_hour, check_minute, report_hour, report_minute, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.IMAPPort, st.IMAPUseTLS, st.SMTPUseTLS,
		st.CheckWindowStartHour, st.CheckWindowEndHour,
		st.CheckHour, st.CheckMinute, st.ReportHour, st.ReportMinute,
		st.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	s.logger.Info("Created default settings record")
	return st, nil
}

// UpdateSettings overwrites the singleton settings record.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, settings *core.Settings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (id, imap_host, imap_port, imap_username, imap_password, imap_use_tls,
			check_window_start_hour, check_window_end_hour,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_use_tls,
			report_recipients, report_enabled,
			check_hour, check_minute, report_hour, report_minute, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, settings.IMAPHost, settings.IMAPPort, settings.IMAPUsername, settings.IMAPPassword, settings.IMAPUseTLS,
		settings.CheckWindowStartHour, settings.CheckWindowEndHour,
		settings.SMTPHost, settings.SMTPPort, settings.SMTPUsername, settings.SMTPPassword, settings.SMTPUseTLS,
		settings.ReportRecipients, settings.ReportEnabled,
		settings.CheckHour, settings.CheckMinute, settings.ReportHour, settings.ReportMinute,
		settings.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// Stop closes the database connection.
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
