package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"backupwatch/internal/core"
)

const mysqlTimeFormat = "2006-01-02 15:04:05"

// MySQLStore is a MySQL implementation of the client and settings stores.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to the database described by dsn, ensures the schema
// exists and applies the legacy expected-subject migration.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS clients (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			subject_ok VARCHAR(512) NOT NULL DEFAULT '',
			subject_warning VARCHAR(512) NOT NULL DEFAULT '',
			subject_failed VARCHAR(512) NOT NULL DEFAULT '',
			last_status VARCHAR(16) NOT NULL DEFAULT 'MISSING',
			last_subject VARCHAR(998) NOT NULL DEFAULT '',
			last_statuses VARCHAR(255) NOT NULL DEFAULT '',
			last_email_count INT NOT NULL DEFAULT 0,
			last_note VARCHAR(512) NOT NULL DEFAULT '',
			last_checked_at DATETIME NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create clients table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id TINYINT PRIMARY KEY,
			imap_host VARCHAR(255) NOT NULL DEFAULT '',
			imap_port INT NOT NULL DEFAULT 993,
			imap_username VARCHAR(255) NOT NULL DEFAULT '',
			imap_password VARCHAR(255) NOT NULL DEFAULT '',
			imap_use_tls BOOLEAN NOT NULL DEFAULT TRUE,
			check_window_start_hour INT NOT NULL DEFAULT 16,
			check_window_end_hour INT NOT NULL DEFAULT 9,
			smtp_host VARCHAR(255) NOT NULL DEFAULT '',
			smtp_port INT NOT NULL DEFAULT 0,
			smtp_username VARCHAR(255) NOT NULL DEFAULT '',
			smtp_password VARCHAR(255) NOT NULL DEFAULT '',
			smtp_use_tls BOOLEAN NOT NULL DEFAULT TRUE,
			report_recipients TEXT NOT NULL,
			report_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			check_hour INT NOT NULL DEFAULT 9,
			check_minute INT NOT NULL DEFAULT 0,
			report_hour INT NOT NULL DEFAULT 9,
			report_minute INT NOT NULL DEFAULT 30,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	store := &MySQLStore{db: db, logger: logger}
	if err := store.migrateLegacySubjects(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// normalizeDSN forces parseTime on so DATETIME columns scan into time.Time
// regardless of what the configured DSN carries.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// migrateLegacySubjects copies the old single expected_subject column into
// subject_ok, once, for databases created by earlier versions. Mirrors the
// SQLite store's migration using information_schema in place of PRAGMA.
func (s *MySQLStore) migrateLegacySubjects() error {
	hasColumn := func(name string) (bool, error) {
		var n int
		err := s.db.QueryRow(`
			SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = 'clients' AND column_name = ?
		`, name).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to inspect clients table: %w", err)
		}
		return n > 0, nil
	}

	legacy, err := hasColumn("expected_subject")
	if err != nil {
		return err
	}
	if !legacy {
		return nil
	}

	// A database from before the per-severity split may also predate the
	// newer columns; add whatever is absent before copying.
	added := []struct{ name, definition string }{
		{"subject_ok", `VARCHAR(512) NOT NULL DEFAULT ''`},
		{"subject_warning", `VARCHAR(512) NOT NULL DEFAULT ''`},
		{"subject_failed", `VARCHAR(512) NOT NULL DEFAULT ''`},
		{"last_statuses", `VARCHAR(255) NOT NULL DEFAULT ''`},
		{"last_email_count", `INT NOT NULL DEFAULT 0`},
		{"last_note", `VARCHAR(512) NOT NULL DEFAULT ''`},
	}
	for _, col := range added {
		present, err := hasColumn(col.name)
		if err != nil {
			return err
		}
		if present {
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

// List returns all monitored clients ordered by name.
func (s *MySQLStore) List(ctx context.Context) ([]core.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY LOWER(name)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		c, err := s.scanClient(rows)
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

func (s *MySQLStore) scanClient(row interface{ Scan(...any) error }) (*core.Client, error) {
	var c core.Client
	var checkedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.SubjectOK, &c.SubjectWarning, &c.SubjectFailed,
		&c.LastStatus, &c.LastSubject, &c.LastStatuses, &c.LastEmailCount, &c.LastNote, &checkedAt)
	if err != nil {
		return nil, err
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		c.LastCheckedAt = &t
	}
	return &c, nil
}

// Get retrieves a client by ID.
func (s *MySQLStore) Get(ctx context.Context, id int64) (*core.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	c, err := s.scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	return c, nil
}

// Create stores a new client and assigns its ID.
func (s *MySQLStore) Create(ctx context.Context, client *core.Client) error {
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
func (s *MySQLStore) Update(ctx context.Context, client *core.Client) error {
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
func (s *MySQLStore) Delete(ctx context.Context, id int64) error {
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
func (s *MySQLStore) ApplyOutcomes(ctx context.Context, outcomes map[int64]core.Outcome, checkedAt time.Time) error {
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
			outcome.EmailCount, outcome.Note, checkedAt.Format(mysqlTimeFormat), id)
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
func (s *MySQLStore) GetSettings(ctx context.Context) (*core.Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT imap_host, imap_port, imap_username, imap_password, imap_use_tls,
			check_window_start_hour, check_window_end_hour,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_use_tls,
			report_recipients, report_enabled,
			check_hour, check_minute, report_hour, report_minute, updated_at
		FROM settings WHERE id = 1
	`)

	var st core.Settings
	var updatedAt time.Time
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

	st.UpdatedAt = updatedAt
	return &st, nil
}

func (s *MySQLStore) createDefaultSettings(ctx context.Context) (*core.Settings, error) {
	st := defaultSettings(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, imap_port, imap_use_tls, smtp_use_tls,
			check_window_start_hour, check_window_end_hour, report_recipients,
			check_hour, check_minute, report_hour, report_minute, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?)
	`, st.IMAPPort, st.IMAPUseTLS, st.SMTPUseTLS,
		st.CheckWindowStartHour, st.CheckWindowEndHour,
		st.CheckHour, st.CheckMinute, st.ReportHour, st.ReportMinute,
		st.UpdatedAt.Format(mysqlTimeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	s.logger.Info("Created default settings record")
	return st, nil
}

// UpdateSettings overwrites the singleton settings record.
func (s *MySQLStore) UpdateSettings(ctx context.Context, settings *core.Settings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO settings (id, imap_host, imap_port, imap_username, imap_password, imap_use_tls,
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
		settings.UpdatedAt.Format(mysqlTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// Stop closes the database connection.
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL connection", zap.Error(err))
	}
}
