package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backupwatch/internal/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestSQLiteStoreClientLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	client := &core.Client{
		Name:           "fileserver",
		SubjectOK:      "Backup OK fileserver",
		SubjectWarning: "Backup WARNING fileserver",
		SubjectFailed:  "Backup FAILED fileserver",
	}
	require.NoError(t, s.Create(ctx, client))
	require.NotZero(t, client.ID)

	got, err := s.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "fileserver", got.Name)
	assert.Equal(t, core.SeverityMissing, got.LastStatus)
	assert.Nil(t, got.LastCheckedAt)

	got.SubjectOK = "Backup SUCCESS fileserver"
	require.NoError(t, s.Update(ctx, got))

	got, err = s.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backup SUCCESS fileserver", got.SubjectOK)

	require.NoError(t, s.Delete(ctx, client.ID))
	_, err = s.Get(ctx, client.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, client.ID), ErrNotFound)
}

func TestSQLiteStoreApplyOutcomes(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &core.Client{Name: "a"}
	b := &core.Client{Name: "b"}
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	checkedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyOutcomes(ctx, map[int64]core.Outcome{
		a.ID: {Status: core.SeverityFailed, Subject: "Backup FAILED a", Summary: "FAILED ×2", EmailCount: 2, Note: ""},
		b.ID: {Status: core.SeverityMissing, Note: "mailbox error: connection refused"},
	}, checkedAt))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SeverityFailed, got.LastStatus)
	assert.Equal(t, "FAILED ×2", got.LastStatuses)
	assert.Equal(t, 2, got.LastEmailCount)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, got.LastCheckedAt.Equal(checkedAt))

	got, err = s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SeverityMissing, got.LastStatus)
	assert.Equal(t, "mailbox error: connection refused", got.LastNote)
}

func TestSQLiteStoreSettingsDefaults(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 993, settings.IMAPPort)
	assert.True(t, settings.IMAPUseTLS)
	assert.Equal(t, core.DefaultWindowStartHour, settings.CheckWindowStartHour)
	assert.False(t, settings.ReportEnabled)

	settings.SMTPHost = "smtp.example.com"
	settings.SMTPPort = 587
	settings.SMTPUsername = "watcher"
	settings.SMTPPassword = "secret"
	settings.ReportRecipients = "ops@example.com"
	settings.ReportEnabled = true
	require.NoError(t, s.UpdateSettings(ctx, settings))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.TransportConfigured())
	assert.True(t, got.ReportEnabled)
	assert.Equal(t, "ops@example.com", got.ReportRecipients)
}

func TestSQLiteStoreLegacySubjectMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Seed a database laid out the way the pre-split schema was.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			expected_subject TEXT NOT NULL DEFAULT '',
			last_status TEXT NOT NULL DEFAULT 'MISSING',
			last_subject TEXT NOT NULL DEFAULT '',
			last_checked_at TIMESTAMP
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO clients (name, expected_subject) VALUES ('fileserver', 'Backup OK fileserver')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO clients (name, expected_subject) VALUES ('empty', '')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	clients, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, "fileserver", clients[1].Name)
	assert.Equal(t, "Backup OK fileserver", clients[1].SubjectOK, "legacy subject moves to the OK slot")
	assert.Empty(t, clients[1].SubjectWarning)
	assert.Empty(t, clients[1].SubjectFailed)

	assert.Equal(t, "empty", clients[0].Name)
	assert.Empty(t, clients[0].SubjectOK)
}

func TestSQLiteStoreMigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			expected_subject TEXT NOT NULL DEFAULT '',
			last_status TEXT NOT NULL DEFAULT 'MISSING',
			last_subject TEXT NOT NULL DEFAULT '',
			last_checked_at TIMESTAMP
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO clients (name, expected_subject) VALUES ('fileserver', 'Backup OK fileserver')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Open twice; the second open must not disturb data written in between.
	s, err := NewSQLiteStore(dbPath, zap.NewNop())
	require.NoError(t, err)

	clients, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	clients[0].SubjectOK = "Backup SUCCESS fileserver"
	require.NoError(t, s.Update(context.Background(), &clients[0]))
	s.Stop()

	s, err = NewSQLiteStore(dbPath, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	clients, err = s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Backup SUCCESS fileserver", clients[0].SubjectOK)
}
