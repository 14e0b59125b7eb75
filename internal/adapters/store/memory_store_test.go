package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backupwatch/internal/core"
)

func TestMemoryStoreClientLifecycle(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	client := &core.Client{Name: "fileserver", SubjectOK: "Backup OK fileserver"}
	require.NoError(t, s.Create(ctx, client))
	assert.NotZero(t, client.ID)
	assert.Equal(t, core.SeverityMissing, client.LastStatus, "new clients start as missing")

	got, err := s.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "fileserver", got.Name)

	got.Name = "fileserver-renamed"
	require.NoError(t, s.Update(ctx, got))

	got, err = s.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "fileserver-renamed", got.Name)

	require.NoError(t, s.Delete(ctx, client.ID))
	_, err = s.Get(ctx, client.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, client.ID), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, client), ErrNotFound)
}

func TestMemoryStoreListOrdersByName(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	for _, name := range []string{"zebra", "Alpha", "mango"} {
		require.NoError(t, s.Create(ctx, &core.Client{Name: name}))
	}

	clients, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "Alpha", clients[0].Name)
	assert.Equal(t, "mango", clients[1].Name)
	assert.Equal(t, "zebra", clients[2].Name)
}

func TestMemoryStoreApplyOutcomes(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	a := &core.Client{Name: "a"}
	b := &core.Client{Name: "b"}
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	checkedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	outcomes := map[int64]core.Outcome{
		a.ID: {Status: core.SeverityOK, Subject: "Backup OK a", Summary: "OK", EmailCount: 1},
		b.ID: {Status: core.SeverityMissing, Note: "incomplete mailbox configuration"},
	}
	require.NoError(t, s.ApplyOutcomes(ctx, outcomes, checkedAt))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SeverityOK, got.LastStatus)
	assert.Equal(t, "Backup OK a", got.LastSubject)
	assert.Equal(t, 1, got.LastEmailCount)
	require.NotNil(t, got.LastCheckedAt)
	assert.Equal(t, checkedAt, *got.LastCheckedAt)

	got, err = s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SeverityMissing, got.LastStatus)
	assert.Equal(t, "incomplete mailbox configuration", got.LastNote)
	assert.Empty(t, got.LastSubject)
}

func TestMemoryStoreSettings(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 993, settings.IMAPPort)
	assert.True(t, settings.IMAPUseTLS)
	assert.Equal(t, core.DefaultWindowStartHour, settings.CheckWindowStartHour)
	assert.Equal(t, core.DefaultWindowEndHour, settings.CheckWindowEndHour)
	assert.False(t, settings.ReportEnabled)
	assert.False(t, settings.MailboxConfigured(), "defaults are not a configured mailbox")

	settings.IMAPHost = "imap.example.com"
	settings.IMAPUsername = "watcher"
	settings.IMAPPassword = "secret"
	require.NoError(t, s.UpdateSettings(ctx, settings))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.MailboxConfigured())
	assert.False(t, got.UpdatedAt.IsZero())
}
