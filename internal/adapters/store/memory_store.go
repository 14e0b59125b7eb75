package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"backupwatch/internal/core"
)

// ErrNotFound is returned when a client does not exist
var ErrNotFound = errors.New("client not found")

// MemoryStore is an in-memory implementation of the client and settings
// stores, used for tests and throwaway deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[int64]*core.Client
	settings *core.Settings
	nextID   int64
	logger   *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		clients: make(map[int64]*core.Client),
		nextID:  1,
		logger:  logger,
	}
}

// List returns all monitored clients ordered by name.
func (s *MemoryStore) List(ctx context.Context) ([]core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Get retrieves a client by ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// Create stores a new client and assigns its ID.
func (s *MemoryStore) Create(ctx context.Context, client *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client.ID = s.nextID
	s.nextID++
	if client.LastStatus == "" {
		client.LastStatus = core.SeverityMissing
	}
	copied := *client
	s.clients[client.ID] = &copied
	return nil
}

// Update overwrites an existing client.
func (s *MemoryStore) Update(ctx context.Context, client *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client.ID]; !ok {
		return ErrNotFound
	}
	copied := *client
	s.clients[client.ID] = &copied
	return nil
}

// Delete removes a client.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[id]; !ok {
		return ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

// ApplyOutcomes writes one run's outcomes for all clients under a single lock
// so readers never observe a half-written run.
func (s *MemoryStore) ApplyOutcomes(ctx context.Context, outcomes map[int64]core.Outcome, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, outcome := range outcomes {
		c, ok := s.clients[id]
		if !ok {
			continue
		}
		c.LastStatus = outcome.Status
		c.LastSubject = outcome.Subject
		c.LastStatuses = outcome.Summary
		c.LastEmailCount = outcome.EmailCount
		c.LastNote = outcome.Note
		at := checkedAt
		c.LastCheckedAt = &at
	}
	return nil
}

// GetSettings returns the singleton settings record, creating it with
// defaults on first access.
func (s *MemoryStore) GetSettings(ctx context.Context) (*core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = defaultSettings(time.Now())
	}
	copied := *s.settings
	return &copied, nil
}

// UpdateSettings overwrites the singleton settings record.
func (s *MemoryStore) UpdateSettings(ctx context.Context, settings *core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *settings
	copied.UpdatedAt = time.Now()
	s.settings = &copied
	return nil
}

// Stop releases store resources. Nothing to do for the in-memory variant.
func (s *MemoryStore) Stop() {}
