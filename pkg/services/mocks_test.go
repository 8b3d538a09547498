package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/cache"
	"github.com/bitebase/intelligence-engine/pkg/models"
)

// mockHistoryRepo is an in-memory HistoryRepository.
type mockHistoryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.QueryHistoryEntry
	order   []uuid.UUID
	applied []models.Feedback

	createErr error
	applyErr  error

	deleteCutoff  time.Time
	deleteReturns int64

	stats models.HistoryStats
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{entries: make(map[uuid.UUID]*models.QueryHistoryEntry)}
}

func (m *mockHistoryRepo) Create(ctx context.Context, entry *models.QueryHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	clone := *entry
	m.entries[entry.ID] = &clone
	m.order = append(m.order, entry.ID)
	return nil
}

func (m *mockHistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.QueryHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (m *mockHistoryRepo) List(ctx context.Context, filters models.HistoryFilters) ([]*models.QueryHistoryEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.QueryHistoryEntry
	for i := len(m.order) - 1; i >= 0; i-- {
		entry := m.entries[m.order[i]]
		if filters.UserID != "" && entry.UserID != filters.UserID {
			continue
		}
		clone := *entry
		out = append(out, &clone)
	}
	return out, len(out), nil
}

func (m *mockHistoryRepo) ApplyFeedback(ctx context.Context, fb *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	entry, ok := m.entries[fb.QueryID]
	if !ok {
		return apperrors.ErrNotFound
	}
	rating := fb.Rating
	helpful := fb.WasHelpful
	entry.Rating = &rating
	entry.FeedbackText = fb.FeedbackText
	entry.WasHelpful = &helpful
	m.applied = append(m.applied, *fb)
	return nil
}

func (m *mockHistoryRepo) Stats(ctx context.Context) (*models.HistoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	return &stats, nil
}

func (m *mockHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCutoff = cutoff
	return m.deleteReturns, nil
}

func (m *mockHistoryRepo) appliedFeedback() []models.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Feedback(nil), m.applied...)
}

func (m *mockHistoryRepo) entryByIndex(i int) *models.QueryHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.order) {
		return nil
	}
	clone := *m.entries[m.order[i]]
	return &clone
}

func (m *mockHistoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// mockPatternRepo is an in-memory PatternRepository.
type mockPatternRepo struct {
	mu       sync.Mutex
	usages   []models.PatternUsage
	patterns map[string]*models.Pattern
	topList  []*models.Pattern

	recordErr error
}

func newMockPatternRepo() *mockPatternRepo {
	return &mockPatternRepo{patterns: make(map[string]*models.Pattern)}
}

func (m *mockPatternRepo) RecordUsage(ctx context.Context, usage *models.PatternUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.usages = append(m.usages, *usage)
	return nil
}

func (m *mockPatternRepo) Get(ctx context.Context, specificIntent string) (*models.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[specificIntent]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockPatternRepo) Top(ctx context.Context, limit int) ([]*models.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Pattern, 0, len(m.topList))
	for _, p := range m.topList {
		if len(out) >= limit {
			break
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockPatternRepo) recordedUsages() []models.PatternUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PatternUsage(nil), m.usages...)
}

// mockCacheStore is an in-memory cache.Store without expiry.
type mockCacheStore struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
	hits    int64
	misses  int64

	getErr error
	setErr error
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[string]cache.Entry)}
}

func (m *mockCacheStore) Get(ctx context.Context, key string) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, nil
	}
	m.hits++
	entry.HitCount++
	entry.LastAccessed = time.Now().UTC()
	m.entries[key] = entry
	clone := entry
	return &clone, nil
}

func (m *mockCacheStore) Set(ctx context.Context, key string, entry cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = entry
	return nil
}

func (m *mockCacheStore) Stats() cache.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache.Stats{Hits: m.hits, Misses: m.misses}
}

func (m *mockCacheStore) Close() error { return nil }

func (m *mockCacheStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// mockExecutor is a scripted SQLExecutor.
type mockExecutor struct {
	mu     sync.Mutex
	result *models.QueryResult
	err    error
	// blockUntilCancel makes Execute wait for context cancellation, for
	// exercising the timeout path.
	blockUntilCancel bool

	executed []string
}

func (m *mockExecutor) Execute(ctx context.Context, sqlQuery string) (*models.QueryResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, sqlQuery)
	block := m.blockUntilCancel
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExecutor) executedSQL() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

// mockCatalog is a fixed-answer SchemaCatalog.
type mockCatalog struct {
	avail float64
	err   error
}

func (m *mockCatalog) Availability(ctx context.Context, tables []string) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.avail, nil
}
