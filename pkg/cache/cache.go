// Package cache stores finished pipeline outcomes keyed by normalized query
// text plus request context. The cache is a pure optimization layer: every
// operation is fail-open and a broken or absent backend only costs repeated
// pipeline work, never correctness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// Entry is one cached pipeline outcome. Confidence travels inside the
// processed query; HitCount and LastAccessed are bumped on every hit.
type Entry struct {
	ProcessedQuery models.ProcessedQuery    `json:"processed_query"`
	GeneratedSQL   string                   `json:"generated_sql"`
	Suggestions    []models.ChartSuggestion `json:"suggestions"`
	CreatedAt      time.Time                `json:"created_at"`
	LastAccessed   time.Time                `json:"last_accessed"`
	HitCount       int64                    `json:"hit_count"`
}

// Stats are process-local hit/miss counters for the metrics endpoint.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRate returns hits over total lookups, zero when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is the cache backend. Get returns (nil, nil) on a miss; an expired
// entry behaves exactly like a miss. Implementations bump HitCount and
// LastAccessed on hits. Errors are advisory: callers log them and continue.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Stats() Stats
	Close() error
}

// Key derives the deterministic cache key for a normalized query in a given
// request context. Same question, restaurant, location set, and calendar day
// always map to the same key.
func Key(normalized, contextFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(contextFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
