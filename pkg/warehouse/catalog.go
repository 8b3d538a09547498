package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/database"
)

// catalogRefreshInterval bounds how stale the cached schema snapshot may
// get before the next availability check reloads it.
const catalogRefreshInterval = 5 * time.Minute

// Catalog answers "does this table exist in the warehouse" for the
// data-availability confidence component. It snapshots information_schema
// and refreshes lazily; pipeline calls never block on a per-query probe.
type Catalog struct {
	db     *database.DB
	schema string
	logger *zap.Logger

	mu       sync.RWMutex
	tables   map[string]map[string]bool // table -> column set
	loadedAt time.Time
}

// NewCatalog creates a schema catalog over the warehouse connection.
// schema is the warehouse schema to snapshot (usually "public").
func NewCatalog(db *database.DB, schema string, logger *zap.Logger) *Catalog {
	if schema == "" {
		schema = "public"
	}
	return &Catalog{
		db:     db,
		schema: schema,
		logger: logger.Named("schema-catalog"),
	}
}

// Availability returns the fraction of the referenced tables that exist in
// the warehouse. An empty reference list is vacuously available. A stale
// snapshot is reused when a refresh fails; with no snapshot at all the
// error propagates and the caller picks a neutral signal.
func (c *Catalog) Availability(ctx context.Context, tables []string) (float64, error) {
	if len(tables) == 0 {
		return 1.0, nil
	}

	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return 0, err
	}

	present := 0
	for _, table := range tables {
		if _, ok := snapshot[table]; ok {
			present++
		}
	}

	return float64(present) / float64(len(tables)), nil
}

// HasColumn reports whether the table exists and carries the column.
func (c *Catalog) HasColumn(ctx context.Context, table, column string) (bool, error) {
	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}

	columns, ok := snapshot[table]
	if !ok {
		return false, nil
	}
	return columns[column], nil
}

// snapshot returns the cached table map, refreshing it when stale.
func (c *Catalog) snapshot(ctx context.Context) (map[string]map[string]bool, error) {
	c.mu.RLock()
	fresh := c.tables != nil && time.Since(c.loadedAt) < catalogRefreshInterval
	snapshot := c.tables
	c.mu.RUnlock()

	if fresh {
		return snapshot, nil
	}

	loaded, err := c.load(ctx)
	if err != nil {
		if snapshot != nil {
			c.logger.Warn("Schema catalog refresh failed, using stale snapshot",
				zap.Error(err))
			return snapshot, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.tables = loaded
	c.loadedAt = time.Now()
	c.mu.Unlock()

	return loaded, nil
}

func (c *Catalog) load(ctx context.Context) (map[string]map[string]bool, error) {
	rows, err := c.db.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1`, c.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema catalog: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan schema catalog row: %w", err)
		}
		if tables[table] == nil {
			tables[table] = make(map[string]bool)
		}
		tables[table][column] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema catalog rows: %w", err)
	}

	c.logger.Debug("Schema catalog refreshed",
		zap.String("schema", c.schema),
		zap.Int("tables", len(tables)))

	return tables, nil
}
