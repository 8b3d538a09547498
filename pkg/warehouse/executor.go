// Package warehouse provides read-only access to the analytics warehouse:
// query execution with row caps and the schema catalog backing the
// data-availability confidence signal.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/database"
	"github.com/bitebase/intelligence-engine/pkg/models"
)

// Executor runs generated SQL against the warehouse. Queries arrive already
// validated (single read-only statement); the executor adds the row cap and
// shapes results for the chart suggester.
type Executor struct {
	db      *database.DB
	maxRows int
	logger  *zap.Logger
}

// NewExecutor creates a warehouse executor. maxRows caps result sets; rows
// beyond the cap are dropped and the result is flagged truncated.
func NewExecutor(db *database.DB, maxRows int, logger *zap.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &Executor{
		db:      db,
		maxRows: maxRows,
		logger:  logger.Named("warehouse-executor"),
	}
}

// Execute runs the query and returns shaped rows. The caller bounds the
// call with a deadline context; a deadline hit surfaces as the context
// error wrapped in the query failure.
func (e *Executor) Execute(ctx context.Context, sqlQuery string) (*models.QueryResult, error) {
	// Fetch one row past the cap so truncation is detectable.
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, e.maxRows+1)

	start := time.Now()
	rows, err := e.db.Query(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to execute warehouse query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]models.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = models.ColumnInfo{
			Name:  string(fd.Name),
			Class: columnClassFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(resultRows) == e.maxRows {
			truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any)
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouse rows: %w", err)
	}

	elapsed := time.Since(start)
	if truncated {
		e.logger.Debug("Result set truncated at row cap",
			zap.Int("max_rows", e.maxRows))
	}

	return &models.QueryResult{
		Columns:         columns,
		Rows:            resultRows,
		RowCount:        len(resultRows),
		Truncated:       truncated,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

// columnClassFromOID buckets PostgreSQL type OIDs into the three classes
// the chart suggester distinguishes. Unknown types read as categorical.
func columnClassFromOID(oid uint32) models.ColumnClass {
	switch oid {
	case 20, 21, 23, 700, 701, 790, 1700: // INT8, INT2, INT4, FLOAT4, FLOAT8, MONEY, NUMERIC
		return models.ColumnNumeric
	case 1082, 1083, 1114, 1184, 1186, 1266: // DATE, TIME, TIMESTAMP, TIMESTAMPTZ, INTERVAL, TIMETZ
		return models.ColumnTemporal
	default:
		return models.ColumnCategorical
	}
}
