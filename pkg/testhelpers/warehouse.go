package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bitebase/intelligence-engine/pkg/database"
)

// WarehouseDB holds the analytics-warehouse test database, seeded with the
// tables the intent templates query. Use this for testing the warehouse
// executor and schema catalog against a real database.
type WarehouseDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	sharedWarehouseDB     *WarehouseDB
	sharedWarehouseDBOnce sync.Once
	sharedWarehouseDBErr  error
)

// GetWarehouseDB returns a shared warehouse database for integration tests.
// It lives in the same container as the engine store, as a separate
// database with a deterministic seed dataset.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	engineDB := GetEngineDB(t)

	sharedWarehouseDBOnce.Do(func() {
		sharedWarehouseDB, sharedWarehouseDBErr = setupWarehouseDB(engineDB)
	})

	if sharedWarehouseDBErr != nil {
		t.Fatalf("Failed to setup warehouse database: %v", sharedWarehouseDBErr)
	}

	return sharedWarehouseDB
}

func setupWarehouseDB(engineDB *EngineDB) (*WarehouseDB, error) {
	ctx := context.Background()

	if _, err := engineDB.DB.Exec(ctx, "CREATE DATABASE warehouse_test"); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("failed to create warehouse database: %w", err)
		}
	}

	connStr := strings.Replace(engineDB.ConnStr, "/intelligence_test", "/warehouse_test", 1)

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse database: %w", err)
	}

	if _, err := db.Exec(ctx, warehouseSeedSQL); err != nil {
		return nil, fmt.Errorf("failed to seed warehouse schema: %w", err)
	}

	return &WarehouseDB{
		DB:      db,
		ConnStr: connStr,
	}, nil
}

// warehouseSeedSQL mirrors the analytics warehouse the intent templates are
// written against. The dataset is small and fixed so executor tests can
// assert on exact rows.
const warehouseSeedSQL = `
CREATE TABLE IF NOT EXISTS locations (
	id       SERIAL PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	district TEXT NOT NULL,
	city     TEXT NOT NULL DEFAULT 'Bangkok'
);

CREATE TABLE IF NOT EXISTS daily_sales (
	id               SERIAL PRIMARY KEY,
	location_id      INT NOT NULL REFERENCES locations(id),
	business_date    DATE NOT NULL,
	gross_revenue    NUMERIC(12,2) NOT NULL,
	net_revenue      NUMERIC(12,2) NOT NULL,
	order_count      INT NOT NULL,
	customer_count   INT NOT NULL,
	avg_ticket       NUMERIC(10,2) NOT NULL,
	dine_in_revenue  NUMERIC(12,2) NOT NULL,
	delivery_revenue NUMERIC(12,2) NOT NULL,
	UNIQUE (location_id, business_date)
);

CREATE TABLE IF NOT EXISTS menu_items (
	id       SERIAL PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_item_sales (
	id            SERIAL PRIMARY KEY,
	menu_item_id  INT NOT NULL REFERENCES menu_items(id),
	location_id   INT NOT NULL REFERENCES locations(id),
	business_date DATE NOT NULL,
	quantity_sold INT NOT NULL,
	item_revenue  NUMERIC(12,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_visits (
	id               SERIAL PRIMARY KEY,
	location_id      INT NOT NULL REFERENCES locations(id),
	business_date    DATE NOT NULL,
	new_customers    INT NOT NULL,
	repeat_customers INT NOT NULL
);

CREATE TABLE IF NOT EXISTS operational_stats (
	id                     SERIAL PRIMARY KEY,
	location_id            INT NOT NULL REFERENCES locations(id),
	business_date          DATE NOT NULL,
	avg_prep_time_minutes  NUMERIC(6,2) NOT NULL,
	table_turnover         NUMERIC(6,2) NOT NULL,
	labor_cost             NUMERIC(12,2) NOT NULL,
	staff_hours            NUMERIC(8,2) NOT NULL
);

INSERT INTO locations (name, district) VALUES
	('sukhumvit', 'Watthana'),
	('silom', 'Bang Rak'),
	('thonglor', 'Watthana')
ON CONFLICT (name) DO NOTHING;

INSERT INTO menu_items (name, category) VALUES
	('pad thai', 'mains'),
	('tom yum', 'soups'),
	('green curry', 'mains'),
	('mango sticky rice', 'desserts')
ON CONFLICT (name) DO NOTHING;

INSERT INTO daily_sales (location_id, business_date, gross_revenue, net_revenue, order_count, customer_count, avg_ticket, dine_in_revenue, delivery_revenue)
SELECT l.id, d.day,
       50000 + l.id * 1000, 45000 + l.id * 900,
       220 + l.id * 10, 300 + l.id * 20,
       210.50, 38000 + l.id * 700, 12000 + l.id * 300
FROM locations l,
     LATERAL (SELECT generate_series(CURRENT_DATE - INTERVAL '45 days', CURRENT_DATE, INTERVAL '1 day')::date AS day) d
ON CONFLICT (location_id, business_date) DO NOTHING;

INSERT INTO menu_item_sales (menu_item_id, location_id, business_date, quantity_sold, item_revenue)
SELECT m.id, l.id, CURRENT_DATE - INTERVAL '3 days', 40 + m.id * 5, (40 + m.id * 5) * 120
FROM menu_items m, locations l
WHERE NOT EXISTS (SELECT 1 FROM menu_item_sales);

INSERT INTO customer_visits (location_id, business_date, new_customers, repeat_customers)
SELECT l.id, CURRENT_DATE - INTERVAL '2 days', 80, 220 + l.id * 20
FROM locations l
WHERE NOT EXISTS (SELECT 1 FROM customer_visits);

INSERT INTO operational_stats (location_id, business_date, avg_prep_time_minutes, table_turnover, labor_cost, staff_hours)
SELECT l.id, CURRENT_DATE - INTERVAL '2 days', 12.5, 3.2, 11500 + l.id * 250, 64
FROM locations l
WHERE NOT EXISTS (SELECT 1 FROM operational_stats);
`
