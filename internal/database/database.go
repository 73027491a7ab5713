package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fieldhire/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	mu             sync.RWMutex
	resourcesCache map[string]models.Resource
	logger         *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:             db,
		resourcesCache: make(map[string]models.Resource),
		logger:         logger,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            farmer_id TEXT NOT NULL,
            supplier_id TEXT NOT NULL DEFAULT '',
            resource_id TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL,
            purpose TEXT NOT NULL,
            quantity INTEGER NOT NULL DEFAULT 0,
            remaining_quantity INTEGER NOT NULL DEFAULT 0,
            allow_multiple INTEGER NOT NULL DEFAULT 0,
            preferred_model TEXT NOT NULL DEFAULT '',
            operator_required INTEGER NOT NULL DEFAULT 0,
            operate_self INTEGER NOT NULL DEFAULT 0,
            parent_id TEXT NOT NULL DEFAULT '',
            date DATETIME NOT NULL,
            start_minute INTEGER NOT NULL,
            duration_minutes INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'searching',
            final_price REAL NOT NULL DEFAULT 0,
            otp_code TEXT NOT NULL DEFAULT '',
            dispute_raised INTEGER NOT NULL DEFAULT 0,
            dispute_resolved INTEGER NOT NULL DEFAULT 0,
            damage_reported INTEGER NOT NULL DEFAULT 0,
            cancel_reason TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS allocations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id TEXT NOT NULL,
            supplier_id TEXT NOT NULL,
            resource_id TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS damage_reports (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id TEXT NOT NULL,
            description TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            resolved_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS resources (
            id TEXT PRIMARY KEY,
            supplier_id TEXT NOT NULL,
            name TEXT NOT NULL,
            category TEXT NOT NULL,
            model TEXT NOT NULL DEFAULT '',
            purpose_rates TEXT NOT NULL DEFAULT '{}',
            quantity_available INTEGER NOT NULL DEFAULT 1,
            available INTEGER NOT NULL DEFAULT 1,
            approval_status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS notify_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            target_id TEXT NOT NULL,
            category TEXT NOT NULL,
            message TEXT NOT NULL,
            booking_id TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            delivered_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_farmer_id ON bookings(farmer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_supplier_date ON bookings(supplier_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_category_purpose ON bookings(category, purpose)`,
		`CREATE INDEX IF NOT EXISTS idx_allocations_booking_id ON allocations(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_allocations_supplier_id ON allocations(supplier_id)`,
		`CREATE INDEX IF NOT EXISTS idx_damage_reports_booking_id ON damage_reports(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_category ON resources(category)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_supplier_id ON resources(supplier_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_queue_status ON notify_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
