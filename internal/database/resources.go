package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"fieldhire/internal/models"
)

// SetResources replaces the in-memory catalog cache and upserts the rows so
// the catalog survives restarts. The catalog is read-only for the engine;
// approval and availability changes arrive through reseeding.
func (db *DB) SetResources(resources []*models.Resource) {
	cache := make(map[string]models.Resource, len(resources))
	for _, r := range resources {
		cache[r.ID] = *r
	}

	db.mu.Lock()
	db.resourcesCache = cache
	db.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range resources {
		if err := db.upsertResource(ctx, r); err != nil {
			db.logger.Error().Err(err).Str("resource_id", r.ID).Msg("resource upsert failed")
		}
	}
}

func (db *DB) upsertResource(ctx context.Context, r *models.Resource) error {
	rates, err := json.Marshal(r.PurposeRates)
	if err != nil {
		return fmt.Errorf("failed to encode purpose rates: %w", err)
	}

	query := `INSERT INTO resources (id, supplier_id, name, category, model, purpose_rates,
                quantity_available, available, approval_status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                supplier_id = excluded.supplier_id,
                name = excluded.name,
                category = excluded.category,
                model = excluded.model,
                purpose_rates = excluded.purpose_rates,
                quantity_available = excluded.quantity_available,
                available = excluded.available,
                approval_status = excluded.approval_status,
                updated_at = excluded.updated_at`
	now := time.Now()
	_, err = db.ExecContext(ctx, query,
		r.ID, r.SupplierID, r.Name, r.Category, r.Model, string(rates),
		r.QuantityAvailable, r.Available, r.ApprovalStatus, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert resource: %w", err)
	}
	return nil
}

func (db *DB) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	db.mu.RLock()
	cached, ok := db.resourcesCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	query := `SELECT id, supplier_id, name, category, model, purpose_rates,
                     quantity_available, available, approval_status, created_at, updated_at
              FROM resources WHERE id = ?`
	r := &models.Resource{}
	var rates string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.SupplierID, &r.Name, &r.Category, &r.Model, &rates,
		&r.QuantityAvailable, &r.Available, &r.ApprovalStatus, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	if err := json.Unmarshal([]byte(rates), &r.PurposeRates); err != nil {
		return nil, fmt.Errorf("failed to decode purpose rates: %w", err)
	}
	return r, nil
}

// ListApprovedResources returns dispatchable resources, optionally filtered
// by category. Empty category lists the whole catalog.
func (db *DB) ListApprovedResources(ctx context.Context, category string) ([]*models.Resource, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*models.Resource
	for id := range db.resourcesCache {
		r := db.resourcesCache[id]
		if !r.IsDispatchable() {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (db *DB) ListSupplierResources(ctx context.Context, supplierID string) ([]*models.Resource, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*models.Resource
	for id := range db.resourcesCache {
		r := db.resourcesCache[id]
		if r.SupplierID != supplierID {
			continue
		}
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
