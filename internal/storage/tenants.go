package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// CreateTenant inserts a tenant.
func (db *DB) CreateTenant(ctx context.Context, name string) (model.Tenant, error) {
	var t model.Tenant
	err := db.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2)
		 RETURNING id, name, created_at`,
		uuid.New(), name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("storage: insert tenant: %w", err)
	}
	return t, nil
}

// EnsureDefaultTenant creates the zero-UUID tenant used by the seeded
// admin account on fresh databases. Idempotent.
func (db *DB) EnsureDefaultTenant(ctx context.Context) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, 'Default')
		 ON CONFLICT (id) DO NOTHING`,
		uuid.Nil,
	)
	if err != nil {
		return fmt.Errorf("storage: ensure default tenant: %w", err)
	}
	return nil
}

// GetTenant returns a tenant by id.
func (db *DB) GetTenant(ctx context.Context, id uuid.UUID) (model.Tenant, error) {
	var t model.Tenant
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Tenant{}, ErrNotFound
	}
	if err != nil {
		return model.Tenant{}, fmt.Errorf("storage: get tenant: %w", err)
	}
	return t, nil
}
