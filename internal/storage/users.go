package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

const userColumns = `id, tenant_id, email, display_name, role, api_key_hash, created_at`

// CreateUser registers a user with an already-hashed API key.
func (db *DB) CreateUser(ctx context.Context, u model.User, apiKeyHash string) (model.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := db.pool.QueryRow(ctx,
		`INSERT INTO users (id, tenant_id, email, display_name, role, api_key_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		u.ID, u.TenantID, u.Email, u.Name, u.Role, apiKeyHash,
	)
	created, _, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("storage: insert user: %w", err)
	}
	return created, nil
}

// CountUsers returns the total number of registered users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count users: %w", err)
	}
	return n, nil
}

// GetUserByEmail returns a user and their API key hash for credential
// verification. Returns ErrNotFound for unknown emails.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.User, string, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	u, hash, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, "", ErrNotFound
	}
	if err != nil {
		return model.User{}, "", fmt.Errorf("storage: get user by email: %w", err)
	}
	return u, hash, nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	u, _, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (model.User, string, error) {
	var u model.User
	var hash string
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &hash, &u.CreatedAt)
	if err != nil {
		return model.User{}, "", err
	}
	return u, hash, nil
}
