package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
)

const adminEmail = "admin@tokkyo.local"

// SeedAdmin creates the initial admin user on a fresh database so there is
// a way to mint the first token. Skipped when any admin already exists.
func (h *Handlers) SeedAdmin(ctx context.Context, adminAPIKey string) error {
	if adminAPIKey == "" {
		total, err := h.db.CountUsers(ctx)
		if err != nil {
			return fmt.Errorf("seed admin: count users: %w", err)
		}
		if total == 0 {
			return errors.New("seed admin: TOKKYO_ADMIN_API_KEY is empty and no users exist; set it to bootstrap initial access")
		}
		h.logger.Info("no admin API key configured, skipping admin seed", "existing_users", total)
		return nil
	}

	// The seed admin lives in the zero-UUID tenant, which must exist first
	// to satisfy the users FK on fresh databases.
	if err := h.db.EnsureDefaultTenant(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if _, _, err := h.db.GetUserByEmail(ctx, adminEmail); err == nil {
		h.logger.Info("admin user already present, skipping admin seed")
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("seed admin: lookup: %w", err)
	}

	hash, err := auth.HashAPIKey(adminAPIKey)
	if err != nil {
		return fmt.Errorf("seed admin: hash key: %w", err)
	}

	_, err = h.db.CreateUser(ctx, model.User{
		TenantID: uuid.Nil,
		Email:    adminEmail,
		Name:     "System Admin",
		Role:     model.RoleAdmin,
	}, hash)
	if err != nil {
		return fmt.Errorf("seed admin: create user: %w", err)
	}

	h.logger.Info("seeded initial admin user", "email", adminEmail)
	return nil
}
