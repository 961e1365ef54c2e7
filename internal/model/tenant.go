package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a law firm or corporate legal department. Every matter and
// user belongs to exactly one tenant, and all reads are scoped by it.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
