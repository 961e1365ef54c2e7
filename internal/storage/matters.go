package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
)

const matterColumns = `id, tenant_id, attorney_id, title, reference_number, description,
	inventors, assignee, tech_domain, matter_type, jurisdictions, status,
	defensibility_score, created_at, updated_at`

// CreateMatter inserts a new matter in the CREATED state along with its
// drafting workstream.
func (db *DB) CreateMatter(ctx context.Context, m model.Matter) (model.Matter, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Status = model.StateCreated

	var created model.Matter
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO matters (id, tenant_id, attorney_id, title, reference_number,
			     description, inventors, assignee, tech_domain, matter_type, jurisdictions, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING `+matterColumns,
			m.ID, m.TenantID, m.AttorneyID, m.Title, m.ReferenceNumber,
			m.Description, m.Inventors, m.Assignee, m.TechDomain, m.MatterType,
			m.Jurisdictions, m.Status,
		)
		var err error
		created, err = scanMatter(row)
		if err != nil {
			return fmt.Errorf("storage: insert matter: %w", err)
		}
		return ensureWorkstream(ctx, tx, created.ID, model.WorkstreamDrafting)
	})
	if err != nil {
		return model.Matter{}, err
	}
	return created, nil
}

// GetMatter returns a matter by id, scoped to a tenant. Returns ErrNotFound
// for missing matters and for matters belonging to another tenant, so the
// caller cannot distinguish the two.
func (db *DB) GetMatter(ctx context.Context, tenantID, matterID uuid.UUID) (model.Matter, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+matterColumns+` FROM matters WHERE id = $1 AND tenant_id = $2`,
		matterID, tenantID,
	)
	m, err := scanMatter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Matter{}, ErrNotFound
	}
	if err != nil {
		return model.Matter{}, fmt.Errorf("storage: get matter: %w", err)
	}
	return m, nil
}

// ListMatters returns a tenant's matters, most recently updated first.
func (db *DB) ListMatters(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.Matter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+matterColumns+` FROM matters
		 WHERE tenant_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list matters: %w", err)
	}
	defer rows.Close()

	var matters []model.Matter
	for rows.Next() {
		m, err := scanMatter(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan matter: %w", err)
		}
		matters = append(matters, m)
	}
	return matters, rows.Err()
}

// UpdateMatterStatus performs a manual lifecycle transition. The legal-edge
// table is consulted under the row lock, so concurrent transitions serialize
// and each one is validated against the state it actually observes.
func (db *DB) UpdateMatterStatus(ctx context.Context, tenantID, matterID uuid.UUID, to model.MatterState) (model.Matter, error) {
	var updated model.Matter
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		m, err := getMatterForUpdate(ctx, tx, matterID)
		if err != nil {
			return err
		}
		if m.TenantID != tenantID {
			return ErrNotFound
		}
		if err := lifecycle.CheckTransition(m.Status, to); err != nil {
			return err
		}
		if err := setMatterStatus(ctx, tx, matterID, to); err != nil {
			return err
		}
		m.Status = to
		updated = m
		return nil
	})
	if err != nil {
		return model.Matter{}, err
	}
	return updated, nil
}

// LockMatter transitions a matter into the terminal LOCKED_FOR_EXPORT state
// and appends the MATTER_LOCKED audit event in the same transaction, so the
// lock is durable iff the event is.
func (db *DB) LockMatter(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID) (model.Matter, error) {
	var updated model.Matter
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		m, err := getMatterForUpdate(ctx, tx, matterID)
		if err != nil {
			return err
		}
		if m.TenantID != tenantID {
			return ErrNotFound
		}
		if err := lifecycle.CheckTransition(m.Status, model.StateLockedForExport); err != nil {
			return err
		}
		if err := setMatterStatus(ctx, tx, matterID, model.StateLockedForExport); err != nil {
			return err
		}
		if err := insertAuditEvent(ctx, tx, model.AuditEvent{
			MatterID:  matterID,
			EventType: model.AuditMatterLocked,
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		m.Status = model.StateLockedForExport
		updated = m
		return nil
	})
	if err != nil {
		return model.Matter{}, err
	}
	return updated, nil
}

// SetDefensibilityScore copies the latest risk score onto the matter row so
// list views can show it without joining version tables.
func (db *DB) SetDefensibilityScore(ctx context.Context, matterID uuid.UUID, score int) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE matters SET defensibility_score = $2, updated_at = now() WHERE id = $1`,
		matterID, score,
	)
	if err != nil {
		return fmt.Errorf("storage: set defensibility score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func getMatterForUpdate(ctx context.Context, tx pgx.Tx, matterID uuid.UUID) (model.Matter, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+matterColumns+` FROM matters WHERE id = $1 FOR UPDATE`,
		matterID,
	)
	m, err := scanMatter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Matter{}, ErrNotFound
	}
	if err != nil {
		return model.Matter{}, fmt.Errorf("storage: lock matter: %w", err)
	}
	return m, nil
}

func setMatterStatus(ctx context.Context, tx pgx.Tx, matterID uuid.UUID, to model.MatterState) error {
	if _, err := tx.Exec(ctx,
		`UPDATE matters SET status = $2, updated_at = now() WHERE id = $1`,
		matterID, to,
	); err != nil {
		return fmt.Errorf("storage: update matter status: %w", err)
	}
	return nil
}

func scanMatter(row rowScanner) (model.Matter, error) {
	var m model.Matter
	err := row.Scan(
		&m.ID, &m.TenantID, &m.AttorneyID, &m.Title, &m.ReferenceNumber, &m.Description,
		&m.Inventors, &m.Assignee, &m.TechDomain, &m.MatterType, &m.Jurisdictions, &m.Status,
		&m.DefensibilityScore, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return model.Matter{}, err
	}
	return m, nil
}
