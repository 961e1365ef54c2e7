package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

const workstreamColumns = `id, matter_id, name, workstream_type, status,
	active_brief_version_id, active_claim_version_id, active_risk_version_id,
	active_spec_version_id, active_qa_version_id, created_at, updated_at`

var kindPointerColumns = map[model.ArtifactKind]string{
	model.KindBrief:      "active_brief_version_id",
	model.KindClaimGraph: "active_claim_version_id",
	model.KindRisk:       "active_risk_version_id",
	model.KindSpec:       "active_spec_version_id",
	model.KindQAReport:   "active_qa_version_id",
}

// GetWorkstream returns a matter's workstream of the given type.
func (db *DB) GetWorkstream(ctx context.Context, matterID uuid.UUID, wsType model.WorkstreamType) (model.Workstream, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+workstreamColumns+` FROM workstreams
		 WHERE matter_id = $1 AND workstream_type = $2`,
		matterID, wsType,
	)
	ws, err := scanWorkstream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Workstream{}, ErrNotFound
	}
	if err != nil {
		return model.Workstream{}, fmt.Errorf("storage: get workstream: %w", err)
	}
	return ws, nil
}

// ensureWorkstream creates the drafting workstream row if it does not exist.
// Idempotent; matters created before the workstream table gained a row are
// repaired lazily on their first artifact write.
func ensureWorkstream(ctx context.Context, tx pgx.Tx, matterID uuid.UUID, wsType model.WorkstreamType) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO workstreams (id, matter_id, name, workstream_type, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (matter_id, workstream_type) DO NOTHING`,
		uuid.New(), matterID, "Drafting", wsType, model.WorkstreamInProgress,
	); err != nil {
		return fmt.Errorf("storage: ensure workstream: %w", err)
	}
	return nil
}

// setActiveVersion moves the workstream head pointer for the kind to the
// given version. Column names come from kindPointerColumns only.
func setActiveVersion(ctx context.Context, tx pgx.Tx, matterID uuid.UUID, kind model.ArtifactKind, versionID uuid.UUID) error {
	col := kindPointerColumns[kind]
	if col == "" {
		return fmt.Errorf("storage: unknown artifact kind %q", kind)
	}
	if err := ensureWorkstream(ctx, tx, matterID, model.WorkstreamDrafting); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE workstreams SET `+col+` = $3, updated_at = now()
		 WHERE matter_id = $1 AND workstream_type = $2`,
		matterID, model.WorkstreamDrafting, versionID,
	); err != nil {
		return fmt.Errorf("storage: set %s head: %w", kind, err)
	}
	return nil
}

func scanWorkstream(row rowScanner) (model.Workstream, error) {
	var ws model.Workstream
	err := row.Scan(
		&ws.ID, &ws.MatterID, &ws.Name, &ws.Type, &ws.Status,
		&ws.ActiveBriefVersionID, &ws.ActiveClaimVersionID, &ws.ActiveRiskVersionID,
		&ws.ActiveSpecVersionID, &ws.ActiveQAVersionID, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		return model.Workstream{}, err
	}
	return ws, nil
}
