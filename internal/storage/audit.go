package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokkyo-ai/tokkyo/internal/integrity"
	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// insertAuditEvent appends one event to the audit log inside the caller's
// transaction, so the event is recorded iff the mutation it describes
// commits. The log is append-only; nothing in the codebase updates or
// deletes audit rows. Each row carries a content hash computed over its
// canonical fields at append time, making later tampering detectable.
func insertAuditEvent(ctx context.Context, tx pgx.Tx, ev model.AuditEvent) error {
	var detail []byte
	if ev.Detail != nil {
		var err error
		detail, err = json.Marshal(ev.Detail)
		if err != nil {
			return fmt.Errorf("storage: marshal audit detail: %w", err)
		}
	}

	id := uuid.New()
	// Truncated to Postgres timestamptz precision so the stored row hashes
	// back to the same value.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := integrity.ComputeEventHash(id, ev.MatterID, string(ev.EventType),
		ev.ActorID, ev.ArtifactVersionID, kindString(ev.ArtifactKind), detail, createdAt)

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_events (id, matter_id, event_type, actor_id,
		     artifact_version_id, artifact_kind, detail, content_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, ev.MatterID, ev.EventType, ev.ActorID,
		ev.ArtifactVersionID, ev.ArtifactKind, detail, hash, createdAt,
	); err != nil {
		return fmt.Errorf("storage: insert audit event: %w", err)
	}
	return nil
}

func kindString(k *model.ArtifactKind) string {
	if k == nil {
		return ""
	}
	return string(*k)
}

// RecordAuditEvent appends a standalone audit event outside any artifact
// transaction, for events with no accompanying write (export generation).
func (db *DB) RecordAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		return insertAuditEvent(ctx, tx, ev)
	})
}

// ListAuditEvents returns a matter's audit trail, newest first.
func (db *DB) ListAuditEvents(ctx context.Context, matterID uuid.UUID, limit, offset int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, matter_id, event_type, actor_id, artifact_version_id,
		        artifact_kind, detail, content_hash, created_at
		 FROM audit_events
		 WHERE matter_id = $1 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		matterID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit events: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

// VerifyAuditTrail recomputes every event hash for a matter, in trail
// order, and returns the verdict plus a Merkle root binding the full trail.
// Detail round-trips through JSONB; Go's canonical map encoding (sorted
// keys) keeps the recomputed bytes stable.
func (db *DB) VerifyAuditTrail(ctx context.Context, matterID uuid.UUID) (model.AuditVerification, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, matter_id, event_type, actor_id, artifact_version_id,
		        artifact_kind, detail, content_hash, created_at
		 FROM audit_events
		 WHERE matter_id = $1 ORDER BY created_at ASC, id ASC`,
		matterID,
	)
	if err != nil {
		return model.AuditVerification{}, fmt.Errorf("storage: load audit trail: %w", err)
	}
	defer rows.Close()

	events, err := scanAuditEvents(rows)
	if err != nil {
		return model.AuditVerification{}, err
	}

	result := model.AuditVerification{Verified: true, EventCount: len(events)}
	leaves := make([]string, 0, len(events))
	for _, ev := range events {
		var detail []byte
		if ev.Detail != nil {
			detail, err = json.Marshal(ev.Detail)
			if err != nil {
				return model.AuditVerification{}, fmt.Errorf("storage: remarshal audit detail: %w", err)
			}
		}
		if !integrity.VerifyEventHash(ev.ContentHash, ev.ID, ev.MatterID, string(ev.EventType),
			ev.ActorID, ev.ArtifactVersionID, kindString(ev.ArtifactKind), detail, ev.CreatedAt) {
			result.Verified = false
			result.MismatchedEventIDs = append(result.MismatchedEventIDs, ev.ID)
		}
		leaves = append(leaves, ev.ContentHash)
	}
	result.MerkleRoot = integrity.BuildMerkleRoot(leaves)
	return result, nil
}

func scanAuditEvents(rows pgx.Rows) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var detail []byte
		if err := rows.Scan(
			&ev.ID, &ev.MatterID, &ev.EventType, &ev.ActorID,
			&ev.ArtifactVersionID, &ev.ArtifactKind, &detail, &ev.ContentHash, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan audit event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("storage: decode audit detail: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
