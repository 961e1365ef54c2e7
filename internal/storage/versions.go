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

// The five artifact-version tables share one shape, so a single generic
// store serves all kinds; kindTables is the only per-kind variance at the
// SQL level. Table names come exclusively from this map, never from caller
// input.
var kindTables = map[model.ArtifactKind]string{
	model.KindBrief:      "brief_versions",
	model.KindClaimGraph: "claim_graph_versions",
	model.KindRisk:       "risk_analysis_versions",
	model.KindSpec:       "spec_versions",
	model.KindQAReport:   "qa_report_versions",
}

const versionColumns = `id, matter_id, version_number, description, is_authoritative,
	payload, claim_version_id, risk_version_id, spec_version_id, source_material_hash, created_at`

// CreateCause distinguishes the two ways a new version comes to exist.
type CreateCause int

const (
	// CauseGenerated marks versions produced by an agent pipeline.
	CauseGenerated CreateCause = iota
	// CauseEdited marks versions cloned from an earlier one by a
	// structural edit.
	CauseEdited
)

// CreateVersionInput carries everything one version-creation transaction
// needs: the payload, its provenance, and the audit event to record.
type CreateVersionInput struct {
	MatterID    uuid.UUID
	Kind        model.ArtifactKind
	Payload     []byte
	Description *string
	CrossRefs   model.CrossRefs
	SourceHash  *string
	Cause       CreateCause
	Event       model.AuditEventType
	ActorID     *uuid.UUID
	Detail      map[string]any
}

// CreateVersion appends a new non-authoritative version in one transaction:
// next version number under the per-(matter, kind) advisory lock, workstream
// head pointer moved to the new version, conditional matter state advance
// for the kinds whose generation implies one, and an audit event. Returns
// ErrNotFound if the matter does not exist.
func (db *DB) CreateVersion(ctx context.Context, in CreateVersionInput) (model.ArtifactVersion, error) {
	table := kindTables[in.Kind]
	if table == "" {
		return model.ArtifactVersion{}, fmt.Errorf("storage: unknown artifact kind %q", in.Kind)
	}

	var created model.ArtifactVersion
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockMatterKind(ctx, tx, in.MatterID, string(in.Kind)); err != nil {
			return err
		}

		matter, err := getMatterForUpdate(ctx, tx, in.MatterID)
		if err != nil {
			return err
		}

		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version_number), 0) + 1 FROM `+table+` WHERE matter_id = $1`,
			in.MatterID,
		).Scan(&next); err != nil {
			return fmt.Errorf("storage: next version number: %w", err)
		}

		id := uuid.New()
		row := tx.QueryRow(ctx,
			`INSERT INTO `+table+` (id, matter_id, version_number, description, is_authoritative,
			     payload, claim_version_id, risk_version_id, spec_version_id, source_material_hash)
			 VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8, $9)
			 RETURNING `+versionColumns,
			id, in.MatterID, next, in.Description, in.Payload,
			in.CrossRefs.ClaimVersionID, in.CrossRefs.RiskVersionID, in.CrossRefs.SpecVersionID,
			in.SourceHash,
		)
		created, err = scanVersion(row, in.Kind)
		if err != nil {
			return fmt.Errorf("storage: insert %s version: %w", in.Kind, err)
		}

		if err := setActiveVersion(ctx, tx, in.MatterID, in.Kind, id); err != nil {
			return err
		}

		next2 := matter.Status
		switch in.Cause {
		case CauseGenerated:
			next2 = lifecycle.ApplyGeneration(matter.Status, in.Kind)
		case CauseEdited:
			next2 = lifecycle.ApplyEdit(matter.Status, in.Kind)
		}
		if next2 != matter.Status {
			if err := setMatterStatus(ctx, tx, in.MatterID, next2); err != nil {
				return err
			}
		}

		return insertAuditEvent(ctx, tx, model.AuditEvent{
			MatterID:          in.MatterID,
			EventType:         in.Event,
			ActorID:           in.ActorID,
			ArtifactVersionID: &id,
			ArtifactKind:      &in.Kind,
			Detail:            in.Detail,
		})
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	return created, nil
}

// CommitInput identifies the version to promote and who is promoting it.
// Precondition, when set, is evaluated against the fetched version inside
// the transaction before any write; returning an error aborts the commit
// (the QA can_export gate).
type CommitInput struct {
	MatterID     uuid.UUID
	VersionID    uuid.UUID
	Kind         model.ArtifactKind
	Event        lifecycle.CommitEvent
	ActorID      *uuid.UUID
	Precondition func(model.ArtifactVersion) error
}

// Commit promotes one version to authoritative in a single atomic
// transaction: all sibling versions of the kind are demoted first, so at
// most one version per (matter, kind) is ever live; the matter advances
// through the declarative commit-transition table; the workstream head
// pointer moves to the committed version; one audit event is appended.
// A failed commit leaves everything exactly as it was.
func (db *DB) Commit(ctx context.Context, in CommitInput) (model.ArtifactVersion, error) {
	table := kindTables[in.Kind]
	if table == "" {
		return model.ArtifactVersion{}, fmt.Errorf("storage: unknown artifact kind %q", in.Kind)
	}
	rule, ok := lifecycle.CommitRuleFor(in.Kind, in.Event)
	if !ok {
		return model.ArtifactVersion{}, fmt.Errorf("storage: no commit rule for %s/%s", in.Kind, in.Event)
	}

	var committed model.ArtifactVersion
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockMatterKind(ctx, tx, in.MatterID, string(in.Kind)); err != nil {
			return err
		}

		row := tx.QueryRow(ctx,
			`SELECT `+versionColumns+` FROM `+table+` WHERE id = $1 AND matter_id = $2`,
			in.VersionID, in.MatterID,
		)
		version, err := scanVersion(row, in.Kind)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: get %s version: %w", in.Kind, err)
		}

		if in.Precondition != nil {
			if err := in.Precondition(version); err != nil {
				return err
			}
		}

		matter, err := getMatterForUpdate(ctx, tx, in.MatterID)
		if err != nil {
			return err
		}
		nextState, err := lifecycle.ApplyCommit(matter.Status, in.Kind, in.Event)
		if err != nil {
			return err
		}

		// Demote-then-promote keeps the at-most-one-authoritative
		// invariant even if earlier commits left a sibling flagged.
		if _, err := tx.Exec(ctx,
			`UPDATE `+table+` SET is_authoritative = false
			 WHERE matter_id = $1 AND is_authoritative AND id <> $2`,
			in.MatterID, in.VersionID,
		); err != nil {
			return fmt.Errorf("storage: demote %s siblings: %w", in.Kind, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE `+table+` SET is_authoritative = true WHERE id = $1`,
			in.VersionID,
		); err != nil {
			return fmt.Errorf("storage: promote %s version: %w", in.Kind, err)
		}
		version.IsAuthoritative = true

		if nextState != matter.Status {
			if err := setMatterStatus(ctx, tx, in.MatterID, nextState); err != nil {
				return err
			}
		}

		if err := setActiveVersion(ctx, tx, in.MatterID, in.Kind, in.VersionID); err != nil {
			return err
		}

		if err := insertAuditEvent(ctx, tx, model.AuditEvent{
			MatterID:          in.MatterID,
			EventType:         rule.Event,
			ActorID:           in.ActorID,
			ArtifactVersionID: &in.VersionID,
			ArtifactKind:      &in.Kind,
		}); err != nil {
			return err
		}

		committed = version
		return nil
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	return committed, nil
}

// GetAuthoritative returns the latest version of the kind with the
// authoritative flag set, or a MissingApprovalError when none exists.
func (db *DB) GetAuthoritative(ctx context.Context, matterID uuid.UUID, kind model.ArtifactKind) (model.ArtifactVersion, error) {
	table := kindTables[kind]
	if table == "" {
		return model.ArtifactVersion{}, fmt.Errorf("storage: unknown artifact kind %q", kind)
	}

	row := db.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM `+table+`
		 WHERE matter_id = $1 AND is_authoritative
		 ORDER BY version_number DESC LIMIT 1`,
		matterID,
	)
	v, err := scanVersion(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ArtifactVersion{}, &MissingApprovalError{Kind: kind}
	}
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("storage: get authoritative %s: %w", kind, err)
	}
	return v, nil
}

// GetVersion returns one version by id, regardless of approval status.
func (db *DB) GetVersion(ctx context.Context, matterID, versionID uuid.UUID, kind model.ArtifactKind) (model.ArtifactVersion, error) {
	table := kindTables[kind]
	if table == "" {
		return model.ArtifactVersion{}, fmt.Errorf("storage: unknown artifact kind %q", kind)
	}

	row := db.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM `+table+` WHERE id = $1 AND matter_id = $2`,
		versionID, matterID,
	)
	v, err := scanVersion(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ArtifactVersion{}, ErrNotFound
	}
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("storage: get %s version: %w", kind, err)
	}
	return v, nil
}

// ListVersions returns all versions of the kind for a matter, newest first.
func (db *DB) ListVersions(ctx context.Context, matterID uuid.UUID, kind model.ArtifactKind) ([]model.ArtifactVersion, error) {
	table := kindTables[kind]
	if table == "" {
		return nil, fmt.Errorf("storage: unknown artifact kind %q", kind)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM `+table+`
		 WHERE matter_id = $1 ORDER BY version_number DESC`,
		matterID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s versions: %w", kind, err)
	}
	defer rows.Close()

	var versions []model.ArtifactVersion
	for rows.Next() {
		v, err := scanVersion(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("storage: scan %s version: %w", kind, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner, kind model.ArtifactKind) (model.ArtifactVersion, error) {
	var v model.ArtifactVersion
	v.Kind = kind
	err := row.Scan(
		&v.ID, &v.MatterID, &v.VersionNumber, &v.Description, &v.IsAuthoritative,
		&v.Payload, &v.ClaimVersionID, &v.RiskVersionID, &v.SpecVersionID,
		&v.SourceHash, &v.CreatedAt,
	)
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	return v, nil
}
