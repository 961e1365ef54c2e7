// Package qa validates a drafted specification against its claim graph and
// gates export on an error-free authoritative report.
package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
	"github.com/tokkyo-ai/tokkyo/internal/telemetry"
)

// BlockedByErrorsError reports a commit attempt against a report whose
// validation found errors. Such a report can never become authoritative.
type BlockedByErrorsError struct {
	TotalErrors int
}

func (e *BlockedByErrorsError) Error() string {
	return fmt.Sprintf("qa: report has %d validation errors and cannot be committed", e.TotalErrors)
}

// Service runs and commits QA validations.
type Service struct {
	db        *storage.DB
	validator agent.QAValidator
	logger    *slog.Logger

	stageDuration metric.Float64Histogram
}

// New creates a qa Service.
func New(db *storage.DB, validator agent.QAValidator, logger *slog.Logger) *Service {
	meter := telemetry.Meter("tokkyo/qa")
	stageDur, _ := meter.Float64Histogram("tokkyo.agent.stage.duration",
		metric.WithDescription("Time spent in the QA validation stage (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{db: db, validator: validator, logger: logger, stageDuration: stageDur}
}

// Validate checks the drafted specification against the claim graph and
// persists the report as a new non-authoritative QA version. Input versions
// may be pinned; otherwise the authoritative ones are required.
func (s *Service) Validate(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID, req model.ValidateQARequest) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}

	var claimVersion model.ArtifactVersion
	var err error
	if req.ClaimVersionID != nil {
		claimVersion, err = s.db.GetVersion(ctx, matterID, *req.ClaimVersionID, model.KindClaimGraph)
	} else {
		claimVersion, err = s.db.GetAuthoritative(ctx, matterID, model.KindClaimGraph)
	}
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	var graph model.ClaimGraph
	if err := json.Unmarshal(claimVersion.Payload, &graph); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("qa: decode claim graph payload: %w", err)
	}

	var specVersion model.ArtifactVersion
	if req.SpecVersionID != nil {
		specVersion, err = s.db.GetVersion(ctx, matterID, *req.SpecVersionID, model.KindSpec)
	} else {
		specVersion, err = s.db.GetAuthoritative(ctx, matterID, model.KindSpec)
	}
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	var doc model.SpecDocument
	if err := json.Unmarshal(specVersion.Payload, &doc); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("qa: decode document payload: %w", err)
	}

	start := time.Now()
	report, err := s.validator.ValidateSpec(ctx, doc, graph)
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("qa: validation failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}
	// can_export is derived, never trusted from the payload.
	report.CanExport = report.TotalErrors == 0

	payload, err := json.Marshal(report)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("qa: marshal report: %w", err)
	}

	version, err := s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID:  matterID,
		Kind:      model.KindQAReport,
		Payload:   payload,
		CrossRefs: model.CrossRefs{ClaimVersionID: &claimVersion.ID, SpecVersionID: &specVersion.ID},
		Cause:     storage.CauseGenerated,
		Event:     model.AuditQAValidated,
		ActorID:   actorID,
		Detail: map[string]any{
			"total_errors":   report.TotalErrors,
			"total_warnings": report.TotalWarnings,
			"can_export":     report.CanExport,
		},
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	s.logger.Info("qa: validation persisted",
		"matter_id", matterID, "version", version.VersionNumber,
		"errors", report.TotalErrors, "warnings", report.TotalWarnings)
	return version, nil
}

// Commit promotes a QA report to authoritative. The export gate runs inside
// the commit transaction: a report with errors is rejected with
// BlockedByErrorsError before anything is written.
func (s *Service) Commit(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	return s.db.Commit(ctx, storage.CommitInput{
		MatterID:  matterID,
		VersionID: versionID,
		Kind:      model.KindQAReport,
		Event:     lifecycle.CommitInitial,
		ActorID:   actorID,
		Precondition: func(v model.ArtifactVersion) error {
			var report model.QAReport
			if err := json.Unmarshal(v.Payload, &report); err != nil {
				return fmt.Errorf("qa: decode report payload: %w", err)
			}
			if !report.CanExport || report.TotalErrors > 0 {
				return &BlockedByErrorsError{TotalErrors: report.TotalErrors}
			}
			return nil
		},
	})
}
