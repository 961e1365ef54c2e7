// Package specs drafts the full specification from the approved claim graph
// and supports attorney paragraph edits, each persisted as a new version.
package specs

import (
	"context"
	"encoding/json"
	"errors"
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

// ErrNoChange is returned when a paragraph edit submits identical text.
var ErrNoChange = errors.New("specs: paragraph text unchanged")

// ParagraphNotFoundError reports an edit against a paragraph id absent from
// the document.
type ParagraphNotFoundError struct {
	ParagraphID string
}

func (e *ParagraphNotFoundError) Error() string {
	return fmt.Sprintf("specs: paragraph %s not found", e.ParagraphID)
}

// Service generates, edits, and commits specification documents.
type Service struct {
	db      *storage.DB
	drafter agent.SpecDrafter
	logger  *slog.Logger

	stageDuration metric.Float64Histogram
}

// New creates a specs Service.
func New(db *storage.DB, drafter agent.SpecDrafter, logger *slog.Logger) *Service {
	meter := telemetry.Meter("tokkyo/specs")
	stageDur, _ := meter.Float64Histogram("tokkyo.agent.stage.duration",
		metric.WithDescription("Time spent in the spec drafting stage (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{db: db, drafter: drafter, logger: logger, stageDuration: stageDur}
}

// Generate drafts a specification from the approved claim graph, using the
// authoritative risk analysis when one exists (the risk stage can be
// skipped). Input versions may be pinned explicitly.
func (s *Service) Generate(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID, req model.GenerateSpecRequest) (model.ArtifactVersion, error) {
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
		return model.ArtifactVersion{}, fmt.Errorf("specs: decode claim graph payload: %w", err)
	}

	refs := model.CrossRefs{ClaimVersionID: &claimVersion.ID}
	var risk model.RiskAnalysis
	var riskVersion model.ArtifactVersion
	if req.RiskVersionID != nil {
		riskVersion, err = s.db.GetVersion(ctx, matterID, *req.RiskVersionID, model.KindRisk)
	} else {
		riskVersion, err = s.db.GetAuthoritative(ctx, matterID, model.KindRisk)
	}
	switch {
	case err == nil:
		if err := json.Unmarshal(riskVersion.Payload, &risk); err != nil {
			return model.ArtifactVersion{}, fmt.Errorf("specs: decode risk payload: %w", err)
		}
		refs.RiskVersionID = &riskVersion.ID
	default:
		var missing *storage.MissingApprovalError
		if !errors.As(err, &missing) {
			return model.ArtifactVersion{}, err
		}
		// Risk review was skipped; draft without findings.
	}

	var brief model.BriefStructure
	if briefVersion, err := s.db.GetAuthoritative(ctx, matterID, model.KindBrief); err == nil {
		if err := json.Unmarshal(briefVersion.Payload, &brief); err != nil {
			return model.ArtifactVersion{}, fmt.Errorf("specs: decode brief payload: %w", err)
		}
	}

	start := time.Now()
	doc, err := s.drafter.DraftSpec(ctx, brief, graph, risk)
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("specs: drafting failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("specs: marshal document: %w", err)
	}

	version, err := s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID:  matterID,
		Kind:      model.KindSpec,
		Payload:   payload,
		CrossRefs: refs,
		Cause:     storage.CauseGenerated,
		Event:     model.AuditSpecGenerated,
		ActorID:   actorID,
		Detail:    map[string]any{"paragraph_count": len(doc.Sections)},
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	s.logger.Info("specs: specification drafted",
		"matter_id", matterID, "version", version.VersionNumber, "paragraphs", len(doc.Sections))
	return version, nil
}

// Commit promotes one spec version to authoritative.
func (s *Service) Commit(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	return s.db.Commit(ctx, storage.CommitInput{
		MatterID:  matterID,
		VersionID: versionID,
		Kind:      model.KindSpec,
		Event:     lifecycle.CommitInitial,
		ActorID:   actorID,
	})
}

// EditParagraph clones the base spec version with one paragraph's text
// replaced and persists the clone as a new non-authoritative version.
func (s *Service) EditParagraph(ctx context.Context, tenantID, matterID, baseVersionID uuid.UUID, paragraphID string, actorID *uuid.UUID, req model.EditParagraphRequest) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	base, err := s.db.GetVersion(ctx, matterID, baseVersionID, model.KindSpec)
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	var doc model.SpecDocument
	if err := json.Unmarshal(base.Payload, &doc); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("specs: decode document payload: %w", err)
	}

	found := false
	for i := range doc.Sections {
		if doc.Sections[i].ID == paragraphID {
			if doc.Sections[i].Text == req.Text {
				return model.ArtifactVersion{}, ErrNoChange
			}
			doc.Sections[i].Text = req.Text
			found = true
			break
		}
	}
	if !found {
		return model.ArtifactVersion{}, &ParagraphNotFoundError{ParagraphID: paragraphID}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("specs: marshal document: %w", err)
	}

	return s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID:  matterID,
		Kind:      model.KindSpec,
		Payload:   payload,
		CrossRefs: model.CrossRefs{ClaimVersionID: base.ClaimVersionID, RiskVersionID: base.RiskVersionID},
		Cause:     storage.CauseEdited,
		Event:     model.AuditSpecEdited,
		ActorID:   actorID,
		Detail: map[string]any{
			"operation":       "edit_paragraph",
			"paragraph_id":    paragraphID,
			"base_version_id": base.ID,
		},
	})
}
