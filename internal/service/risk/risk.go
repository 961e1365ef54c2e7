// Package risk runs the defensibility analysis stages: the initial review of
// an approved claim set and the re-evaluation against a drafted
// specification. The latest score is copied onto the matter for list views.
package risk

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

// Service runs and commits risk analyses.
type Service struct {
	db      *storage.DB
	analyst agent.RiskAnalyst
	logger  *slog.Logger

	stageDuration metric.Float64Histogram
}

// New creates a risk Service.
func New(db *storage.DB, analyst agent.RiskAnalyst, logger *slog.Logger) *Service {
	meter := telemetry.Meter("tokkyo/risk")
	stageDur, _ := meter.Float64Histogram("tokkyo.agent.stage.duration",
		metric.WithDescription("Time spent in the risk analysis stages (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{db: db, analyst: analyst, logger: logger, stageDuration: stageDur}
}

// Analyze runs the initial risk review against the approved claim graph and
// persists a new risk version cross-referencing the claim version analyzed.
// The defensibility score is copied onto the matter.
func (s *Service) Analyze(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID, req model.AnalyzeRiskRequest) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}

	claimVersion, graph, err := s.claimGraph(ctx, matterID, req.ClaimVersionID)
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	// The brief is context, not a gate: analysis proceeds without one.
	var brief model.BriefStructure
	if briefVersion, err := s.db.GetAuthoritative(ctx, matterID, model.KindBrief); err == nil {
		if err := json.Unmarshal(briefVersion.Payload, &brief); err != nil {
			return model.ArtifactVersion{}, fmt.Errorf("risk: decode brief payload: %w", err)
		}
	}

	start := time.Now()
	analysis, err := s.analyst.AnalyzeRisk(ctx, brief, graph)
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("risk: analysis failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}

	return s.persist(ctx, matterID, actorID, analysis, model.CrossRefs{
		ClaimVersionID: &claimVersion.ID,
	}, model.AuditRiskAnalyzed)
}

// ReEvaluate runs the post-spec risk review. It requires an authoritative
// spec and cross-references both the claim and spec versions assessed.
func (s *Service) ReEvaluate(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}

	claimVersion, graph, err := s.claimGraph(ctx, matterID, nil)
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	specVersion, err := s.db.GetAuthoritative(ctx, matterID, model.KindSpec)
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	var spec model.SpecDocument
	if err := json.Unmarshal(specVersion.Payload, &spec); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("risk: decode spec payload: %w", err)
	}

	start := time.Now()
	analysis, err := s.analyst.ReEvaluateRisk(ctx, graph, spec)
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("risk: re-evaluation failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}

	return s.persist(ctx, matterID, actorID, analysis, model.CrossRefs{
		ClaimVersionID: &claimVersion.ID,
		SpecVersionID:  &specVersion.ID,
	}, model.AuditRiskReEvaluated)
}

// Commit promotes an initial risk analysis to authoritative.
func (s *Service) Commit(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	return s.commit(ctx, tenantID, matterID, versionID, actorID, lifecycle.CommitInitial)
}

// CommitReEvaluation promotes a post-spec re-evaluation, transitioning the
// matter to RISK_RE_REVIEWED when it holds a generated spec.
func (s *Service) CommitReEvaluation(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	return s.commit(ctx, tenantID, matterID, versionID, actorID, lifecycle.CommitReEvaluation)
}

func (s *Service) commit(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID, event lifecycle.CommitEvent) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	return s.db.Commit(ctx, storage.CommitInput{
		MatterID:  matterID,
		VersionID: versionID,
		Kind:      model.KindRisk,
		Event:     event,
		ActorID:   actorID,
	})
}

func (s *Service) claimGraph(ctx context.Context, matterID uuid.UUID, pinned *uuid.UUID) (model.ArtifactVersion, model.ClaimGraph, error) {
	var version model.ArtifactVersion
	var err error
	if pinned != nil {
		version, err = s.db.GetVersion(ctx, matterID, *pinned, model.KindClaimGraph)
	} else {
		version, err = s.db.GetAuthoritative(ctx, matterID, model.KindClaimGraph)
	}
	if err != nil {
		return model.ArtifactVersion{}, model.ClaimGraph{}, err
	}
	var graph model.ClaimGraph
	if err := json.Unmarshal(version.Payload, &graph); err != nil {
		return model.ArtifactVersion{}, model.ClaimGraph{}, fmt.Errorf("risk: decode claim graph payload: %w", err)
	}
	return version, graph, nil
}

func (s *Service) persist(ctx context.Context, matterID uuid.UUID, actorID *uuid.UUID, analysis model.RiskAnalysis, refs model.CrossRefs, event model.AuditEventType) (model.ArtifactVersion, error) {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("risk: marshal analysis: %w", err)
	}

	version, err := s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID:  matterID,
		Kind:      model.KindRisk,
		Payload:   payload,
		CrossRefs: refs,
		Cause:     storage.CauseGenerated,
		Event:     event,
		ActorID:   actorID,
		Detail:    map[string]any{"defensibility_score": analysis.DefensibilityScore},
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	if err := s.db.SetDefensibilityScore(ctx, matterID, analysis.DefensibilityScore); err != nil {
		s.logger.Warn("risk: score propagation failed", "matter_id", matterID, "error", err)
	}

	s.logger.Info("risk: analysis persisted",
		"matter_id", matterID, "version", version.VersionNumber,
		"score", analysis.DefensibilityScore, "findings", len(analysis.Findings))
	return version, nil
}
