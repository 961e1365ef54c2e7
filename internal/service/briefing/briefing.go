// Package briefing ingests invention disclosures: structuring them through
// the brief analysis agent and promoting the attorney-approved structure.
//
// Both the analyze and approve paths delegate persistence to the shared
// version store; nothing is written when the agent fails.
package briefing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

// Service structures and approves invention briefs.
type Service struct {
	db       *storage.DB
	analyzer agent.BriefAnalyzer
	logger   *slog.Logger

	stageDuration metric.Float64Histogram
}

// New creates a briefing Service.
func New(db *storage.DB, analyzer agent.BriefAnalyzer, logger *slog.Logger) *Service {
	meter := telemetry.Meter("tokkyo/briefing")
	stageDur, _ := meter.Float64Histogram("tokkyo.agent.stage.duration",
		metric.WithDescription("Time spent in the brief analysis stage (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{db: db, analyzer: analyzer, logger: logger, stageDuration: stageDur}
}

// Analyze runs the brief analysis agent over the uploaded disclosure text and
// persists the structured result as a new non-authoritative brief version.
// The SHA-256 of the source text is stored for change detection.
func (s *Service) Analyze(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID, req model.AnalyzeBriefRequest) (model.ArtifactVersion, error) {
	matter, err := s.db.GetMatter(ctx, tenantID, matterID)
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	techDomain := ""
	if matter.TechDomain != nil {
		techDomain = *matter.TechDomain
	}

	start := time.Now()
	brief, err := s.analyzer.AnalyzeBrief(ctx, agent.BriefInput{
		Text:       req.SourceText,
		TechDomain: techDomain,
	})
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("briefing: analysis failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}

	payload, err := json.Marshal(brief)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("briefing: marshal brief: %w", err)
	}
	sum := sha256.Sum256([]byte(req.SourceText))
	hash := hex.EncodeToString(sum[:])

	version, err := s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID:   matterID,
		Kind:       model.KindBrief,
		Payload:    payload,
		SourceHash: &hash,
		Cause:      storage.CauseGenerated,
		Event:      model.AuditBriefUploaded,
		ActorID:    actorID,
		Detail:     map[string]any{"source_material_hash": hash},
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	s.logger.Info("briefing: brief analyzed",
		"matter_id", matterID, "version", version.VersionNumber)
	return version, nil
}

// Approve promotes one brief version to authoritative.
func (s *Service) Approve(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	return s.db.Commit(ctx, storage.CommitInput{
		MatterID:  matterID,
		VersionID: versionID,
		Kind:      model.KindBrief,
		Event:     lifecycle.CommitInitial,
		ActorID:   actorID,
	})
}
