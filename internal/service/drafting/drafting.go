// Package drafting owns the claim set: agent-proposed claim graphs, attorney
// approval, and the structural editor that clones a new version per edit.
package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/claimgraph"
	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
	"github.com/tokkyo-ai/tokkyo/internal/telemetry"
)

// Service generates, approves, and edits claim graphs.
type Service struct {
	db        *storage.DB
	architect agent.ClaimsArchitect
	logger    *slog.Logger

	stageDuration metric.Float64Histogram
}

// New creates a drafting Service.
func New(db *storage.DB, architect agent.ClaimsArchitect, logger *slog.Logger) *Service {
	meter := telemetry.Meter("tokkyo/drafting")
	stageDur, _ := meter.Float64Histogram("tokkyo.agent.stage.duration",
		metric.WithDescription("Time spent in the claims proposal stage (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{db: db, architect: architect, logger: logger, stageDuration: stageDur}
}

// Generate proposes a claim graph from the approved brief. The brief version
// may be pinned; otherwise the authoritative one is required, and its absence
// surfaces as a MissingApprovalError. The proposed graph is rejected before
// persistence if it fails the acyclicity check.
func (s *Service) Generate(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID, req model.GenerateClaimsRequest) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}

	var briefVersion model.ArtifactVersion
	var err error
	if req.BriefVersionID != nil {
		briefVersion, err = s.db.GetVersion(ctx, matterID, *req.BriefVersionID, model.KindBrief)
	} else {
		briefVersion, err = s.db.GetAuthoritative(ctx, matterID, model.KindBrief)
	}
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	var brief model.BriefStructure
	if err := json.Unmarshal(briefVersion.Payload, &brief); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("drafting: decode brief payload: %w", err)
	}

	start := time.Now()
	graph, err := s.architect.ProposeClaims(ctx, brief, agent.ClaimOptions{})
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Error("drafting: claims proposal failed", "matter_id", matterID, "error", err)
		return model.ArtifactVersion{}, err
	}
	if err := claimgraph.CheckAcyclic(graph); err != nil {
		return model.ArtifactVersion{}, &agent.FailureError{Stage: "claims_proposal", Err: err}
	}

	payload, err := json.Marshal(graph)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("drafting: marshal claim graph: %w", err)
	}

	version, err := s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID: matterID,
		Kind:     model.KindClaimGraph,
		Payload:  payload,
		Cause:    storage.CauseGenerated,
		Event:    model.AuditClaimsGenerated,
		ActorID:  actorID,
		Detail:   map[string]any{"node_count": len(graph.Nodes), "brief_version_id": briefVersion.ID},
	})
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	s.logger.Info("drafting: claims generated",
		"matter_id", matterID, "version", version.VersionNumber, "nodes", len(graph.Nodes))
	return version, nil
}

// Commit promotes one claim graph version to authoritative.
func (s *Service) Commit(ctx context.Context, tenantID, matterID, versionID uuid.UUID, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	return s.db.Commit(ctx, storage.CommitInput{
		MatterID:  matterID,
		VersionID: versionID,
		Kind:      model.KindClaimGraph,
		Event:     lifecycle.CommitInitial,
		ActorID:   actorID,
	})
}

// EditNode patches one claim in the given base version and persists the
// result as a new version. Editing an approved graph drops the matter back
// to CLAIMS_PROPOSED.
func (s *Service) EditNode(ctx context.Context, tenantID, matterID, baseVersionID uuid.UUID, nodeID string, actorID *uuid.UUID, req model.EditClaimRequest) (model.ArtifactVersion, error) {
	return s.mutate(ctx, tenantID, matterID, baseVersionID, actorID,
		map[string]any{"operation": "edit_node", "node_id": nodeID},
		func(g model.ClaimGraph) (model.ClaimGraph, error) {
			return claimgraph.EditNode(g, nodeID, req)
		})
}

// AddNode appends a new claim and persists the result as a new version.
func (s *Service) AddNode(ctx context.Context, tenantID, matterID, baseVersionID uuid.UUID, actorID *uuid.UUID, req model.AddClaimRequest) (model.ArtifactVersion, error) {
	var newID string
	version, err := s.mutate(ctx, tenantID, matterID, baseVersionID, actorID,
		map[string]any{"operation": "add_node"},
		func(g model.ClaimGraph) (model.ClaimGraph, error) {
			next, id, err := claimgraph.AddNode(g, req)
			newID = id
			return next, err
		})
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	s.logger.Info("drafting: claim added",
		"matter_id", matterID, "node_id", newID, "version", version.VersionNumber)
	return version, nil
}

// DeleteNode removes a claim, renumbers the survivors to 1..N, and persists
// the result as a new version.
func (s *Service) DeleteNode(ctx context.Context, tenantID, matterID, baseVersionID uuid.UUID, nodeID string, actorID *uuid.UUID) (model.ArtifactVersion, error) {
	var renumbered map[string]string
	version, err := s.mutate(ctx, tenantID, matterID, baseVersionID, actorID,
		map[string]any{"operation": "delete_node", "node_id": nodeID},
		func(g model.ClaimGraph) (model.ClaimGraph, error) {
			next, mapping, err := claimgraph.DeleteNode(g, nodeID)
			renumbered = mapping
			return next, err
		})
	if err != nil {
		return model.ArtifactVersion{}, err
	}
	s.logger.Info("drafting: claim deleted",
		"matter_id", matterID, "node_id", nodeID, "renumbered", len(renumbered))
	return version, nil
}

// mutate loads the base version, applies the pure graph operation, and
// persists the outcome. The graph operation sees a deep copy, so a failed
// edit writes nothing.
func (s *Service) mutate(ctx context.Context, tenantID, matterID, baseVersionID uuid.UUID, actorID *uuid.UUID, detail map[string]any, op func(model.ClaimGraph) (model.ClaimGraph, error)) (model.ArtifactVersion, error) {
	if _, err := s.db.GetMatter(ctx, tenantID, matterID); err != nil {
		return model.ArtifactVersion{}, err
	}
	base, err := s.db.GetVersion(ctx, matterID, baseVersionID, model.KindClaimGraph)
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	var graph model.ClaimGraph
	if err := json.Unmarshal(base.Payload, &graph); err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("drafting: decode claim graph payload: %w", err)
	}

	next, err := op(graph)
	if err != nil {
		return model.ArtifactVersion{}, err
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return model.ArtifactVersion{}, fmt.Errorf("drafting: marshal claim graph: %w", err)
	}

	detail["base_version_id"] = base.ID
	return s.db.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID: matterID,
		Kind:     model.KindClaimGraph,
		Payload:  payload,
		Cause:    storage.CauseEdited,
		Event:    model.AuditClaimsEdited,
		ActorID:  actorID,
		Detail:   detail,
	})
}
