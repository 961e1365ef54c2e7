// Package export locks a matter after QA and renders the filing document
// from its authoritative artifacts.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
)

// NotLockedError reports an export attempt on a matter that has not been
// locked for export.
type NotLockedError struct {
	Status model.MatterState
}

func (e *NotLockedError) Error() string {
	return fmt.Sprintf("export: matter is %s, not LOCKED_FOR_EXPORT", e.Status)
}

// Renderer turns the authoritative artifacts into a filing document. The
// production DOCX renderer runs as a separate service; PlainRenderer is the
// in-process fallback.
type Renderer interface {
	Render(ctx context.Context, matter model.Matter, spec model.SpecDocument, graph model.ClaimGraph) (data []byte, filename string, err error)
}

// Document is a rendered export.
type Document struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Service locks matters and generates export documents.
type Service struct {
	db       *storage.DB
	renderer Renderer
	logger   *slog.Logger
}

// New creates an export Service. A nil renderer falls back to PlainRenderer.
func New(db *storage.DB, renderer Renderer, logger *slog.Logger) *Service {
	if renderer == nil {
		renderer = PlainRenderer{}
	}
	return &Service{db: db, renderer: renderer, logger: logger}
}

// Lock transitions the matter from QA_COMPLETE to the terminal
// LOCKED_FOR_EXPORT state and records MATTER_LOCKED.
func (s *Service) Lock(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID) (model.Matter, error) {
	matter, err := s.db.LockMatter(ctx, tenantID, matterID, actorID)
	if err != nil {
		return model.Matter{}, err
	}
	s.logger.Info("export: matter locked", "matter_id", matterID)
	return matter, nil
}

// Generate renders the filing document from the authoritative spec and claim
// graph. Only a locked matter can be exported.
func (s *Service) Generate(ctx context.Context, tenantID, matterID uuid.UUID, actorID *uuid.UUID) (Document, error) {
	matter, err := s.db.GetMatter(ctx, tenantID, matterID)
	if err != nil {
		return Document{}, err
	}
	if matter.Status != model.StateLockedForExport {
		return Document{}, &NotLockedError{Status: matter.Status}
	}

	specVersion, err := s.db.GetAuthoritative(ctx, matterID, model.KindSpec)
	if err != nil {
		return Document{}, err
	}
	var doc model.SpecDocument
	if err := json.Unmarshal(specVersion.Payload, &doc); err != nil {
		return Document{}, fmt.Errorf("export: decode document payload: %w", err)
	}

	claimVersion, err := s.db.GetAuthoritative(ctx, matterID, model.KindClaimGraph)
	if err != nil {
		return Document{}, err
	}
	var graph model.ClaimGraph
	if err := json.Unmarshal(claimVersion.Payload, &graph); err != nil {
		return Document{}, fmt.Errorf("export: decode claim graph payload: %w", err)
	}

	data, filename, err := s.renderer.Render(ctx, matter, doc, graph)
	if err != nil {
		return Document{}, fmt.Errorf("export: render: %w", err)
	}

	if err := s.db.RecordAuditEvent(ctx, model.AuditEvent{
		MatterID:  matterID,
		EventType: model.AuditExportGenerated,
		ActorID:   actorID,
		Detail: map[string]any{
			"filename":         filename,
			"spec_version_id":  specVersion.ID,
			"claim_version_id": claimVersion.ID,
		},
	}); err != nil {
		return Document{}, err
	}

	s.logger.Info("export: document generated",
		"matter_id", matterID, "filename", filename, "bytes", len(data))
	return Document{Filename: filename, ContentType: contentType(filename), Data: data}, nil
}

func contentType(filename string) string {
	if strings.HasSuffix(filename, ".docx") {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/plain; charset=utf-8"
}
