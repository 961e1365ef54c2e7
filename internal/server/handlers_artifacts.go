package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tokkyo-ai/tokkyo/internal/ctxutil"
	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// tenantMatter resolves the {id} path parameter and the caller's tenant,
// writing the error response on failure.
func (h *Handlers) tenantMatter(w http.ResponseWriter, r *http.Request) (tenantID, matterID uuid.UUID, actorID *uuid.UUID, ok bool) {
	matterID, ok = h.pathUUID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, nil, false
	}
	return ctxutil.TenantIDFromContext(r.Context()), matterID, ctxutil.UserIDFromContext(r.Context()), true
}

// HandleAnalyzeBrief runs brief analysis over uploaded disclosure text.
func (h *Handlers) HandleAnalyzeBrief(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	var req model.AnalyzeBriefRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.briefing.Analyze(r.Context(), tenantID, matterID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleApproveBrief commits one brief version.
func (h *Handlers) HandleApproveBrief(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.briefing.Approve(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleGenerateClaims proposes a claim graph from the approved brief.
func (h *Handlers) HandleGenerateClaims(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	var req model.GenerateClaimsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.drafting.Generate(r.Context(), tenantID, matterID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleCommitClaims commits one claim graph version.
func (h *Handlers) HandleCommitClaims(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.drafting.Commit(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleEditClaim patches one claim node, producing a new version.
func (h *Handlers) HandleEditClaim(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	nodeID := r.PathValue("node_id")
	var req model.EditClaimRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.drafting.EditNode(r.Context(), tenantID, matterID, versionID, nodeID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleAddClaim appends a claim node, producing a new version.
func (h *Handlers) HandleAddClaim(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	var req model.AddClaimRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.drafting.AddNode(r.Context(), tenantID, matterID, versionID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleDeleteClaim removes a claim node and renumbers, producing a new version.
func (h *Handlers) HandleDeleteClaim(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	nodeID := r.PathValue("node_id")
	version, err := h.drafting.DeleteNode(r.Context(), tenantID, matterID, versionID, nodeID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleAnalyzeRisk runs the initial risk review.
func (h *Handlers) HandleAnalyzeRisk(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	var req model.AnalyzeRiskRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.risk.Analyze(r.Context(), tenantID, matterID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleReEvaluateRisk runs the post-spec risk review.
func (h *Handlers) HandleReEvaluateRisk(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	version, err := h.risk.ReEvaluate(r.Context(), tenantID, matterID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleCommitRisk commits an initial risk analysis.
func (h *Handlers) HandleCommitRisk(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.risk.Commit(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleCommitRiskReEvaluation commits a post-spec re-evaluation.
func (h *Handlers) HandleCommitRiskReEvaluation(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.risk.CommitReEvaluation(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleGenerateSpec drafts the specification.
func (h *Handlers) HandleGenerateSpec(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	var req model.GenerateSpecRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.specs.Generate(r.Context(), tenantID, matterID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleCommitSpec commits one spec version.
func (h *Handlers) HandleCommitSpec(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.specs.Commit(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleEditParagraph replaces one paragraph's text, producing a new version.
func (h *Handlers) HandleEditParagraph(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	paragraphID := r.PathValue("paragraph_id")
	var req model.EditParagraphRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.specs.EditParagraph(r.Context(), tenantID, matterID, versionID, paragraphID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleValidateQA runs QA validation.
func (h *Handlers) HandleValidateQA(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	var req model.ValidateQARequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	version, err := h.qa.Validate(r.Context(), tenantID, matterID, actorID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, version)
}

// HandleCommitQA commits a QA report behind the export gate.
func (h *Handlers) HandleCommitQA(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	versionID, ok := h.pathUUID(w, r, "version_id")
	if !ok {
		return
	}
	version, err := h.qa.Commit(r.Context(), tenantID, matterID, versionID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}

// HandleLockMatter locks a QA-complete matter for export.
func (h *Handlers) HandleLockMatter(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	matter, err := h.export.Lock(r.Context(), tenantID, matterID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, matter)
}

// HandleExportMatter renders the filing document for a locked matter.
func (h *Handlers) HandleExportMatter(w http.ResponseWriter, r *http.Request) {
	tenantID, matterID, actorID, ok := h.tenantMatter(w, r)
	if !ok {
		return
	}
	doc, err := h.export.Generate(r.Context(), tenantID, matterID, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// HandleListVersions lists all versions of the kind named in the route.
func (h *Handlers) HandleListVersions(kind model.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, matterID, _, ok := h.tenantMatter(w, r)
		if !ok {
			return
		}
		if _, err := h.db.GetMatter(r.Context(), tenantID, matterID); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		versions, err := h.db.ListVersions(r.Context(), matterID, kind)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, versions)
	}
}

// HandleGetVersion returns one version of the kind named in the route.
func (h *Handlers) HandleGetVersion(kind model.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, matterID, _, ok := h.tenantMatter(w, r)
		if !ok {
			return
		}
		versionID, ok := h.pathUUID(w, r, "version_id")
		if !ok {
			return
		}
		if _, err := h.db.GetMatter(r.Context(), tenantID, matterID); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		version, err := h.db.GetVersion(r.Context(), matterID, versionID, kind)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, version)
	}
}
