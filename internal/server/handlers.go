package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/ctxutil"
	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/service/briefing"
	"github.com/tokkyo-ai/tokkyo/internal/service/drafting"
	"github.com/tokkyo-ai/tokkyo/internal/service/export"
	"github.com/tokkyo-ai/tokkyo/internal/service/qa"
	"github.com/tokkyo-ai/tokkyo/internal/service/risk"
	"github.com/tokkyo-ai/tokkyo/internal/service/specs"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	db       *storage.DB
	jwtMgr   *auth.JWTManager
	briefing *briefing.Service
	drafting *drafting.Service
	risk     *risk.Service
	specs    *specs.Service
	qa       *qa.Service
	export   *export.Service
	validate *validator.Validate
	logger   *slog.Logger
	version  string

	openapiSpec  []byte
	maxBodyBytes int64
}

// HandlersDeps carries the dependencies for NewHandlers.
type HandlersDeps struct {
	DB          *storage.DB
	JWTMgr      *auth.JWTManager
	BriefingSvc *briefing.Service
	DraftingSvc *drafting.Service
	RiskSvc     *risk.Service
	SpecsSvc    *specs.Service
	QASvc       *qa.Service
	ExportSvc   *export.Service
	Logger      *slog.Logger
	Version     string

	// OpenAPISpec is optional; when empty, GET /openapi.yaml returns 404.
	OpenAPISpec []byte

	MaxRequestBodyBytes int64
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		db:           deps.DB,
		jwtMgr:       deps.JWTMgr,
		briefing:     deps.BriefingSvc,
		drafting:     deps.DraftingSvc,
		risk:         deps.RiskSvc,
		specs:        deps.SpecsSvc,
		qa:           deps.QASvc,
		export:       deps.ExportSvc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       deps.Logger,
		version:      deps.Version,
		openapiSpec:  deps.OpenAPISpec,
		maxBodyBytes: deps.MaxRequestBodyBytes,
	}
}

// decodeValid decodes and validates a request body. Returns false after
// writing the error response when the body is malformed or invalid.
func (h *Handlers) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := decodeJSON(r, target); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "validation failed: "+err.Error())
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func (h *Handlers) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// HandleHealth reports liveness and database reachability.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]string{"status": status, "version": h.version})
}

// HandleAuthToken exchanges an email + API key for a JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	user, hash, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Burn the same hashing cost as a real verification so timing does
		// not reveal whether the email is registered.
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}
	ok, err := auth.VerifyAPIKey(req.APIKey, hash)
	if err != nil || !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(user)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// HandleCreateMatter opens a new matter in the CREATED state.
func (h *Handlers) HandleCreateMatter(w http.ResponseWriter, r *http.Request) {
	var req model.CreateMatterRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	claims := ctxutil.ClaimsFromContext(r.Context())
	attorneyID := ctxutil.UserIDFromContext(r.Context())
	if claims == nil || attorneyID == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}

	matterType := model.MatterType(req.MatterType)
	if req.MatterType == "" {
		matterType = model.MatterTypeUtility
	}
	jurisdictions := req.Jurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = []string{string(model.JurisdictionUSPTO)}
	}

	matter, err := h.db.CreateMatter(r.Context(), model.Matter{
		TenantID:        claims.TenantID,
		AttorneyID:      *attorneyID,
		Title:           req.Title,
		ReferenceNumber: req.ReferenceNumber,
		Description:     req.Description,
		Inventors:       req.Inventors,
		Assignee:        req.Assignee,
		TechDomain:      req.TechDomain,
		MatterType:      matterType,
		Jurisdictions:   jurisdictions,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, matter)
}

// HandleListMatters returns the tenant's matters.
func (h *Handlers) HandleListMatters(w http.ResponseWriter, r *http.Request) {
	tenantID := ctxutil.TenantIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	matters, err := h.db.ListMatters(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, matters)
}

// HandleGetMatter returns one matter with its workstream head pointers.
func (h *Handlers) HandleGetMatter(w http.ResponseWriter, r *http.Request) {
	matterID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID := ctxutil.TenantIDFromContext(r.Context())

	matter, err := h.db.GetMatter(r.Context(), tenantID, matterID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp := map[string]any{"matter": matter}
	if ws, err := h.db.GetWorkstream(r.Context(), matterID, model.WorkstreamDrafting); err == nil {
		resp["workstream"] = ws
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleUpdateStatus performs a manual lifecycle transition.
func (h *Handlers) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	matterID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	target := model.MatterState(req.Status)
	if !lifecycle.ValidState(target) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown status "+req.Status)
		return
	}

	tenantID := ctxutil.TenantIDFromContext(r.Context())
	matter, err := h.db.UpdateMatterStatus(r.Context(), tenantID, matterID, target)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, matter)
}

// HandleListAudit returns a matter's audit trail, newest first.
func (h *Handlers) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	matterID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID := ctxutil.TenantIDFromContext(r.Context())
	if _, err := h.db.GetMatter(r.Context(), tenantID, matterID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	events, err := h.db.ListAuditEvents(r.Context(), matterID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// HandleVerifyAudit recomputes the matter's audit trail hashes and returns
// the tamper-evidence verdict with the trail's Merkle root.
func (h *Handlers) HandleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	matterID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	tenantID := ctxutil.TenantIDFromContext(r.Context())
	if _, err := h.db.GetMatter(r.Context(), tenantID, matterID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	verification, err := h.db.VerifyAuditTrail(r.Context(), matterID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, verification)
}
