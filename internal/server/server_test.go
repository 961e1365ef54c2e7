package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokkyo-ai/tokkyo/api"
	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/server"
	"github.com/tokkyo-ai/tokkyo/internal/service/briefing"
	"github.com/tokkyo-ai/tokkyo/internal/service/drafting"
	"github.com/tokkyo-ai/tokkyo/internal/service/export"
	"github.com/tokkyo-ai/tokkyo/internal/service/qa"
	"github.com/tokkyo-ai/tokkyo/internal/service/risk"
	"github.com/tokkyo-ai/tokkyo/internal/service/specs"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
	"github.com/tokkyo-ai/tokkyo/internal/testutil"
)

var (
	testDB  *storage.DB
	testSrv *httptest.Server
	jwtMgr  *auth.JWTManager
)

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	ctx := context.Background()
	logger := testutil.TestLogger()

	var err error
	testDB, err = tc.NewTestDB(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close()

	jwtMgr, err = auth.NewJWTManager("", "", time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create JWT manager: %v\n", err)
		os.Exit(1)
	}

	pipeline := &agent.StubPipeline{}
	handlers := server.NewHandlers(server.HandlersDeps{
		DB:                  testDB,
		JWTMgr:              jwtMgr,
		BriefingSvc:         briefing.New(testDB, pipeline, logger),
		DraftingSvc:         drafting.New(testDB, pipeline, logger),
		RiskSvc:             risk.New(testDB, pipeline, logger),
		SpecsSvc:            specs.New(testDB, pipeline, logger),
		QASvc:               qa.New(testDB, pipeline, logger),
		ExportSvc:           export.New(testDB, nil, logger),
		Logger:              logger,
		Version:             "test",
		OpenAPISpec:         api.OpenAPISpec,
		MaxRequestBodyBytes: 1 << 20,
	})
	srv := server.New(server.ServerConfig{Port: 0}, handlers, jwtMgr, logger)

	testSrv = httptest.NewServer(srv.Handler())
	defer testSrv.Close()

	os.Exit(m.Run())
}

// newUser creates a tenant-scoped user and returns it with a valid JWT.
func newUser(t *testing.T, role model.UserRole) (model.User, string) {
	t.Helper()
	ctx := context.Background()

	tenant, err := testDB.CreateTenant(ctx, "Test Firm")
	require.NoError(t, err)

	hash, err := auth.HashAPIKey("test-api-key")
	require.NoError(t, err)

	user, err := testDB.CreateUser(ctx, model.User{
		TenantID: tenant.ID,
		Email:    fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		Name:     "Test User",
		Role:     role,
	}, hash)
	require.NoError(t, err)

	token, _, err := jwtMgr.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

// sameTenantUser creates another user in an existing tenant.
func sameTenantUser(t *testing.T, tenantID uuid.UUID, role model.UserRole) (model.User, string) {
	t.Helper()
	hash, err := auth.HashAPIKey("test-api-key")
	require.NoError(t, err)
	user, err := testDB.CreateUser(context.Background(), model.User{
		TenantID: tenantID,
		Email:    fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		Name:     "Test User",
		Role:     role,
	}, hash)
	require.NoError(t, err)
	token, _, err := jwtMgr.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

func doRequest(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testSrv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := testSrv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// decodeData unmarshals the data field of the success envelope.
func decodeData(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var envelope model.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

func createMatter(t *testing.T, token string) model.Matter {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/v1/matters", token, model.CreateMatterRequest{
		Title:      "Adaptive cache coherence protocol",
		TechDomain: ptr("distributed systems"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var matter model.Matter
	decodeData(t, resp, &matter)
	return matter
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/health", "", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/v1/matters", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, model.ErrCodeUnauthorized, errorCode(t, resp))

	resp = doRequest(t, http.MethodGet, "/v1/matters", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAuthToken(t *testing.T) {
	user, _ := newUser(t, model.RoleAttorney)

	resp := doRequest(t, http.MethodPost, "/auth/token", "", model.AuthTokenRequest{
		Email: user.Email, APIKey: "test-api-key",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokenResp model.AuthTokenResponse
	decodeData(t, resp, &tokenResp)
	require.NotEmpty(t, tokenResp.Token)

	// The minted token is accepted by protected routes.
	resp = doRequest(t, http.MethodGet, "/v1/matters", tokenResp.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	t.Run("wrong key", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, "/auth/token", "", model.AuthTokenRequest{
			Email: user.Email, APIKey: "wrong-key",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, "/auth/token", "", model.AuthTokenRequest{
			Email: "nobody@example.com", APIKey: "test-api-key",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestCreateAndGetMatter(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	assert.Equal(t, model.StateCreated, matter.Status)
	assert.Equal(t, model.MatterTypeUtility, matter.MatterType)

	resp := doRequest(t, http.MethodGet, "/v1/matters/"+matter.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		Matter model.Matter `json:"matter"`
	}
	decodeData(t, resp, &detail)
	assert.Equal(t, matter.ID, detail.Matter.ID)

	t.Run("other tenant cannot see it", func(t *testing.T) {
		_, otherToken := newUser(t, model.RoleAttorney)
		resp := doRequest(t, http.MethodGet, "/v1/matters/"+matter.ID.String(), otherToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("invalid body", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, "/v1/matters", token, map[string]string{"title": ""})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, model.ErrCodeInvalidInput, errorCode(t, resp))
	})
}

func TestDraftingFlow(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	post := func(path string, body any, wantStatus int) model.ArtifactVersion {
		t.Helper()
		resp := doRequest(t, http.MethodPost, base+path, token, body)
		require.Equal(t, wantStatus, resp.StatusCode, "POST %s", path)
		var v model.ArtifactVersion
		decodeData(t, resp, &v)
		return v
	}

	brief := post("/brief/analyze", model.AnalyzeBriefRequest{SourceText: "An invention disclosure."}, http.StatusCreated)
	assert.Equal(t, 1, brief.VersionNumber)
	post("/brief/"+brief.ID.String()+"/approve", nil, http.StatusOK)

	claims := post("/claims/generate", model.GenerateClaimsRequest{}, http.StatusCreated)
	assert.False(t, claims.IsAuthoritative)

	// Structural edits before approval.
	edited := post("/claims/"+claims.ID.String()+"/nodes", model.AddClaimRequest{
		Type: "dependent", Text: "The method of claim 1, wherein the data is compressed.",
		Dependencies: []string{"1"},
	}, http.StatusCreated)
	assert.Equal(t, claims.VersionNumber+1, edited.VersionNumber)

	resp := doRequest(t, http.MethodPatch, base+"/claims/"+edited.ID.String()+"/nodes/2", token,
		map[string]any{"text": "The method of claim 1, further comprising validating."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var patched model.ArtifactVersion
	decodeData(t, resp, &patched)

	resp = doRequest(t, http.MethodDelete, base+"/claims/"+patched.ID.String()+"/nodes/3", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pruned model.ArtifactVersion
	decodeData(t, resp, &pruned)

	committed := post("/claims/"+pruned.ID.String()+"/commit", nil, http.StatusOK)
	assert.True(t, committed.IsAuthoritative)

	riskV := post("/risk/analyze", model.AnalyzeRiskRequest{}, http.StatusCreated)
	post("/risk/"+riskV.ID.String()+"/commit", nil, http.StatusOK)

	specV := post("/spec/generate", model.GenerateSpecRequest{}, http.StatusCreated)
	post("/spec/"+specV.ID.String()+"/commit", nil, http.StatusOK)

	reEval := post("/risk/re-evaluate", nil, http.StatusCreated)
	post("/risk/"+reEval.ID.String()+"/commit-re-evaluation", nil, http.StatusOK)

	qaV := post("/qa/validate", model.ValidateQARequest{}, http.StatusCreated)
	post("/qa/"+qaV.ID.String()+"/commit", nil, http.StatusOK)

	// Export before locking is rejected.
	resp = doRequest(t, http.MethodPost, base+"/export", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodPost, base+"/lock", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var locked model.Matter
	decodeData(t, resp, &locked)
	assert.Equal(t, model.StateLockedForExport, locked.Status)

	resp = doRequest(t, http.MethodPost, base+"/export", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "application-")
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "What is claimed is:")

	// The audit log recorded the whole journey.
	resp = doRequest(t, http.MethodGet, base+"/audit", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []model.AuditEvent
	decodeData(t, resp, &events)
	require.NotEmpty(t, events)
	types := make(map[model.AuditEventType]bool, len(events))
	for _, ev := range events {
		types[ev.EventType] = true
	}
	for _, want := range []model.AuditEventType{
		model.AuditBriefUploaded, model.AuditBriefApproved,
		model.AuditClaimsGenerated, model.AuditClaimsEdited, model.AuditClaimsCommitted,
		model.AuditRiskAnalyzed, model.AuditRiskCommitted,
		model.AuditSpecGenerated, model.AuditSpecCommitted,
		model.AuditRiskReEvaluated, model.AuditRiskReEvalCommitted,
		model.AuditQAValidated, model.AuditQACommitted,
		model.AuditMatterLocked, model.AuditExportGenerated,
	} {
		assert.True(t, types[want], "missing audit event %s", want)
	}
}

func TestClaimEditRejectsCycles(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	resp := doRequest(t, http.MethodPost, base+"/brief/analyze",
		token, model.AnalyzeBriefRequest{SourceText: "Disclosure."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var brief model.ArtifactVersion
	decodeData(t, resp, &brief)
	resp = doRequest(t, http.MethodPost, base+"/brief/"+brief.ID.String()+"/approve", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodPost, base+"/claims/generate", token, model.GenerateClaimsRequest{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var claims model.ArtifactVersion
	decodeData(t, resp, &claims)

	// Claim 2 depending on claim 3 while 3 depends on 1 is fine; 2 on 2 is not.
	resp = doRequest(t, http.MethodPatch, base+"/claims/"+claims.ID.String()+"/nodes/2", token,
		map[string]any{"dependencies": []string{"2"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, model.ErrCodeSelfDependency, errorCode(t, resp))

	resp = doRequest(t, http.MethodPatch, base+"/claims/"+claims.ID.String()+"/nodes/2", token,
		map[string]any{"dependencies": []string{"99"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, model.ErrCodeUnknownDependency, errorCode(t, resp))

	resp = doRequest(t, http.MethodPatch, base+"/claims/"+claims.ID.String()+"/nodes/99", token,
		map[string]any{"text": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	// An empty patch changes nothing.
	resp = doRequest(t, http.MethodPatch, base+"/claims/"+claims.ID.String()+"/nodes/2",
		token, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNoChange, errorCode(t, resp))
}

func TestCommitRequiresAttorney(t *testing.T) {
	attorney, token := newUser(t, model.RoleAttorney)
	_, paralegalToken := sameTenantUser(t, attorney.TenantID, model.RoleParalegal)

	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	resp := doRequest(t, http.MethodPost, base+"/brief/analyze",
		paralegalToken, model.AnalyzeBriefRequest{SourceText: "Disclosure."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var brief model.ArtifactVersion
	decodeData(t, resp, &brief)

	// Paralegals can draft but not approve.
	resp = doRequest(t, http.MethodPost, base+"/brief/"+brief.ID.String()+"/approve", paralegalToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.ErrCodeForbidden, errorCode(t, resp))

	resp = doRequest(t, http.MethodPost, base+"/brief/"+brief.ID.String()+"/approve", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestGenerateClaimsRequiresApprovedBrief(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)

	resp := doRequest(t, http.MethodPost, "/v1/matters/"+matter.ID.String()+"/claims/generate",
		token, model.GenerateClaimsRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeMissingApproval, errorCode(t, resp))
}

func TestListVersionsEndpoint(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	for i := 0; i < 2; i++ {
		resp := doRequest(t, http.MethodPost, base+"/brief/analyze",
			token, model.AnalyzeBriefRequest{SourceText: fmt.Sprintf("Draft %d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := doRequest(t, http.MethodGet, base+"/brief/versions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var versions []model.ArtifactVersion
	decodeData(t, resp, &versions)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
}

func TestManualStatusTransition(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	resp := doRequest(t, http.MethodPost, base+"/status", token,
		model.UpdateStatusRequest{Status: "QA_COMPLETE"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidTransition, errorCode(t, resp))

	resp = doRequest(t, http.MethodPost, base+"/status", token,
		model.UpdateStatusRequest{Status: "NOT_A_STATE"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestEditParagraph(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)
	base := "/v1/matters/" + matter.ID.String()

	post := func(path string, body any) model.ArtifactVersion {
		t.Helper()
		resp := doRequest(t, http.MethodPost, base+path, token, body)
		require.True(t, resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK,
			"POST %s returned %d", path, resp.StatusCode)
		var v model.ArtifactVersion
		decodeData(t, resp, &v)
		return v
	}

	brief := post("/brief/analyze", model.AnalyzeBriefRequest{SourceText: "Disclosure."})
	post("/brief/"+brief.ID.String()+"/approve", nil)
	claims := post("/claims/generate", model.GenerateClaimsRequest{})
	post("/claims/"+claims.ID.String()+"/commit", nil)
	spec := post("/spec/generate", model.GenerateSpecRequest{})

	resp := doRequest(t, http.MethodPatch, base+"/spec/"+spec.ID.String()+"/paragraphs/P001",
		token, model.EditParagraphRequest{Text: "Amended support for claim 1."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var edited model.ArtifactVersion
	decodeData(t, resp, &edited)
	assert.Equal(t, spec.VersionNumber+1, edited.VersionNumber)

	var doc model.SpecDocument
	require.NoError(t, json.Unmarshal(edited.Payload, &doc))
	assert.Equal(t, "Amended support for claim 1.", doc.Sections[0].Text)

	t.Run("same text rejected", func(t *testing.T) {
		resp := doRequest(t, http.MethodPatch, base+"/spec/"+edited.ID.String()+"/paragraphs/P001",
			token, model.EditParagraphRequest{Text: "Amended support for claim 1."})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, model.ErrCodeNoChange, errorCode(t, resp))
	})

	t.Run("unknown paragraph", func(t *testing.T) {
		resp := doRequest(t, http.MethodPatch, base+"/spec/"+edited.ID.String()+"/paragraphs/P999",
			token, model.EditParagraphRequest{Text: "anything"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestAgentFailureSurfacesAsBadGateway(t *testing.T) {
	logger := testutil.TestLogger()
	failing := &agent.StubPipeline{Fail: true}
	handlers := server.NewHandlers(server.HandlersDeps{
		DB:          testDB,
		JWTMgr:      jwtMgr,
		BriefingSvc: briefing.New(testDB, failing, logger),
		DraftingSvc: drafting.New(testDB, failing, logger),
		RiskSvc:     risk.New(testDB, failing, logger),
		SpecsSvc:    specs.New(testDB, failing, logger),
		QASvc:       qa.New(testDB, failing, logger),
		ExportSvc:   export.New(testDB, nil, logger),
		Logger:      logger,
		Version:     "test",
	})
	srv := server.New(server.ServerConfig{Port: 0}, handlers, jwtMgr, logger)
	failSrv := httptest.NewServer(srv.Handler())
	defer failSrv.Close()

	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)

	body, err := json.Marshal(model.AnalyzeBriefRequest{SourceText: "Disclosure."})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost,
		failSrv.URL+"/v1/matters/"+matter.ID.String()+"/brief/analyze", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := failSrv.Client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, model.ErrCodeAgentFailure, errorCode(t, resp))
}

func TestAuditVerifyEndpoint(t *testing.T) {
	_, token := newUser(t, model.RoleAttorney)
	matter := createMatter(t, token)

	resp := doRequest(t, http.MethodPost, "/v1/matters/"+matter.ID.String()+"/brief/analyze", token,
		model.AnalyzeBriefRequest{SourceText: "A system for adaptive cache coherence."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/v1/matters/"+matter.ID.String()+"/audit/verify", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verification model.AuditVerification
	decodeData(t, resp, &verification)
	assert.True(t, verification.Verified)
	assert.Equal(t, 1, verification.EventCount)
	assert.NotEmpty(t, verification.MerkleRoot)

	// Cross-tenant access is indistinguishable from a missing matter.
	_, otherToken := newUser(t, model.RoleAttorney)
	resp = doRequest(t, http.MethodGet, "/v1/matters/"+matter.ID.String()+"/audit/verify", otherToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestOpenAPISpecServedWithoutAuth(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/openapi.yaml", "", nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "openapi: 3.1.0")
	assert.Contains(t, string(body), "/v1/matters/{id}/claims/generate")
}
