package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tokkyo-ai/tokkyo/internal/lifecycle"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
	"github.com/tokkyo-ai/tokkyo/internal/testutil"
)

var (
	testDB  *storage.DB
	testDSN string
)

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()
	testDSN = tc.DSN

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close()

	os.Exit(m.Run())
}

// newMatter creates a tenant, an attorney, and a matter in CREATED state.
func newMatter(t *testing.T) (model.Matter, model.User) {
	t.Helper()
	ctx := context.Background()

	tenant, err := testDB.CreateTenant(ctx, "Test Firm")
	require.NoError(t, err)

	user, err := testDB.CreateUser(ctx, model.User{
		TenantID: tenant.ID,
		Email:    fmt.Sprintf("attorney-%s@example.com", uuid.NewString()[:8]),
		Name:     "Test Attorney",
		Role:     model.RoleAttorney,
	}, "unused-hash")
	require.NoError(t, err)

	matter, err := testDB.CreateMatter(ctx, model.Matter{
		TenantID:      tenant.ID,
		AttorneyID:    user.ID,
		Title:         "Distributed cache invalidation",
		MatterType:    model.MatterTypeUtility,
		Jurisdictions: []string{"USPTO"},
		Status:        model.StateCreated,
	})
	require.NoError(t, err)
	require.Equal(t, model.StateCreated, matter.Status)

	return matter, user
}

func briefPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(model.BriefStructure{
		CoreInventionStatement: "A cache invalidation protocol",
		TechnicalField:         "distributed systems",
	})
	require.NoError(t, err)
	return data
}

func createBrief(t *testing.T, matter model.Matter, actor model.User) model.ArtifactVersion {
	t.Helper()
	hash := "deadbeef"
	v, err := testDB.CreateVersion(context.Background(), storage.CreateVersionInput{
		MatterID:   matter.ID,
		Kind:       model.KindBrief,
		Payload:    briefPayload(t),
		SourceHash: &hash,
		Cause:      storage.CauseGenerated,
		Event:      model.AuditBriefUploaded,
		ActorID:    &actor.ID,
	})
	require.NoError(t, err)
	return v
}

func TestCreateVersion(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	v := createBrief(t, matter, user)
	assert.Equal(t, 1, v.VersionNumber)
	assert.False(t, v.IsAuthoritative)
	require.NotNil(t, v.SourceHash)

	// Generating a brief advances CREATED to BRIEF_ANALYZED.
	got, err := testDB.GetMatter(ctx, matter.TenantID, matter.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateBriefAnalyzed, got.Status)

	// The workstream head pointer follows the new version.
	ws, err := testDB.GetWorkstream(ctx, matter.ID, model.WorkstreamDrafting)
	require.NoError(t, err)
	require.NotNil(t, ws.ActiveBriefVersionID)
	assert.Equal(t, v.ID, *ws.ActiveBriefVersionID)

	v2 := createBrief(t, matter, user)
	assert.Equal(t, 2, v2.VersionNumber)

	events, err := testDB.ListAuditEvents(ctx, matter.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.AuditBriefUploaded, events[0].EventType)
}

func TestCreateVersionUnknownMatter(t *testing.T) {
	_, err := testDB.CreateVersion(context.Background(), storage.CreateVersionInput{
		MatterID: uuid.New(),
		Kind:     model.KindBrief,
		Payload:  briefPayload(t),
		Cause:    storage.CauseGenerated,
		Event:    model.AuditBriefUploaded,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCommitPromotesSingleVersion(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	v1 := createBrief(t, matter, user)
	v2 := createBrief(t, matter, user)

	committed, err := testDB.Commit(ctx, storage.CommitInput{
		MatterID:  matter.ID,
		VersionID: v1.ID,
		Kind:      model.KindBrief,
		Event:     lifecycle.CommitInitial,
		ActorID:   &user.ID,
	})
	require.NoError(t, err)
	assert.True(t, committed.IsAuthoritative)

	// Committing a sibling demotes the previous authoritative version.
	_, err = testDB.Commit(ctx, storage.CommitInput{
		MatterID:  matter.ID,
		VersionID: v2.ID,
		Kind:      model.KindBrief,
		Event:     lifecycle.CommitInitial,
		ActorID:   &user.ID,
	})
	require.NoError(t, err)

	auth, err := testDB.GetAuthoritative(ctx, matter.ID, model.KindBrief)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, auth.ID)

	old, err := testDB.GetVersion(ctx, matter.ID, v1.ID, model.KindBrief)
	require.NoError(t, err)
	assert.False(t, old.IsAuthoritative)
}

func TestCommitUnknownVersion(t *testing.T) {
	matter, user := newMatter(t)
	createBrief(t, matter, user)

	_, err := testDB.Commit(context.Background(), storage.CommitInput{
		MatterID:  matter.ID,
		VersionID: uuid.New(),
		Kind:      model.KindBrief,
		Event:     lifecycle.CommitInitial,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCommitPreconditionBlocks(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)
	v := createBrief(t, matter, user)

	blocked := errors.New("not ready")
	_, err := testDB.Commit(ctx, storage.CommitInput{
		MatterID:  matter.ID,
		VersionID: v.ID,
		Kind:      model.KindBrief,
		Event:     lifecycle.CommitInitial,
		Precondition: func(model.ArtifactVersion) error {
			return blocked
		},
	})
	assert.ErrorIs(t, err, blocked)

	// A failed commit must leave nothing behind.
	_, err = testDB.GetAuthoritative(ctx, matter.ID, model.KindBrief)
	var missing *storage.MissingApprovalError
	assert.ErrorAs(t, err, &missing)
}

func TestQACommitIsStrict(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)
	createBrief(t, matter, user)

	// The matter is in BRIEF_ANALYZED, nowhere near QA.
	report, err := json.Marshal(model.QAReport{CanExport: true})
	require.NoError(t, err)
	v, err := testDB.CreateVersion(ctx, storage.CreateVersionInput{
		MatterID: matter.ID,
		Kind:     model.KindQAReport,
		Payload:  report,
		Cause:    storage.CauseGenerated,
		Event:    model.AuditQAValidated,
		ActorID:  &user.ID,
	})
	require.NoError(t, err)

	_, err = testDB.Commit(ctx, storage.CommitInput{
		MatterID:  matter.ID,
		VersionID: v.ID,
		Kind:      model.KindQAReport,
		Event:     lifecycle.CommitInitial,
		ActorID:   &user.ID,
	})
	var invalid *lifecycle.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestGetAuthoritativeMissing(t *testing.T) {
	matter, _ := newMatter(t)

	_, err := testDB.GetAuthoritative(context.Background(), matter.ID, model.KindClaimGraph)
	var missing *storage.MissingApprovalError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, model.KindClaimGraph, missing.Kind)
}

func TestListVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)
	createBrief(t, matter, user)
	createBrief(t, matter, user)
	createBrief(t, matter, user)

	versions, err := testDB.ListVersions(ctx, matter.ID, model.KindBrief)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].VersionNumber)
	assert.Equal(t, 1, versions[2].VersionNumber)
}

func TestMatterTenantScoping(t *testing.T) {
	ctx := context.Background()
	matter, _ := newMatter(t)
	other, _ := newMatter(t)

	_, err := testDB.GetMatter(ctx, other.TenantID, matter.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = testDB.UpdateMatterStatus(ctx, other.TenantID, matter.ID, model.StateBriefAnalyzed)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateMatterStatusValidatesTransition(t *testing.T) {
	ctx := context.Background()
	matter, _ := newMatter(t)

	_, err := testDB.UpdateMatterStatus(ctx, matter.TenantID, matter.ID, model.StateQAComplete)
	var invalid *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	got, err := testDB.GetMatter(ctx, matter.TenantID, matter.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCreated, got.Status)
}

func TestFullCommitChain(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	commit := func(kind model.ArtifactKind, id uuid.UUID, event lifecycle.CommitEvent) {
		t.Helper()
		_, err := testDB.Commit(ctx, storage.CommitInput{
			MatterID:  matter.ID,
			VersionID: id,
			Kind:      kind,
			Event:     event,
			ActorID:   &user.ID,
		})
		require.NoError(t, err)
	}
	create := func(kind model.ArtifactKind, payload any, event model.AuditEventType) model.ArtifactVersion {
		t.Helper()
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		v, err := testDB.CreateVersion(ctx, storage.CreateVersionInput{
			MatterID: matter.ID,
			Kind:     kind,
			Payload:  data,
			Cause:    storage.CauseGenerated,
			Event:    event,
			ActorID:  &user.ID,
		})
		require.NoError(t, err)
		return v
	}
	state := func(want model.MatterState) {
		t.Helper()
		got, err := testDB.GetMatter(ctx, matter.TenantID, matter.ID)
		require.NoError(t, err)
		require.Equal(t, want, got.Status)
	}

	brief := createBrief(t, matter, user)
	commit(model.KindBrief, brief.ID, lifecycle.CommitInitial)
	state(model.StateBriefAnalyzed)

	graph := model.ClaimGraph{Nodes: []model.ClaimNode{
		{ID: "1", Type: model.ClaimIndependent, Text: "A method", Dependencies: []string{}},
	}}
	claims := create(model.KindClaimGraph, graph, model.AuditClaimsGenerated)
	state(model.StateClaimsProposed)
	commit(model.KindClaimGraph, claims.ID, lifecycle.CommitInitial)
	state(model.StateClaimsApproved)

	risk := create(model.KindRisk, model.RiskAnalysis{DefensibilityScore: 80}, model.AuditRiskAnalyzed)
	commit(model.KindRisk, risk.ID, lifecycle.CommitInitial)
	state(model.StateRiskReviewed)

	spec := create(model.KindSpec, model.SpecDocument{Title: "Spec"}, model.AuditSpecGenerated)
	commit(model.KindSpec, spec.ID, lifecycle.CommitInitial)
	state(model.StateSpecGenerated)

	reEval := create(model.KindRisk, model.RiskAnalysis{DefensibilityScore: 85}, model.AuditRiskReEvaluated)
	commit(model.KindRisk, reEval.ID, lifecycle.CommitReEvaluation)
	state(model.StateRiskReReviewed)

	qa := create(model.KindQAReport, model.QAReport{CanExport: true}, model.AuditQAValidated)
	commit(model.KindQAReport, qa.ID, lifecycle.CommitInitial)
	state(model.StateQAComplete)

	_, err := testDB.UpdateMatterStatus(ctx, matter.TenantID, matter.ID, model.StateLockedForExport)
	require.NoError(t, err)
	state(model.StateLockedForExport)

	// Every head pointer should be live.
	ws, err := testDB.GetWorkstream(ctx, matter.ID, model.WorkstreamDrafting)
	require.NoError(t, err)
	for _, kind := range model.Kinds {
		assert.NotNil(t, ws.ActiveVersionID(kind), "head pointer for %s", kind)
	}
}

func TestSetDefensibilityScore(t *testing.T) {
	ctx := context.Background()
	matter, _ := newMatter(t)

	require.NoError(t, testDB.SetDefensibilityScore(ctx, matter.ID, 72))

	got, err := testDB.GetMatter(ctx, matter.TenantID, matter.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DefensibilityScore)
	assert.Equal(t, 72, *got.DefensibilityScore)
}

func TestListMatters(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	for i := 0; i < 3; i++ {
		_, err := testDB.CreateMatter(ctx, model.Matter{
			TenantID:   matter.TenantID,
			AttorneyID: user.ID,
			Title:      fmt.Sprintf("Matter %d", i),
			MatterType: model.MatterTypeUtility,
			Status:     model.StateCreated,
		})
		require.NoError(t, err)
	}

	matters, err := testDB.ListMatters(ctx, matter.TenantID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, matters, 4)

	page, err := testDB.ListMatters(ctx, matter.TenantID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestVerifyAuditTrail(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	createBrief(t, matter, user)
	createBrief(t, matter, user)

	v, err := testDB.VerifyAuditTrail(ctx, matter.ID)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, 2, v.EventCount)
	assert.NotEmpty(t, v.MerkleRoot)
	assert.Empty(t, v.MismatchedEventIDs)

	// Tamper with one row out of band; verification must flag it.
	pool, err := pgxpool.New(ctx, testDSN)
	require.NoError(t, err)
	defer pool.Close()
	tag, err := pool.Exec(ctx,
		`UPDATE audit_events SET event_type = 'QA_COMMITTED'
		 WHERE id = (SELECT id FROM audit_events WHERE matter_id = $1
		             ORDER BY created_at ASC, id ASC LIMIT 1)`,
		matter.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	v2, err := testDB.VerifyAuditTrail(ctx, matter.ID)
	require.NoError(t, err)
	assert.False(t, v2.Verified)
	assert.Len(t, v2.MismatchedEventIDs, 1)
	assert.Equal(t, v.MerkleRoot, v2.MerkleRoot, "hash column untouched, root unchanged")
}

func TestVerifyAuditTrailEmpty(t *testing.T) {
	matter, _ := newMatter(t)

	v, err := testDB.VerifyAuditTrail(context.Background(), matter.ID)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Zero(t, v.EventCount)
	assert.Empty(t, v.MerkleRoot)
}

func TestLockMatterWritesStatusAndAuditTogether(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	for _, s := range []model.MatterState{
		model.StateBriefAnalyzed, model.StateClaimsProposed, model.StateClaimsApproved,
		model.StateRiskReviewed, model.StateSpecGenerated, model.StateQAComplete,
	} {
		_, err := testDB.UpdateMatterStatus(ctx, matter.TenantID, matter.ID, s)
		require.NoError(t, err)
	}

	locked, err := testDB.LockMatter(ctx, matter.TenantID, matter.ID, &user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateLockedForExport, locked.Status)

	events, err := testDB.ListAuditEvents(ctx, matter.ID, 50, 0)
	require.NoError(t, err)
	var found bool
	for _, ev := range events {
		if ev.EventType == model.AuditMatterLocked {
			found = true
			require.NotNil(t, ev.ActorID)
			assert.Equal(t, user.ID, *ev.ActorID)
		}
	}
	assert.True(t, found, "MATTER_LOCKED event recorded")
}

func TestLockMatterRejectedLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)

	_, err := testDB.LockMatter(ctx, matter.TenantID, matter.ID, &user.ID)
	var invalid *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	got, err := testDB.GetMatter(ctx, matter.TenantID, matter.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCreated, got.Status)

	events, err := testDB.ListAuditEvents(ctx, matter.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "rejected lock must not append audit events")
}

func TestConcurrentCreateVersionNumbering(t *testing.T) {
	ctx := context.Background()
	matter, user := newMatter(t)
	payload := briefPayload(t)

	const n = 8
	results := make([]model.ArtifactVersion, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := testDB.CreateVersion(gctx, storage.CreateVersionInput{
				MatterID: matter.ID,
				Kind:     model.KindBrief,
				Payload:  payload,
				Cause:    storage.CauseGenerated,
				Event:    model.AuditBriefUploaded,
				ActorID:  &user.ID,
			})
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int]int, n)
	for _, v := range results {
		seen[v.VersionNumber]++
	}
	for want := 1; want <= n; want++ {
		assert.Equal(t, 1, seen[want], "version number %d assigned exactly once", want)
	}
}

func TestSchemaConstraints(t *testing.T) {
	ctx := context.Background()
	matter, _ := newMatter(t)

	pool, err := pgxpool.New(ctx, testDSN)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx,
		`UPDATE matters SET status = 'SHIPPED' WHERE id = $1`, matter.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check constraint")

	_, err = pool.Exec(ctx,
		`UPDATE workstreams SET active_brief_version_id = $2 WHERE matter_id = $1`,
		matter.ID, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign key constraint")
}
