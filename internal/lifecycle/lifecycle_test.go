package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

func TestCheckTransition_Legal(t *testing.T) {
	legal := []struct {
		from, to model.MatterState
	}{
		{model.StateCreated, model.StateBriefAnalyzed},
		{model.StateBriefAnalyzed, model.StateClaimsProposed},
		{model.StateClaimsProposed, model.StateClaimsApproved},
		{model.StateClaimsProposed, model.StateBriefAnalyzed},
		{model.StateClaimsApproved, model.StateRiskReviewed},
		{model.StateClaimsApproved, model.StateSpecGenerated},
		{model.StateRiskReviewed, model.StateSpecGenerated},
		{model.StateRiskReviewed, model.StateClaimsApproved},
		{model.StateSpecGenerated, model.StateQAComplete},
		{model.StateSpecGenerated, model.StateRiskReReviewed},
		{model.StateRiskReReviewed, model.StateQAComplete},
		{model.StateQAComplete, model.StateLockedForExport},
		{model.StateQAComplete, model.StateSpecGenerated},
	}
	for _, tc := range legal {
		assert.NoError(t, CheckTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCheckTransition_Illegal(t *testing.T) {
	illegal := []struct {
		from, to model.MatterState
	}{
		{model.StateCreated, model.StateClaimsProposed},
		{model.StateCreated, model.StateLockedForExport},
		{model.StateBriefAnalyzed, model.StateClaimsApproved},
		{model.StateClaimsApproved, model.StateClaimsProposed},
		{model.StateRiskReReviewed, model.StateSpecGenerated},
		{model.StateLockedForExport, model.StateQAComplete},
		{model.StateLockedForExport, model.StateCreated},
	}
	for _, tc := range illegal {
		err := CheckTransition(tc.from, tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)

		var ite *InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, tc.from, ite.From)
		assert.Equal(t, tc.to, ite.To)
	}
}

func TestTerminalStateHasNoExits(t *testing.T) {
	for _, to := range []model.MatterState{
		model.StateCreated, model.StateBriefAnalyzed, model.StateClaimsProposed,
		model.StateClaimsApproved, model.StateRiskReviewed, model.StateSpecGenerated,
		model.StateRiskReReviewed, model.StateQAComplete, model.StateLockedForExport,
	} {
		assert.False(t, CanTransition(model.StateLockedForExport, to))
	}
}

func TestApplyCommit_ConditionalAdvance(t *testing.T) {
	// Brief commit from CREATED advances; from anywhere later it is a no-op.
	next, err := ApplyCommit(model.StateCreated, model.KindBrief, CommitInitial)
	require.NoError(t, err)
	assert.Equal(t, model.StateBriefAnalyzed, next)

	next, err = ApplyCommit(model.StateClaimsProposed, model.KindBrief, CommitInitial)
	require.NoError(t, err)
	assert.Equal(t, model.StateClaimsProposed, next)

	// Claims commit only advances out of CLAIMS_PROPOSED.
	next, err = ApplyCommit(model.StateClaimsProposed, model.KindClaimGraph, CommitInitial)
	require.NoError(t, err)
	assert.Equal(t, model.StateClaimsApproved, next)

	next, err = ApplyCommit(model.StateRiskReviewed, model.KindClaimGraph, CommitInitial)
	require.NoError(t, err)
	assert.Equal(t, model.StateRiskReviewed, next)

	// Spec commit works both with and without an intervening risk review.
	for _, from := range []model.MatterState{model.StateRiskReviewed, model.StateClaimsApproved} {
		next, err = ApplyCommit(from, model.KindSpec, CommitInitial)
		require.NoError(t, err)
		assert.Equal(t, model.StateSpecGenerated, next)
	}

	// Re-evaluation commit moves SPEC_GENERATED to RISK_RE_REVIEWED.
	next, err = ApplyCommit(model.StateSpecGenerated, model.KindRisk, CommitReEvaluation)
	require.NoError(t, err)
	assert.Equal(t, model.StateRiskReReviewed, next)
}

func TestApplyCommit_QAStrict(t *testing.T) {
	for _, from := range []model.MatterState{model.StateSpecGenerated, model.StateRiskReReviewed} {
		next, err := ApplyCommit(from, model.KindQAReport, CommitInitial)
		require.NoError(t, err)
		assert.Equal(t, model.StateQAComplete, next)
	}

	// Committing QA on a matter that is not ready, or already locked, fails.
	for _, from := range []model.MatterState{model.StateCreated, model.StateClaimsApproved, model.StateLockedForExport} {
		_, err := ApplyCommit(from, model.KindQAReport, CommitInitial)
		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite, "from %s", from)
		assert.Equal(t, from, ite.From)
	}
}

func TestApplyGeneration(t *testing.T) {
	assert.Equal(t, model.StateBriefAnalyzed, ApplyGeneration(model.StateCreated, model.KindBrief))
	assert.Equal(t, model.StateClaimsProposed, ApplyGeneration(model.StateBriefAnalyzed, model.KindClaimGraph))

	// Regeneration after the matter has advanced does not move it back.
	assert.Equal(t, model.StateClaimsApproved, ApplyGeneration(model.StateClaimsApproved, model.KindClaimGraph))
	// Risk, spec, and QA generation never move the matter.
	assert.Equal(t, model.StateClaimsApproved, ApplyGeneration(model.StateClaimsApproved, model.KindRisk))
	assert.Equal(t, model.StateRiskReviewed, ApplyGeneration(model.StateRiskReviewed, model.KindSpec))
	assert.Equal(t, model.StateSpecGenerated, ApplyGeneration(model.StateSpecGenerated, model.KindQAReport))
}

func TestApplyEdit_ResetsClaimApproval(t *testing.T) {
	assert.Equal(t, model.StateClaimsProposed, ApplyEdit(model.StateClaimsApproved, model.KindClaimGraph))
	assert.Equal(t, model.StateClaimsProposed, ApplyEdit(model.StateClaimsProposed, model.KindClaimGraph))
	assert.Equal(t, model.StateSpecGenerated, ApplyEdit(model.StateSpecGenerated, model.KindSpec))
}
