// Package lifecycle enforces the matter drafting lifecycle.
//
// Two declarative tables live here: the legal-transition table consulted by
// every status change, and the commit-transition table that maps an artifact
// commit to its conditional state advance. Keeping both in one place makes
// the workflow auditable instead of scattering target states across the
// per-artifact services.
package lifecycle

import (
	"fmt"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// InvalidTransitionError reports an attempted transition absent from the
// table. The matter's state is left unchanged.
type InvalidTransitionError struct {
	From model.MatterState
	To   model.MatterState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition from %s to %s", e.From, e.To)
}

// transitions is the exhaustive legal-transition table. The lifecycle is
// linear from CREATED to LOCKED_FOR_EXPORT with three backward edges:
// claims editing invalidates approval, risk review can send claims back,
// and QA failures reopen the spec.
var transitions = map[model.MatterState][]model.MatterState{
	model.StateCreated:        {model.StateBriefAnalyzed},
	model.StateBriefAnalyzed:  {model.StateClaimsProposed},
	model.StateClaimsProposed: {model.StateClaimsApproved, model.StateBriefAnalyzed},
	model.StateClaimsApproved: {model.StateRiskReviewed, model.StateSpecGenerated},
	model.StateRiskReviewed:   {model.StateSpecGenerated, model.StateClaimsApproved},
	model.StateSpecGenerated:  {model.StateQAComplete, model.StateRiskReReviewed},
	model.StateRiskReReviewed: {model.StateQAComplete},
	model.StateQAComplete:     {model.StateLockedForExport, model.StateSpecGenerated},
	// LOCKED_FOR_EXPORT is terminal.
	model.StateLockedForExport: {},
}

// CanTransition reports whether from → to is present in the table.
func CanTransition(from, to model.MatterState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns nil if from → to is legal and an
// InvalidTransitionError otherwise.
func CheckTransition(from, to model.MatterState) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// ValidState reports whether s names a known lifecycle state.
func ValidState(s model.MatterState) bool {
	_, ok := transitions[s]
	return ok
}

// CommitEvent distinguishes the two commit paths an artifact kind can have.
// Only risk has more than one: the initial review and the post-spec
// re-evaluation.
type CommitEvent string

const (
	CommitInitial      CommitEvent = "initial"
	CommitReEvaluation CommitEvent = "re_evaluation"
)

// CommitRule describes the conditional state advance for one
// (kind, commit event) pair: if the matter currently sits in one of the
// From states, committing moves it to To. A matter in any other state is
// left alone unless Strict is set, in which case the commit itself is
// rejected with InvalidTransitionError.
type CommitRule struct {
	From   []model.MatterState
	To     model.MatterState
	Event  model.AuditEventType
	Strict bool
}

type commitKey struct {
	kind  model.ArtifactKind
	event CommitEvent
}

// commitRules is the declarative (artifact kind, commit event) →
// conditional transition table consulted by the shared commit path.
var commitRules = map[commitKey]CommitRule{
	{model.KindBrief, CommitInitial}: {
		From:  []model.MatterState{model.StateCreated},
		To:    model.StateBriefAnalyzed,
		Event: model.AuditBriefApproved,
	},
	{model.KindClaimGraph, CommitInitial}: {
		From:  []model.MatterState{model.StateClaimsProposed},
		To:    model.StateClaimsApproved,
		Event: model.AuditClaimsCommitted,
	},
	{model.KindRisk, CommitInitial}: {
		From:  []model.MatterState{model.StateClaimsApproved},
		To:    model.StateRiskReviewed,
		Event: model.AuditRiskCommitted,
	},
	{model.KindSpec, CommitInitial}: {
		From:  []model.MatterState{model.StateRiskReviewed, model.StateClaimsApproved},
		To:    model.StateSpecGenerated,
		Event: model.AuditSpecCommitted,
	},
	{model.KindRisk, CommitReEvaluation}: {
		From:  []model.MatterState{model.StateSpecGenerated},
		To:    model.StateRiskReReviewed,
		Event: model.AuditRiskReEvalCommitted,
	},
	// The QA gate is strict: a matter that is not ready for, or has moved
	// beyond, QA must not acquire an authoritative report.
	{model.KindQAReport, CommitInitial}: {
		From:   []model.MatterState{model.StateSpecGenerated, model.StateRiskReReviewed},
		To:     model.StateQAComplete,
		Event:  model.AuditQACommitted,
		Strict: true,
	},
}

// CommitRuleFor returns the commit rule for the given kind and event.
func CommitRuleFor(kind model.ArtifactKind, event CommitEvent) (CommitRule, bool) {
	r, ok := commitRules[commitKey{kind, event}]
	return r, ok
}

// ApplyCommit resolves the state a matter should hold after committing the
// given artifact kind. It returns the new state (possibly unchanged) or an
// InvalidTransitionError for strict rules when the matter is not in an
// eligible state.
func ApplyCommit(current model.MatterState, kind model.ArtifactKind, event CommitEvent) (model.MatterState, error) {
	rule, ok := commitRules[commitKey{kind, event}]
	if !ok {
		return current, nil
	}
	for _, from := range rule.From {
		if current == from {
			return rule.To, nil
		}
	}
	if rule.Strict {
		return current, &InvalidTransitionError{From: current, To: rule.To}
	}
	return current, nil
}

// generationRules maps an artifact kind to the state advance its generation
// implies. Only brief analysis and claims proposal move the matter; the
// later pipelines advance on commit.
var generationRules = map[model.ArtifactKind]CommitRule{
	model.KindBrief: {
		From: []model.MatterState{model.StateCreated},
		To:   model.StateBriefAnalyzed,
	},
	model.KindClaimGraph: {
		From: []model.MatterState{model.StateBriefAnalyzed},
		To:   model.StateClaimsProposed,
	},
}

// ApplyGeneration resolves the state a matter should hold after a new
// version of the given kind is generated. Never an error: generation in a
// non-eligible state simply leaves the matter where it is.
func ApplyGeneration(current model.MatterState, kind model.ArtifactKind) model.MatterState {
	rule, ok := generationRules[kind]
	if !ok {
		return current
	}
	for _, from := range rule.From {
		if current == from {
			return rule.To
		}
	}
	return current
}

// ApplyEdit resolves the state after a structural edit of the given kind.
// Editing claims while approved invalidates the approval.
func ApplyEdit(current model.MatterState, kind model.ArtifactKind) model.MatterState {
	if kind == model.KindClaimGraph && current == model.StateClaimsApproved {
		return model.StateClaimsProposed
	}
	return current
}
