package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkstreamType identifies the workflow a workstream tracks. Only
// DRAFTING_APPLICATION workstreams are created by the drafting core.
type WorkstreamType string

const (
	WorkstreamDrafting     WorkstreamType = "DRAFTING_APPLICATION"
	WorkstreamOfficeAction WorkstreamType = "OFFICE_ACTION_RESPONSE"
	WorkstreamIDRReview    WorkstreamType = "IDR_REVIEW"
)

// WorkstreamStatus is the coarse progress of a workstream.
type WorkstreamStatus string

const (
	WorkstreamInProgress WorkstreamStatus = "IN_PROGRESS"
	WorkstreamOnHold     WorkstreamStatus = "ON_HOLD"
	WorkstreamCompleted  WorkstreamStatus = "COMPLETED"
)

// Workstream holds the five head pointers: the currently active version of
// each artifact kind for a matter. Pointers move forward on every
// generation, edit, and commit; they are an indirection between "latest
// produced" and "what the UI shows". Created lazily on first artifact
// generation, never deleted while the matter exists.
type Workstream struct {
	ID       uuid.UUID        `json:"id"`
	MatterID uuid.UUID        `json:"matter_id"`
	Name     string           `json:"name"`
	Type     WorkstreamType   `json:"workstream_type"`
	Status   WorkstreamStatus `json:"status"`

	ActiveBriefVersionID *uuid.UUID `json:"active_brief_version_id,omitempty"`
	ActiveClaimVersionID *uuid.UUID `json:"active_claim_version_id,omitempty"`
	ActiveRiskVersionID  *uuid.UUID `json:"active_risk_version_id,omitempty"`
	ActiveSpecVersionID  *uuid.UUID `json:"active_spec_version_id,omitempty"`
	ActiveQAVersionID    *uuid.UUID `json:"active_qa_version_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveVersionID returns the head pointer for the given kind.
func (w *Workstream) ActiveVersionID(kind ArtifactKind) *uuid.UUID {
	switch kind {
	case KindBrief:
		return w.ActiveBriefVersionID
	case KindClaimGraph:
		return w.ActiveClaimVersionID
	case KindRisk:
		return w.ActiveRiskVersionID
	case KindSpec:
		return w.ActiveSpecVersionID
	case KindQAReport:
		return w.ActiveQAVersionID
	}
	return nil
}
