package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType is the closed set of lifecycle-relevant actions recorded in
// the audit trail.
type AuditEventType string

const (
	AuditBriefUploaded       AuditEventType = "BRIEF_UPLOADED"
	AuditBriefApproved       AuditEventType = "BRIEF_APPROVED"
	AuditClaimsGenerated     AuditEventType = "CLAIMS_GENERATED"
	AuditClaimsCommitted     AuditEventType = "CLAIMS_COMMITTED"
	AuditClaimsEdited        AuditEventType = "CLAIMS_EDITED"
	AuditRiskAnalyzed        AuditEventType = "RISK_ANALYZED"
	AuditRiskCommitted       AuditEventType = "RISK_COMMITTED"
	AuditSpecGenerated       AuditEventType = "SPEC_GENERATED"
	AuditSpecCommitted       AuditEventType = "SPEC_COMMITTED"
	AuditSpecEdited          AuditEventType = "SPEC_EDITED"
	AuditRiskReEvaluated     AuditEventType = "RISK_RE_EVALUATED"
	AuditRiskReEvalCommitted AuditEventType = "RISK_RE_EVAL_COMMITTED"
	AuditQAValidated         AuditEventType = "QA_VALIDATED"
	AuditQACommitted         AuditEventType = "QA_COMMITTED"
	AuditMatterLocked        AuditEventType = "MATTER_LOCKED"
	AuditExportGenerated     AuditEventType = "EXPORT_GENERATED"
)

// AuditEvent is one append-only record of a state-changing operation:
// who acted, on which artifact version, and when. Never mutated or deleted.
type AuditEvent struct {
	ID                uuid.UUID      `json:"id"`
	MatterID          uuid.UUID      `json:"matter_id"`
	EventType         AuditEventType `json:"event_type"`
	ActorID           *uuid.UUID     `json:"actor_id,omitempty"`
	ArtifactVersionID *uuid.UUID     `json:"artifact_version_id,omitempty"`
	ArtifactKind      *ArtifactKind  `json:"artifact_type,omitempty"`
	Detail            map[string]any `json:"detail,omitempty"`
	ContentHash       string         `json:"content_hash"`
	CreatedAt         time.Time      `json:"created_at"`
}

// AuditVerification is the result of recomputing a matter's audit trail
// hashes. MerkleRoot binds the whole trail; a mismatched event means the
// stored row no longer matches the hash recorded at append time.
type AuditVerification struct {
	Verified           bool        `json:"verified"`
	EventCount         int         `json:"event_count"`
	MerkleRoot         string      `json:"merkle_root"`
	MismatchedEventIDs []uuid.UUID `json:"mismatched_event_ids,omitempty"`
}
