// Package model defines the core domain types for Tokkyo.
//
// Types correspond directly to database tables and JSONB artifact payloads.
// They use strong typing (UUIDs, time.Time, enums) and avoid interface{}
// wherever possible.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MatterState is a matter's position in the drafting lifecycle.
type MatterState string

const (
	StateCreated         MatterState = "CREATED"
	StateBriefAnalyzed   MatterState = "BRIEF_ANALYZED"
	StateClaimsProposed  MatterState = "CLAIMS_PROPOSED"
	StateClaimsApproved  MatterState = "CLAIMS_APPROVED"
	StateRiskReviewed    MatterState = "RISK_REVIEWED"
	StateSpecGenerated   MatterState = "SPEC_GENERATED"
	StateRiskReReviewed  MatterState = "RISK_RE_REVIEWED"
	StateQAComplete      MatterState = "QA_COMPLETE"
	StateLockedForExport MatterState = "LOCKED_FOR_EXPORT"
)

// MatterType categorizes the application being drafted.
type MatterType string

const (
	MatterTypeUtility     MatterType = "UTILITY"
	MatterTypeDesign      MatterType = "DESIGN"
	MatterTypePlant       MatterType = "PLANT"
	MatterTypeProvisional MatterType = "PROVISIONAL"
)

// Jurisdiction is a patent office a matter targets.
type Jurisdiction string

const (
	JurisdictionUSPTO Jurisdiction = "USPTO"
	JurisdictionEPO   Jurisdiction = "EPO"
	JurisdictionWIPO  Jurisdiction = "WIPO"
	JurisdictionJPO   Jurisdiction = "JPO"
	JurisdictionKIPO  Jurisdiction = "KIPO"
	JurisdictionCNIPA Jurisdiction = "CNIPA"
)

// Matter is the root aggregate: one patent-drafting engagement.
// Status only ever changes through the lifecycle transition table;
// matters are never hard-deleted.
type Matter struct {
	ID                 uuid.UUID   `json:"id"`
	TenantID           uuid.UUID   `json:"tenant_id"`
	AttorneyID         uuid.UUID   `json:"attorney_id"`
	Title              string      `json:"title"`
	ReferenceNumber    *string     `json:"reference_number,omitempty"`
	Description        *string     `json:"description,omitempty"`
	Inventors          []string    `json:"inventors,omitempty"`
	Assignee           *string     `json:"assignee,omitempty"`
	TechDomain         *string     `json:"tech_domain,omitempty"`
	MatterType         MatterType  `json:"matter_type"`
	Jurisdictions      []string    `json:"jurisdictions,omitempty"`
	Status             MatterState `json:"status"`
	DefensibilityScore *int        `json:"defensibility_score,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
