package model

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind identifies one of the five versioned drafting artifacts.
type ArtifactKind string

const (
	KindBrief      ArtifactKind = "brief"
	KindClaimGraph ArtifactKind = "claims"
	KindRisk       ArtifactKind = "risk"
	KindSpec       ArtifactKind = "spec"
	KindQAReport   ArtifactKind = "qa"
)

// Kinds lists every artifact kind in pipeline order.
var Kinds = []ArtifactKind{KindBrief, KindClaimGraph, KindRisk, KindSpec, KindQAReport}

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindBrief, KindClaimGraph, KindRisk, KindSpec, KindQAReport:
		return true
	}
	return false
}

// ArtifactVersion is one immutable entry in a matter's per-kind version
// history. Payload is the kind-specific JSONB document. Versions are never
// updated in place after creation except for the authoritative flag;
// structural edits always clone into a brand-new version.
type ArtifactVersion struct {
	ID              uuid.UUID    `json:"id"`
	MatterID        uuid.UUID    `json:"matter_id"`
	Kind            ArtifactKind `json:"kind"`
	VersionNumber   int          `json:"version_number"`
	Description     *string      `json:"description,omitempty"`
	IsAuthoritative bool         `json:"is_authoritative"`
	Payload         []byte       `json:"payload"`

	// Cross-references to the versions that informed this one.
	// Risk references the claim graph it analyzed; spec references claims
	// and risk; QA references claims and spec; a risk re-evaluation also
	// references the spec it re-assessed.
	ClaimVersionID *uuid.UUID `json:"claim_version_id,omitempty"`
	RiskVersionID  *uuid.UUID `json:"risk_version_id,omitempty"`
	SpecVersionID  *uuid.UUID `json:"spec_version_id,omitempty"`

	// SourceHash is set for briefs only: SHA-256 of the uploaded material,
	// used for change detection.
	SourceHash *string `json:"source_material_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CrossRefs carries the optional informing-version pointers supplied at
// version creation.
type CrossRefs struct {
	ClaimVersionID *uuid.UUID
	RiskVersionID  *uuid.UUID
	SpecVersionID  *uuid.UUID
}
