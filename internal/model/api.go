package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response for request correlation.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes returned in the ErrorDetail envelope.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeMissingApproval    = "MISSING_APPROVAL"
	ErrCodeCircularDependency = "CIRCULAR_DEPENDENCY"
	ErrCodeUnknownDependency  = "UNKNOWN_DEPENDENCY"
	ErrCodeSelfDependency     = "SELF_DEPENDENCY"
	ErrCodeDependentNeedsDep  = "DEPENDENT_REQUIRES_DEPENDENCY"
	ErrCodeNoChange           = "NO_CHANGE"
	ErrCodeBlockedByErrors    = "BLOCKED_BY_ERRORS"
	ErrCodeAgentFailure       = "AGENT_FAILURE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// CreateMatterRequest is the body of POST /v1/matters.
type CreateMatterRequest struct {
	Title           string   `json:"title" validate:"required,max=500"`
	ReferenceNumber *string  `json:"reference_number,omitempty" validate:"omitempty,max=100"`
	Description     *string  `json:"description,omitempty"`
	Inventors       []string `json:"inventors,omitempty"`
	Assignee        *string  `json:"assignee,omitempty"`
	TechDomain      *string  `json:"tech_domain,omitempty"`
	MatterType      string   `json:"matter_type,omitempty" validate:"omitempty,oneof=UTILITY DESIGN PLANT PROVISIONAL"`
	Jurisdictions   []string `json:"jurisdictions,omitempty" validate:"dive,oneof=USPTO EPO WIPO JPO KIPO CNIPA"`
}

// UpdateStatusRequest is the body of the manual transition endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AnalyzeBriefRequest is the body of POST .../brief/analyze.
type AnalyzeBriefRequest struct {
	SourceText string `json:"source_text" validate:"required"`
}

// GenerateClaimsRequest optionally pins the brief version to draft from.
type GenerateClaimsRequest struct {
	BriefVersionID *uuid.UUID `json:"brief_version_id,omitempty"`
}

// EditClaimRequest is a partial patch of one claim node. Nil fields are
// left untouched; an all-nil patch is rejected with NO_CHANGE.
type EditClaimRequest struct {
	Type         *string  `json:"type,omitempty" validate:"omitempty,oneof=independent dependent"`
	Text         *string  `json:"text,omitempty"`
	Category     *string  `json:"category,omitempty" validate:"omitempty,oneof=method system apparatus crm"`
	Dependencies []string `json:"dependencies,omitempty"`

	// DependenciesSet distinguishes "clear the list" from "not provided".
	DependenciesSet bool `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (r EditClaimRequest) Empty() bool {
	return r.Type == nil && r.Text == nil && r.Category == nil && !r.DependenciesSet
}

// UnmarshalJSON records whether the dependencies key was present so an
// explicit empty list (clear all dependencies) is distinguishable from an
// omitted one.
func (r *EditClaimRequest) UnmarshalJSON(data []byte) error {
	type alias EditClaimRequest
	aux := struct {
		Dependencies *[]string `json:"dependencies,omitempty"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Dependencies != nil {
		r.Dependencies = *aux.Dependencies
		r.DependenciesSet = true
	}
	return nil
}

// AddClaimRequest is the body of POST .../claims/{version_id}/nodes.
type AddClaimRequest struct {
	Type         string   `json:"type" validate:"required,oneof=independent dependent"`
	Text         string   `json:"text" validate:"required"`
	Category     string   `json:"category,omitempty" validate:"omitempty,oneof=method system apparatus crm"`
	Dependencies []string `json:"dependencies,omitempty"`
	MirrorSource *string  `json:"mirror_source,omitempty"`
}

// AnalyzeRiskRequest optionally pins the claim version to analyze.
type AnalyzeRiskRequest struct {
	ClaimVersionID *uuid.UUID `json:"claim_version_id,omitempty"`
}

// GenerateSpecRequest optionally pins the input versions.
type GenerateSpecRequest struct {
	ClaimVersionID *uuid.UUID `json:"claim_version_id,omitempty"`
	RiskVersionID  *uuid.UUID `json:"risk_version_id,omitempty"`
}

// EditParagraphRequest replaces the text of one spec paragraph.
type EditParagraphRequest struct {
	Text string `json:"text" validate:"required"`
}

// ValidateQARequest optionally pins the input versions.
type ValidateQARequest struct {
	ClaimVersionID *uuid.UUID `json:"claim_version_id,omitempty"`
	SpecVersionID  *uuid.UUID `json:"spec_version_id,omitempty"`
}

// AuthTokenRequest exchanges an API key for a JWT.
type AuthTokenRequest struct {
	Email  string `json:"email" validate:"required,email"`
	APIKey string `json:"api_key" validate:"required"`
}

// AuthTokenResponse carries the issued JWT.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User is an attorney or staff account. Authentication detail beyond what
// the audit trail needs lives with the auth collaborator.
type User struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRole controls what a caller may do with a matter.
type UserRole string

// Roles for attorneys and staff.
const (
	RoleAttorney  UserRole = "attorney"
	RoleParalegal UserRole = "paralegal"
	RoleAdmin     UserRole = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleAttorney, RoleParalegal, RoleAdmin:
		return true
	}
	return false
}
