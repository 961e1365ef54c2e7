package model

// Artifact payload documents. Each is stored as the JSONB payload of the
// matching ArtifactVersion kind and produced either by an agent pipeline or
// by a structural edit.

// BriefStructure is the structured invention brief produced by the brief
// analysis pipeline (kind "brief").
type BriefStructure struct {
	CoreInventionStatement   string            `json:"core_invention_statement"`
	TechnicalField           string            `json:"technical_field"`
	ProblemStatement         string            `json:"problem_statement"`
	TechnicalSolutionSummary string            `json:"technical_solution_summary"`
	SystemComponents         []SystemComponent `json:"system_components,omitempty"`
	MethodSteps              []MethodStep      `json:"method_steps,omitempty"`
	Variants                 []Variant         `json:"variants,omitempty"`
	TechnicalEffects         []string          `json:"technical_effects,omitempty"`
	DataElements             []DataElement     `json:"data_elements,omitempty"`
}

// SystemComponent is one structural element of the invention.
type SystemComponent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Optional    bool   `json:"optional,omitempty"`
}

// MethodStep is one ordered step of the inventive method.
type MethodStep struct {
	StepID      string `json:"step_id"`
	Description string `json:"description"`
}

// Variant is an alternative embodiment.
type Variant struct {
	Description string `json:"description"`
}

// DataElement is a named datum the invention manipulates.
type DataElement struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ClaimType distinguishes independent from dependent claims.
type ClaimType string

const (
	ClaimIndependent ClaimType = "independent"
	ClaimDependent   ClaimType = "dependent"
)

// ClaimCategory is the statutory category a claim is drafted in.
type ClaimCategory string

const (
	CategoryMethod    ClaimCategory = "method"
	CategorySystem    ClaimCategory = "system"
	CategoryApparatus ClaimCategory = "apparatus"
	CategoryCRM       ClaimCategory = "crm"
)

// ClaimNode is one claim in the dependency graph. IDs are sequential
// integers-as-strings and are reassigned on every structural delete.
// MirrorSource points at the node in a different category this one
// parallels, for traceability.
type ClaimNode struct {
	ID           string        `json:"id"`
	Type         ClaimType     `json:"type"`
	Text         string        `json:"text"`
	Dependencies []string      `json:"dependencies"`
	Category     ClaimCategory `json:"category,omitempty"`
	MirrorSource *string       `json:"mirror_source,omitempty"`
}

// ClaimGraph is the claim set payload (kind "claims"). The dependency
// relation over nodes present in the graph must be acyclic.
type ClaimGraph struct {
	Nodes     []ClaimNode `json:"nodes"`
	RiskScore *int        `json:"risk_score,omitempty"`
}

// NodeIDs returns the set of node IDs present in the graph.
func (g ClaimGraph) NodeIDs() map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

// RiskFinding is one litigation vulnerability identified in a claim.
type RiskFinding struct {
	ID             string `json:"id"`
	ClaimID        string `json:"claim_id"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// RiskAnalysis is the risk pipeline payload (kind "risk").
type RiskAnalysis struct {
	DefensibilityScore int           `json:"defensibility_score"`
	Findings           []RiskFinding `json:"findings"`
	Summary            string        `json:"summary"`
}

// SpecSection names the standard specification sections.
type SpecSection string

const (
	SectionTechnicalField SpecSection = "technical_field"
	SectionBackground     SpecSection = "background"
	SectionSummary        SpecSection = "summary"
	SectionDrawings       SpecSection = "brief_description_of_drawings"
	SectionDetailed       SpecSection = "detailed_description"
	SectionDefinitions    SpecSection = "definitions"
	SectionAbstract       SpecSection = "abstract"
)

// SpecParagraph is one paragraph of the specification document with the
// claim IDs it supports.
type SpecParagraph struct {
	ID              string      `json:"id"`
	Section         SpecSection `json:"section"`
	Text            string      `json:"text"`
	ClaimReferences []string    `json:"claim_references,omitempty"`
}

// SpecDocument is the specification payload (kind "spec").
type SpecDocument struct {
	Title         string              `json:"title"`
	Sections      []SpecParagraph     `json:"sections"`
	ClaimCoverage map[string][]string `json:"claim_coverage,omitempty"`
}

// QAFinding is one structural issue found during QA validation.
type QAFinding struct {
	ID             string  `json:"id"`
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	ClaimID        *string `json:"claim_id,omitempty"`
	Location       string  `json:"location"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

// QAReport is the QA pipeline payload (kind "qa"). CanExport is true only
// when TotalErrors == 0; committing a report with CanExport false is
// rejected.
type QAReport struct {
	SupportCoverageScore int         `json:"support_coverage_score"`
	TotalErrors          int         `json:"total_errors"`
	TotalWarnings        int         `json:"total_warnings"`
	Findings             []QAFinding `json:"findings"`
	Summary              string      `json:"summary"`
	CanExport            bool        `json:"can_export"`
}
