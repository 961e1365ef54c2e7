// Package agent defines the drafting pipeline's generation stages and an
// OpenAI-backed implementation. Each stage is pure with respect to storage:
// it takes artifact payloads in and returns a new payload or an error, and
// callers persist nothing when a stage fails.
package agent

import (
	"context"
	"fmt"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// FailureError wraps an upstream generation failure. Handlers map it to a
// 502 with the AGENT_FAILURE code; the wrapped error keeps the provider's
// message for logs.
type FailureError struct {
	Stage string
	Err   error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("agent: %s failed: %v", e.Stage, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// BriefInput is the raw invention disclosure to structure.
type BriefInput struct {
	Text         string
	TechDomain   string
	Instructions string
}

// ClaimOptions steers claim proposal.
type ClaimOptions struct {
	ClaimCount   int
	Categories   []model.ClaimCategory
	Instructions string
}

// BriefAnalyzer structures a raw invention disclosure into a brief.
type BriefAnalyzer interface {
	AnalyzeBrief(ctx context.Context, in BriefInput) (model.BriefStructure, error)
}

// ClaimsArchitect proposes a claim graph from an approved brief.
type ClaimsArchitect interface {
	ProposeClaims(ctx context.Context, brief model.BriefStructure, opts ClaimOptions) (model.ClaimGraph, error)
}

// RiskAnalyst scores a claim graph against a brief, and re-evaluates it
// against a drafted specification.
type RiskAnalyst interface {
	AnalyzeRisk(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph) (model.RiskAnalysis, error)
	ReEvaluateRisk(ctx context.Context, graph model.ClaimGraph, spec model.SpecDocument) (model.RiskAnalysis, error)
}

// SpecDrafter drafts a full specification from the approved claim graph.
type SpecDrafter interface {
	DraftSpec(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph, risk model.RiskAnalysis) (model.SpecDocument, error)
}

// QAValidator checks a drafted specification against its claim graph.
type QAValidator interface {
	ValidateSpec(ctx context.Context, spec model.SpecDocument, graph model.ClaimGraph) (model.QAReport, error)
}

// ContextRetriever supplies prior-art passages for the risk stages. The
// retrieval system lives outside this service; implementations call it
// over its own API. NopRetriever is used when none is configured.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]string, error)
}

// Pipeline bundles every stage behind one value for dependency injection.
type Pipeline interface {
	BriefAnalyzer
	ClaimsArchitect
	RiskAnalyst
	SpecDrafter
	QAValidator
}

// NopRetriever returns no context passages.
type NopRetriever struct{}

func (NopRetriever) Retrieve(context.Context, string, int) ([]string, error) { return nil, nil }
