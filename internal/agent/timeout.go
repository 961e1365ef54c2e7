package agent

import (
	"context"
	"time"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// WithTimeout wraps a pipeline so every stage call carries its own
// deadline. A zero duration returns the pipeline unchanged.
func WithTimeout(p Pipeline, d time.Duration) Pipeline {
	if d <= 0 {
		return p
	}
	return &timeoutPipeline{inner: p, timeout: d}
}

type timeoutPipeline struct {
	inner   Pipeline
	timeout time.Duration
}

func (t *timeoutPipeline) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func (t *timeoutPipeline) AnalyzeBrief(ctx context.Context, in BriefInput) (model.BriefStructure, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.AnalyzeBrief(ctx, in)
}

func (t *timeoutPipeline) ProposeClaims(ctx context.Context, brief model.BriefStructure, opts ClaimOptions) (model.ClaimGraph, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.ProposeClaims(ctx, brief, opts)
}

func (t *timeoutPipeline) AnalyzeRisk(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph) (model.RiskAnalysis, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.AnalyzeRisk(ctx, brief, graph)
}

func (t *timeoutPipeline) ReEvaluateRisk(ctx context.Context, graph model.ClaimGraph, spec model.SpecDocument) (model.RiskAnalysis, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.ReEvaluateRisk(ctx, graph, spec)
}

func (t *timeoutPipeline) DraftSpec(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph, risk model.RiskAnalysis) (model.SpecDocument, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.DraftSpec(ctx, brief, graph, risk)
}

func (t *timeoutPipeline) ValidateSpec(ctx context.Context, spec model.SpecDocument, graph model.ClaimGraph) (model.QAReport, error) {
	ctx, cancel := t.stage(ctx)
	defer cancel()
	return t.inner.ValidateSpec(ctx, spec, graph)
}
