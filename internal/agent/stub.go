package agent

import (
	"context"
	"fmt"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// StubPipeline produces deterministic artifacts without calling any
// provider. Used in tests and in local development when no API key is
// configured. Fail, when set, makes every stage return a FailureError.
type StubPipeline struct {
	Fail bool
}

var _ Pipeline = (*StubPipeline)(nil)

func (s *StubPipeline) fail(stage string) error {
	return &FailureError{Stage: stage, Err: fmt.Errorf("stub configured to fail")}
}

func (s *StubPipeline) AnalyzeBrief(_ context.Context, in BriefInput) (model.BriefStructure, error) {
	if s.Fail {
		return model.BriefStructure{}, s.fail("brief_analysis")
	}
	return model.BriefStructure{
		CoreInventionStatement:   "A method for processing input data.",
		TechnicalField:           in.TechDomain,
		ProblemStatement:         "Existing approaches process input data inefficiently.",
		TechnicalSolutionSummary: "Receive input data and process it with a controller.",
		SystemComponents: []model.SystemComponent{
			{Name: "controller", Description: "Coordinates the described process."},
		},
		MethodSteps: []model.MethodStep{
			{StepID: "S1", Description: "Receive input data."},
			{StepID: "S2", Description: "Process input data."},
		},
	}, nil
}

func (s *StubPipeline) ProposeClaims(_ context.Context, _ model.BriefStructure, opts ClaimOptions) (model.ClaimGraph, error) {
	if s.Fail {
		return model.ClaimGraph{}, s.fail("claims_proposal")
	}
	n := opts.ClaimCount
	if n < 2 {
		n = 3
	}
	nodes := []model.ClaimNode{{
		ID:           "1",
		Type:         model.ClaimIndependent,
		Text:         "A method comprising receiving input data and processing the input data.",
		Dependencies: []string{},
		Category:     model.CategoryMethod,
	}}
	for i := 2; i <= n; i++ {
		nodes = append(nodes, model.ClaimNode{
			ID:           fmt.Sprintf("%d", i),
			Type:         model.ClaimDependent,
			Text:         fmt.Sprintf("The method of claim 1, further comprising step %d.", i),
			Dependencies: []string{"1"},
			Category:     model.CategoryMethod,
		})
	}
	return model.ClaimGraph{Nodes: nodes}, nil
}

func (s *StubPipeline) AnalyzeRisk(_ context.Context, _ model.BriefStructure, graph model.ClaimGraph) (model.RiskAnalysis, error) {
	if s.Fail {
		return model.RiskAnalysis{}, s.fail("risk_analysis")
	}
	return model.RiskAnalysis{
		DefensibilityScore: 72,
		Findings: []model.RiskFinding{{
			ID:             "RF-1",
			ClaimID:        "1",
			Category:       "breadth",
			Severity:       "medium",
			Title:          "Broad independent claim",
			Description:    "Independent claim may read on prior art.",
			Recommendation: "Narrow the processing limitation.",
		}},
		Summary: fmt.Sprintf("Reviewed %d claims.", len(graph.Nodes)),
	}, nil
}

func (s *StubPipeline) ReEvaluateRisk(_ context.Context, graph model.ClaimGraph, _ model.SpecDocument) (model.RiskAnalysis, error) {
	if s.Fail {
		return model.RiskAnalysis{}, s.fail("risk_re_evaluation")
	}
	return model.RiskAnalysis{
		DefensibilityScore: 78,
		Summary:            fmt.Sprintf("Re-evaluated %d claims against the specification.", len(graph.Nodes)),
	}, nil
}

func (s *StubPipeline) DraftSpec(_ context.Context, brief model.BriefStructure, graph model.ClaimGraph, _ model.RiskAnalysis) (model.SpecDocument, error) {
	if s.Fail {
		return model.SpecDocument{}, s.fail("spec_drafting")
	}
	coverage := make(map[string][]string, len(graph.Nodes))
	paragraphs := make([]model.SpecParagraph, 0, len(graph.Nodes))
	for i, node := range graph.Nodes {
		pid := fmt.Sprintf("P%03d", i+1)
		coverage[node.ID] = []string{pid}
		paragraphs = append(paragraphs, model.SpecParagraph{
			ID:              pid,
			Section:         model.SectionDetailed,
			Text:            fmt.Sprintf("Support for claim %s.", node.ID),
			ClaimReferences: []string{node.ID},
		})
	}
	return model.SpecDocument{
		Title:         brief.CoreInventionStatement,
		Sections:      paragraphs,
		ClaimCoverage: coverage,
	}, nil
}

func (s *StubPipeline) ValidateSpec(_ context.Context, spec model.SpecDocument, graph model.ClaimGraph) (model.QAReport, error) {
	if s.Fail {
		return model.QAReport{}, s.fail("qa_validation")
	}
	var findings []model.QAFinding
	errs := 0
	for _, node := range graph.Nodes {
		if len(spec.ClaimCoverage[node.ID]) == 0 {
			errs++
			id := node.ID
			findings = append(findings, model.QAFinding{
				ID:          fmt.Sprintf("QA-%d", errs),
				Category:    "claim_support",
				Severity:    "error",
				ClaimID:     &id,
				Title:       "Unsupported claim",
				Description: fmt.Sprintf("Claim %s has no supporting paragraphs.", node.ID),
			})
		}
	}
	score := 100
	if len(graph.Nodes) > 0 {
		score = (len(graph.Nodes) - errs) * 100 / len(graph.Nodes)
	}
	return model.QAReport{
		SupportCoverageScore: score,
		TotalErrors:          errs,
		Findings:             findings,
		Summary:              fmt.Sprintf("Validated %d claims.", len(graph.Nodes)),
		CanExport:            errs == 0,
	}, nil
}
