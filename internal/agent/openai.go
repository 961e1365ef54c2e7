package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// OpenAIPipeline implements every drafting stage over the OpenAI chat
// completions API. All stages request a JSON object response and decode it
// into the stage's payload type; any transport, quota, or decode failure
// surfaces as a FailureError and nothing is persisted.
type OpenAIPipeline struct {
	client    *openai.Client
	model     string
	retriever ContextRetriever
	logger    *slog.Logger
}

// NewOpenAIPipeline builds a pipeline. Model defaults to gpt-4o when empty;
// retriever may be nil, in which case risk stages run without prior-art
// context.
func NewOpenAIPipeline(apiKey, modelName string, retriever ContextRetriever, logger *slog.Logger) *OpenAIPipeline {
	if modelName == "" {
		modelName = openai.GPT4o
	}
	if retriever == nil {
		retriever = NopRetriever{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIPipeline{
		client:    openai.NewClient(apiKey),
		model:     modelName,
		retriever: retriever,
		logger:    logger,
	}
}

func (p *OpenAIPipeline) complete(ctx context.Context, stage, system, user string, out any) error {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return &FailureError{Stage: stage, Err: err}
	}
	if len(resp.Choices) == 0 {
		return &FailureError{Stage: stage, Err: fmt.Errorf("no choices returned")}
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		p.logger.Warn("agent: undecodable stage output",
			"stage", stage, "finish_reason", resp.Choices[0].FinishReason)
		return &FailureError{Stage: stage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

const briefSystem = `You are a patent attorney's technical analyst. Read an invention
disclosure and return a JSON object with fields: core_invention_statement,
technical_field, problem_statement, technical_solution_summary, system_components
(array of {name, description, optional}), method_steps (array of {step_id,
description} with step_id "S1".."Sn"), variants (array of {description}),
technical_effects (array of strings), data_elements (array of {name, description}).
Be faithful to the disclosure; do not invent features.`

func (p *OpenAIPipeline) AnalyzeBrief(ctx context.Context, in BriefInput) (model.BriefStructure, error) {
	var sb strings.Builder
	if in.TechDomain != "" {
		fmt.Fprintf(&sb, "Technical domain: %s\n\n", in.TechDomain)
	}
	if in.Instructions != "" {
		fmt.Fprintf(&sb, "Attorney instructions: %s\n\n", in.Instructions)
	}
	sb.WriteString("Invention disclosure:\n")
	sb.WriteString(in.Text)

	var brief model.BriefStructure
	if err := p.complete(ctx, "brief_analysis", briefSystem, sb.String(), &brief); err != nil {
		return model.BriefStructure{}, err
	}
	return brief, nil
}

const claimsSystem = `You are a patent claims architect. Given a structured invention
brief, return a JSON object {"nodes": [...]} where each node is {id, type, text,
dependencies, category, mirror_source}. Ids are "1".."N" in order. Type is
"independent" or "dependent"; independent claims have empty dependencies, dependent
claims have at least one. Category is one of method, system, apparatus, crm. Mirror
claims reference the id they mirror in mirror_source, otherwise omit it. Claims must
form an acyclic dependency graph.`

func (p *OpenAIPipeline) ProposeClaims(ctx context.Context, brief model.BriefStructure, opts ClaimOptions) (model.ClaimGraph, error) {
	var sb strings.Builder
	if opts.ClaimCount > 0 {
		fmt.Fprintf(&sb, "Target claim count: %d\n", opts.ClaimCount)
	}
	if len(opts.Categories) > 0 {
		cats := make([]string, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = string(c)
		}
		fmt.Fprintf(&sb, "Claim categories to cover: %s\n", strings.Join(cats, ", "))
	}
	if opts.Instructions != "" {
		fmt.Fprintf(&sb, "Attorney instructions: %s\n", opts.Instructions)
	}
	sb.WriteString("\nStructured brief:\n")
	writeJSON(&sb, brief)

	var graph model.ClaimGraph
	if err := p.complete(ctx, "claims_proposal", claimsSystem, sb.String(), &graph); err != nil {
		return model.ClaimGraph{}, err
	}
	return graph, nil
}

const riskSystem = `You are a patent risk analyst. Score the claim set's litigation
defensibility from 0 to 100 and list findings. Return a JSON object
{defensibility_score, findings, summary} where each finding is {id, claim_id,
category, severity, title, description, recommendation} with severity one of low,
medium, high, critical.`

func (p *OpenAIPipeline) AnalyzeRisk(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph) (model.RiskAnalysis, error) {
	var sb strings.Builder
	sb.WriteString("Structured brief:\n")
	writeJSON(&sb, brief)
	sb.WriteString("\nClaim graph:\n")
	writeJSON(&sb, graph)
	p.appendPriorArt(ctx, &sb, brief.CoreInventionStatement)

	var risk model.RiskAnalysis
	if err := p.complete(ctx, "risk_analysis", riskSystem, sb.String(), &risk); err != nil {
		return model.RiskAnalysis{}, err
	}
	return risk, nil
}

const riskReEvalSystem = `You are a patent risk analyst re-evaluating claims after the
full specification was drafted. Judge whether the specification's support changes the
defensibility of each claim. Return a JSON object {defensibility_score, findings,
summary} in the same shape as an initial risk analysis.`

func (p *OpenAIPipeline) ReEvaluateRisk(ctx context.Context, graph model.ClaimGraph, spec model.SpecDocument) (model.RiskAnalysis, error) {
	var sb strings.Builder
	sb.WriteString("Claim graph:\n")
	writeJSON(&sb, graph)
	sb.WriteString("\nDrafted specification:\n")
	writeJSON(&sb, spec)
	p.appendPriorArt(ctx, &sb, spec.Title)

	var risk model.RiskAnalysis
	if err := p.complete(ctx, "risk_re_evaluation", riskReEvalSystem, sb.String(), &risk); err != nil {
		return model.RiskAnalysis{}, err
	}
	return risk, nil
}

const specSystem = `You are a patent specification drafter. Draft a complete
specification supporting every claim. Return a JSON object {title, sections,
claim_coverage} where sections is a flat array of paragraphs {id, section, text,
claim_references}; id is "P001".."Pnnn" in document order and section is one of
technical_field, background, summary, brief_description_of_drawings,
detailed_description, definitions, abstract. claim_coverage maps each claim id to the
paragraph ids supporting it. Every claim id must appear in claim_coverage.`

func (p *OpenAIPipeline) DraftSpec(ctx context.Context, brief model.BriefStructure, graph model.ClaimGraph, risk model.RiskAnalysis) (model.SpecDocument, error) {
	var sb strings.Builder
	sb.WriteString("Structured brief:\n")
	writeJSON(&sb, brief)
	sb.WriteString("\nClaim graph:\n")
	writeJSON(&sb, graph)
	sb.WriteString("\nRisk findings to address in drafting:\n")
	writeJSON(&sb, risk.Findings)

	var spec model.SpecDocument
	if err := p.complete(ctx, "spec_drafting", specSystem, sb.String(), &spec); err != nil {
		return model.SpecDocument{}, err
	}
	return spec, nil
}

const qaSystem = `You are a patent QA reviewer. Check the specification against the
claim graph: every claim term must be supported by at least one paragraph, antecedent
basis must be consistent, and claim_coverage must be complete. Return a JSON object
{support_coverage_score, total_errors, total_warnings, findings, summary, can_export}
where each finding is {id, category, severity, claim_id, location, title, description,
recommendation} with severity "error" or "warning".`

func (p *OpenAIPipeline) ValidateSpec(ctx context.Context, spec model.SpecDocument, graph model.ClaimGraph) (model.QAReport, error) {
	var sb strings.Builder
	sb.WriteString("Claim graph:\n")
	writeJSON(&sb, graph)
	sb.WriteString("\nSpecification:\n")
	writeJSON(&sb, spec)

	var report model.QAReport
	if err := p.complete(ctx, "qa_validation", qaSystem, sb.String(), &report); err != nil {
		return model.QAReport{}, err
	}
	// The export gate is recomputed here rather than trusted from the
	// upstream output.
	report.CanExport = report.TotalErrors == 0
	return report, nil
}

// appendPriorArt fetches retrieval context and appends it to the prompt.
// Retrieval failures degrade to no context rather than failing the stage.
func (p *OpenAIPipeline) appendPriorArt(ctx context.Context, sb *strings.Builder, query string) {
	passages, err := p.retriever.Retrieve(ctx, query, 5)
	if err != nil {
		p.logger.Warn("agent: prior-art retrieval failed, continuing without context", "error", err)
		return
	}
	if len(passages) == 0 {
		return
	}
	sb.WriteString("\nPrior-art context:\n")
	for _, passage := range passages {
		sb.WriteString("- ")
		sb.WriteString(passage)
		sb.WriteString("\n")
	}
}

func writeJSON(sb *strings.Builder, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		sb.WriteString("{}")
		return
	}
	sb.Write(b)
}
