package ai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/okonev/careerdojo/internal/domain"
	"github.com/okonev/careerdojo/internal/sim"
)

// Service exposes the typed generation operations the simulation needs on top
// of the failover Router. Every operation degrades instead of failing: if the
// chain fell through to the local engine, or a cloud response does not decode
// into the expected shape, the local engine's typed equivalent is substituted.
// A generation problem never fails a session turn.
type Service struct {
	router *Router
}

// NewService wraps a failover router.
func NewService(router *Router) *Service {
	return &Service{router: router}
}

// Source reports where the most recent generation came from.
func (s *Service) Source() Provenance {
	return s.router.Source()
}

// Reply produces the stakeholder's next in-character line.
func (s *Service) Reply(ctx context.Context, history []domain.Message, stakeholder, scenario string, world map[string]int, userRole string) string {
	text, _ := s.router.Generate(ctx, replyPrompt(history, stakeholder, scenario, world, userRole), false)
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if text == "" {
		return s.router.Local().Reply()
	}
	return text
}

// MCQOptions produces the three-way choice set for the next turn. The result
// always contains at least one option with a recognised approach.
func (s *Service) MCQOptions(ctx context.Context, history []domain.Message, scenario string, world map[string]int, role string) []MCQOption {
	text, _ := s.router.Generate(ctx, mcqPrompt(history, scenario, world, role), true)

	var options []MCQOption
	if err := DecodeJSON(text, &options); err != nil {
		slog.Warn("mcq options did not decode, substituting local set", "error", err)
		return s.router.Local().MCQOptions()
	}

	valid := options[:0]
	for _, o := range options {
		if strings.TrimSpace(o.Text) == "" {
			continue
		}
		if o.Approach != sim.ApproachRelationship &&
			o.Approach != sim.ApproachResults &&
			o.Approach != sim.ApproachBoundary {
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) == 0 {
		slog.Warn("mcq options all invalid, substituting local set")
		return s.router.Local().MCQOptions()
	}
	return valid
}

// AnalyzeTurn scores a single free-text user message on empathy,
// professionalism, and strategy.
func (s *Service) AnalyzeTurn(ctx context.Context, lastUserMessage, goal, mood string) domain.TurnAnalysis {
	text, _ := s.router.Generate(ctx, turnAnalysisPrompt(lastUserMessage, goal, mood), true)

	var analysis domain.TurnAnalysis
	if err := DecodeJSON(text, &analysis); err != nil {
		slog.Warn("turn analysis did not decode, substituting neutral analysis", "error", err)
		return s.router.Local().AnalyzeTurn()
	}
	analysis.Empathy = clampScore(analysis.Empathy)
	analysis.Professionalism = clampScore(analysis.Professionalism)
	return analysis
}

// Summarize extracts evidence bullets from a session transcript.
func (s *Service) Summarize(ctx context.Context, transcript string) []string {
	text, prov := s.router.Generate(ctx, summarizePrompt(transcript), false)
	if prov.Tier == TierFallback {
		return s.router.Local().Summarize(transcript)
	}

	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
	}
	if len(bullets) == 0 {
		return s.router.Local().Summarize(transcript)
	}
	return bullets
}

// AnalyzeImpact evaluates a full transcript against role competencies.
func (s *Service) AnalyzeImpact(ctx context.Context, transcript, role string) ImpactAnalysis {
	var competencies []string
	if cfg, ok := sim.Config(role); ok {
		competencies = cfg.Competencies
	}
	text, _ := s.router.Generate(ctx, impactPrompt(transcript, role, competencies), true)

	var analysis ImpactAnalysis
	if err := DecodeJSON(text, &analysis); err != nil || len(analysis.Scores) == 0 {
		slog.Warn("impact analysis did not decode, substituting local analysis", "error", err)
		return s.router.Local().AnalyzeImpact(transcript, role)
	}
	return analysis
}

// ScoreText grades a free-text response against a point rubric. Session turns
// attach AnalyzeTurn sidecars instead; this op serves rubric-based grading
// callers such as assessment tooling built on the same chain.
func (s *Service) ScoreText(ctx context.Context, response, prompt string, rubric []RubricCriterion) RubricScore {
	text, _ := s.router.Generate(ctx, scoreTextPrompt(response, prompt, rubric), true)

	var score RubricScore
	if err := DecodeJSON(text, &score); err != nil {
		slog.Warn("rubric score did not decode, substituting local score", "error", err)
		return s.router.Local().ScoreText(response, prompt, rubric)
	}
	return score
}

// ReportSummary writes the 2-3 sentence coach narrative for the final report.
func (s *Service) ReportSummary(ctx context.Context, role string, skillScores map[string]int, strengths, improvements []string) string {
	text, prov := s.router.Generate(ctx, reportSummaryPrompt(role, skillScores, strengths, improvements), false)
	if prov.Tier == TierFallback {
		return s.router.Local().ReportSummary(role, strengths, improvements)
	}
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if text == "" {
		return s.router.Local().ReportSummary(role, strengths, improvements)
	}
	return text
}

// GeneratePersona creates the opposing stakeholder for a fresh session.
func (s *Service) GeneratePersona(ctx context.Context, role string) PersonaDraft {
	text, _ := s.router.Generate(ctx, personaPrompt(role), true)

	var raw struct {
		Name         string          `json:"name"`
		Role         string          `json:"role"`
		Mood         string          `json:"mood"`
		Briefing     domain.Briefing `json:"briefing"`
		FirstMessage string          `json:"firstMessage"`
	}
	if err := DecodeJSON(text, &raw); err != nil || raw.Name == "" || raw.FirstMessage == "" {
		slog.Warn("persona did not decode, substituting local persona", "error", err)
		return s.router.Local().Persona(role)
	}
	return PersonaDraft{
		Persona: domain.Persona{
			Name:     raw.Name,
			Role:     raw.Role,
			Mood:     raw.Mood,
			Briefing: raw.Briefing,
		},
		FirstMessage: raw.FirstMessage,
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
