package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/okonev/careerdojo/internal/domain"
)

// LocalEngine is the deterministic terminal fallback of the failover chain.
// It pattern-matches on prompt content and returns a plausible canned
// response for the request kind, so the simulation stays fully functional
// with zero external providers. It never fails.
type LocalEngine struct{}

// NewLocalEngine creates the deterministic fallback engine.
func NewLocalEngine() *LocalEngine { return &LocalEngine{} }

// Family implements Generator.
func (e *LocalEngine) Family() string { return "local" }

// ActiveModel implements Generator.
func (e *LocalEngine) ActiveModel() string { return "rule-based-local-engine" }

const localMCQJSON = `[
  {"text": "I understand your perspective and want to collaborate on a solution.", "approach": "Relationship", "satisfies": "Team Trust", "violates": "Deadline Efficiency"},
  {"text": "Let's focus on the data and project milestones to resolve this efficiently.", "approach": "Results", "satisfies": "Project Velocity", "violates": "Team Morale"},
  {"text": "We need to maintain professional standards and clear boundaries in this situation.", "approach": "Boundary", "satisfies": "Professional Standards", "violates": "Short-Term Flexibility"}
]`

const localScoresJSON = `{
  "competency1": 75, "competency2": 70, "competency3": 80,
  "competency4": 65, "competency5": 70, "competency6": 75,
  "totalScore": 7, "reasoning": "Deterministic local evaluation.",
  "confidence": 0.8,
  "evidence": ["Maintained a constructive tone."],
  "overallFeedback": "Solid foundation shown."
}`

// Generate implements Generator. Keyword sniffing decides the request kind.
func (e *LocalEngine) Generate(_ context.Context, prompt string, _ bool) (string, error) {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "scenario titles"):
		return `{"suggestions": [{"title": "Navigating Conflict", "confidence": 0.9}, {"title": "Strategic Shift", "confidence": 0.9}]}`, nil
	case strings.Contains(lower, "scenario description"):
		return `{"description": "A complex scenario involving stakeholders and tight deadlines.", "confidence": 0.95}`, nil
	case strings.Contains(lower, "leadership options"), strings.Contains(lower, "leadership approaches"), strings.Contains(lower, "mcq options"):
		return localMCQJSON, nil
	case strings.Contains(lower, "roleplay mode"):
		return "I hear you, but I still need a concrete commitment from your side before I can move on this.", nil
	case strings.Contains(lower, "real-time analysis"):
		return `{"empathy": 50, "professionalism": 50, "notes": "Neutral response."}`, nil
	case strings.Contains(lower, "performance summary"), strings.Contains(lower, "executive coach"):
		return "You demonstrated a steady grasp of the situations presented. Keep leaning on your strongest skills while deliberately practicing the weaker ones.", nil
	case strings.Contains(lower, "questions"):
		return `{"questions": [{"text": "How do you handle the pressure?", "confidence": 0.9}]}`, nil
	default:
		return localScoresJSON, nil
	}
}

// Summarize returns canned evidence bullets.
func (e *LocalEngine) Summarize(string) []string {
	return []string{
		"Communicated clearly with stakeholders.",
		"Identified root cause effectively.",
		"Balanced technical needs with business goals.",
	}
}

// AnalyzeImpact returns a canned transcript evaluation.
func (e *LocalEngine) AnalyzeImpact(string, string) ImpactAnalysis {
	return ImpactAnalysis{
		Scores: []CompetencyScore{
			{Competency: "Decision Making", Score: 8, Evidence: "Promptly chose a path forward."},
			{Competency: "Communication", Score: 7, Evidence: "Professional tone throughout."},
		},
		OverallFeedback: "Strong performance with clear leadership potential.",
	}
}

// ScoreText returns a canned rubric score.
func (e *LocalEngine) ScoreText(string, string, []RubricCriterion) RubricScore {
	return RubricScore{
		TotalScore: 7,
		Confidence: 0.8,
		Evidence:   []string{"Demonstrated clarity in communication."},
		Breakdown:  []RubricBreakdownEntry{},
	}
}

// MCQOptions returns the canned choice set.
func (e *LocalEngine) MCQOptions() []MCQOption {
	return []MCQOption{
		{Text: "Let's discuss how this affects our team stability.", Approach: "Relationship"},
		{Text: "We need to focus on delivering the results by the deadline.", Approach: "Results"},
		{Text: "I expect us to maintain professional standards here.", Approach: "Boundary"},
	}
}

// Reply returns the canned stakeholder line.
func (e *LocalEngine) Reply() string {
	return "I hear you, but I still need a concrete commitment from your side before I can move on this."
}

// AnalyzeTurn returns the neutral sidecar analysis.
func (e *LocalEngine) AnalyzeTurn() domain.TurnAnalysis {
	return domain.TurnAnalysis{Empathy: 50, Professionalism: 50, Notes: "Neutral response."}
}

// ReportSummary returns the deterministic templated summary sentence.
func (e *LocalEngine) ReportSummary(role string, strengths, improvements []string) string {
	strength := "strongest skill"
	if len(strengths) > 0 {
		strength = strengths[0]
	}
	improvement := "weakest skill"
	if len(improvements) > 0 {
		improvement = improvements[0]
	}
	return fmt.Sprintf("You demonstrated a good understanding of %s challenges. Focus on balancing your %s with your strong %s.",
		role, improvement, strength)
}

// Persona returns the canned stakeholder persona.
func (e *LocalEngine) Persona(string) PersonaDraft {
	return PersonaDraft{
		Persona: domain.Persona{
			Name: "Alex Reed",
			Role: "Stakeholder",
			Mood: "Concerned",
			Briefing: domain.Briefing{
				Situation: "There is a misunderstanding regarding project priorities.",
				Objective: "Clarify the situation and regain alignment.",
				Stakes:    "Project delay and loss of trust.",
			},
		},
		FirstMessage: "I'm not sure we're on the same page about this deadline.",
	}
}
