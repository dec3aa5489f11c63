package ai

import (
	"github.com/okonev/careerdojo/internal/domain"
)

// MCQOption is one selectable response in a multiple-choice turn.
type MCQOption struct {
	Text      string `json:"text"`
	Approach  string `json:"approach"`
	Satisfies string `json:"satisfies,omitempty"`
	Violates  string `json:"violates,omitempty"`
}

// CompetencyScore is one scored competency from an impact analysis.
type CompetencyScore struct {
	Competency string `json:"competency"`
	Score      int    `json:"score"`
	Evidence   string `json:"evidence"`
}

// ImpactAnalysis is the transcript-level evaluation of a session.
type ImpactAnalysis struct {
	Scores          []CompetencyScore `json:"scores"`
	OverallFeedback string            `json:"overallFeedback"`
}

// RubricCriterion is one line of a free-text scoring rubric.
type RubricCriterion struct {
	Criterion string `json:"criterion"`
	MaxPoints int    `json:"maxPoints"`
}

// RubricBreakdownEntry is the per-criterion detail of a rubric score.
type RubricBreakdownEntry struct {
	Criterion string `json:"criterion"`
	Points    int    `json:"points"`
	Comment   string `json:"comment,omitempty"`
}

// RubricScore is the result of scoring a free-text response.
type RubricScore struct {
	TotalScore float64                `json:"totalScore"`
	Confidence float64                `json:"confidence"`
	Evidence   []string               `json:"evidence"`
	Breakdown  []RubricBreakdownEntry `json:"breakdown"`
}

// PersonaDraft is a generated stakeholder persona plus its opening line.
type PersonaDraft struct {
	Persona      domain.Persona `json:"persona"`
	FirstMessage string         `json:"firstMessage"`
}
