// Package domain contains core domain types for the Career Dojo application.
package domain

import (
	"time"
)

// Session status values.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Scenario status values.
const (
	ScenarioPending    = "pending"
	ScenarioInProgress = "in-progress"
	ScenarioResolved   = "resolved"
	ScenarioFailed     = "failed"
)

// Message sender values.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Dirty-field group names understood by the store. Updating a session only
// persists the groups that were marked modified.
const (
	FieldPersona     = "persona"
	FieldMessages    = "messages"
	FieldProgress    = "scenario_progress"
	FieldWorldState  = "world_state"
	FieldSkillScores = "skill_scores"
	FieldCounters    = "counters"
	FieldStatus      = "status"
	FieldFinalReport = "final_report"
)

// TurnAnalysis is the sidecar evaluation attached to a user message.
type TurnAnalysis struct {
	Sentiment       int    `json:"sentiment,omitempty"`
	Empathy         int    `json:"empathy"`
	Professionalism int    `json:"professionalism"`
	Notes           string `json:"notes"`
}

// Message is a single conversational turn within the active scenario.
type Message struct {
	Sender    string        `json:"sender"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Analysis  *TurnAnalysis `json:"analysis,omitempty"`
}

// Briefing frames the stakes of the active scenario for the user.
type Briefing struct {
	Situation string `json:"situation"`
	Objective string `json:"objective"`
	Stakes    string `json:"stakes"`
}

// Persona is the currently active stakeholder presentation. It is replaced
// wholesale when the session advances to the next scenario.
type Persona struct {
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Mood     string   `json:"mood"`
	Briefing Briefing `json:"briefing"`
}

// Scenario is one episode in the three-scenario journey.
type Scenario struct {
	Number      int        `json:"scenarioNumber"`
	Stakeholder string     `json:"stakeholder"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	MoodLevel   int        `json:"moodLevel"`
	Resolution  string     `json:"resolution,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ScenarioProgress tracks position within the scenario sequence.
// Current is 1-based.
type ScenarioProgress struct {
	Current   int        `json:"currentScenario"`
	Total     int        `json:"totalScenarios"`
	Scenarios []Scenario `json:"scenarios"`
}

// GapAnalysis splits skills into strengths and improvement areas.
type GapAnalysis struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// FinalReport is the post-session assessment. Populated exactly once by
// finalization and immutable thereafter.
type FinalReport struct {
	RoleAssessed          string         `json:"roleAssessed"`
	ScenariosCompleted    int            `json:"scenariosCompleted"`
	SkillScores           map[string]int `json:"skillScores"`
	GapAnalysis           GapAnalysis    `json:"gapAnalysis"`
	OverallGrade          string         `json:"overallGrade"`
	PerformanceMultiplier float64        `json:"performanceMultiplier"`
	Recommendation        string         `json:"recommendation"`
	BestSuitedRole        string         `json:"bestSuitedRole"`
	KeyMoments            []string       `json:"keyMoments,omitempty"`
	TranscriptFeedback    string         `json:"transcriptFeedback,omitempty"`
}

// Session is the aggregate root of a simulation run. It is owned exclusively
// by the dojo orchestrator; nothing else mutates it directly.
type Session struct {
	ID             string            `json:"id"`
	Owner          string            `json:"owner"`
	Role           string            `json:"role"`
	Persona        Persona           `json:"persona"`
	Messages       []Message         `json:"messages"`
	Progress       ScenarioProgress  `json:"scenarioProgress"`
	WorldState     map[string]int    `json:"worldState"`
	MetricPolarity map[string]string `json:"metricPolarity"`
	SkillScores    map[string]int    `json:"skillScores"`
	TurnCount      int               `json:"turnCount"`
	MessageCount   int               `json:"messageCount"`
	Status         string            `json:"status"`
	FinalReport    *FinalReport      `json:"finalReport,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`

	dirty map[string]struct{}
}

// MarkModified flags a field group for persistence on the next update.
func (s *Session) MarkModified(field string) {
	if s.dirty == nil {
		s.dirty = make(map[string]struct{})
	}
	s.dirty[field] = struct{}{}
}

// Modified reports whether a field group has been flagged since the last
// ClearModified.
func (s *Session) Modified(field string) bool {
	_, ok := s.dirty[field]
	return ok
}

// ModifiedFields returns the set of flagged field groups.
func (s *Session) ModifiedFields() []string {
	fields := make([]string, 0, len(s.dirty))
	for f := range s.dirty {
		fields = append(fields, f)
	}
	return fields
}

// ClearModified resets the dirty set, typically after a successful persist.
func (s *Session) ClearModified() {
	s.dirty = nil
}

// CurrentScenario returns the scenario at the current 1-based index, or nil
// if the index is out of range.
func (s *Session) CurrentScenario() *Scenario {
	idx := s.Progress.Current - 1
	if idx < 0 || idx >= len(s.Progress.Scenarios) {
		return nil
	}
	return &s.Progress.Scenarios[idx]
}

// OnLastScenario reports whether the current scenario is the final one.
func (s *Session) OnLastScenario() bool {
	return s.Progress.Current >= s.Progress.Total
}

// IsTerminal reports whether the session has reached a terminal status.
// Neither completed nor abandoned sessions accept further play.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// LastMessage returns the most recent message, or nil for an empty history.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// AppendMessage adds a turn to the history. Counters are owned by the
// orchestrator, which increments them once per user turn.
func (s *Session) AppendMessage(sender, text string, analysis *TurnAnalysis) {
	s.Messages = append(s.Messages, Message{
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
		Analysis:  analysis,
	})
}
