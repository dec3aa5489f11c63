// Package dojo is the session orchestrator: the state machine that drives a
// three-scenario simulation run from start through finalization, composing
// the physics engine, the generation service, and the store.
package dojo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okonev/careerdojo/internal/ai"
	"github.com/okonev/careerdojo/internal/domain"
	"github.com/okonev/careerdojo/internal/events"
	"github.com/okonev/careerdojo/internal/sim"
	"github.com/okonev/careerdojo/internal/store"
)

// Turns per scenario. The cadence is fixed: a scenario is over when
// turnCount modulo this hits zero, regardless of mood or content.
const turnsPerScenario = 3

const initialMoodLevel = 50

// MCQChoice is a structured selection submitted by the client. Approach may
// be empty, in which case Results applies.
type MCQChoice struct {
	Text     string `json:"text"`
	Approach string `json:"approach"`
}

// TurnResult is the outcome of one respond call.
type TurnResult struct {
	Message        *string          `json:"message"`
	WorldState     map[string]int   `json:"worldState,omitempty"`
	MCQOptions     []ai.MCQOption   `json:"mcqOptions,omitempty"`
	IsResolved     bool             `json:"isResolved"`
	IsLastScenario bool             `json:"isLastScenario"`
	Scenario       *domain.Scenario `json:"scenario,omitempty"`
	IsComplete     bool             `json:"isComplete,omitempty"`
}

// AdvanceResult is the outcome of an advance call.
type AdvanceResult struct {
	CurrentScenario int  `json:"currentScenario"`
	IsComplete      bool `json:"isComplete"`
}

// Service drives dojo sessions. All mutating operations on one session are
// serialized through a per-session lock; operations on different sessions
// run concurrently.
type Service struct {
	repo  store.Repository
	gen   *ai.Service
	hub   *events.Hub
	locks *keyedLocks
}

// NewService creates the orchestrator. The hub may be nil when no live event
// stream is wanted.
func NewService(repo store.Repository, gen *ai.Service, hub *events.Hub) *Service {
	return &Service{
		repo:  repo,
		gen:   gen,
		hub:   hub,
		locks: newKeyedLocks(),
	}
}

// Start creates a fresh session for a role: first scenario in progress, the
// rest pending, zeroed skills, the role's initial metrics.
func (s *Service) Start(ctx context.Context, owner, role string) (*domain.Session, error) {
	cfg, ok := sim.Config(role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := time.Now()
	scenarios := make([]domain.Scenario, len(cfg.Scenarios))
	for i, tpl := range cfg.Scenarios {
		scenarios[i] = domain.Scenario{
			Number:      i + 1,
			Stakeholder: tpl.Stakeholder,
			Description: tpl.Description,
			Status:      domain.ScenarioPending,
			MoodLevel:   initialMoodLevel,
		}
	}
	scenarios[0].Status = domain.ScenarioInProgress
	scenarios[0].StartedAt = &now

	skillScores := make(map[string]int, len(cfg.Skills))
	for _, skillName := range cfg.Skills {
		skillScores[skillName] = 0
	}

	session := &domain.Session{
		ID:    uuid.NewString(),
		Owner: owner,
		Role:  role,
		Persona: domain.Persona{
			Name: scenarios[0].Stakeholder,
			Role: scenarios[0].Stakeholder,
			Mood: "Neutral",
			Briefing: domain.Briefing{
				Situation: scenarios[0].Description,
				Objective: fmt.Sprintf("Navigate the situation effectively as a %s", role),
				Stakes:    "Professional success and team stability",
			},
		},
		Messages: []domain.Message{},
		Progress: domain.ScenarioProgress{
			Current:   1,
			Total:     len(scenarios),
			Scenarios: scenarios,
		},
		WorldState:     sim.InitialWorldState(role),
		MetricPolarity: cfg.MetricPolarity,
		SkillScores:    skillScores,
		Status:         domain.SessionActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Info("dojo session started", "session_id", session.ID, "role", role, "owner", owner)
	return session, nil
}

// Respond handles one user interaction with the active scenario. With neither
// message nor choice it runs in choice-probe mode: no state is mutated, only
// fresh options are generated. Otherwise it plays a full turn.
func (s *Service) Respond(ctx context.Context, sessionID, message string, choice *MCQChoice) (*TurnResult, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsTerminal() {
		return &TurnResult{IsComplete: true}, nil
	}

	current := session.CurrentScenario()
	if current == nil {
		return nil, fmt.Errorf("session %s has no active scenario", sessionID)
	}

	message = strings.TrimSpace(message)
	if message == "" && choice == nil {
		options := s.gen.MCQOptions(ctx, session.Messages, current.Description, session.WorldState, session.Role)
		result := &TurnResult{
			WorldState: session.WorldState,
			MCQOptions: options,
			Scenario:   current,
		}
		if last := session.LastMessage(); last != nil {
			result.Message = &last.Text
		}
		return result, nil
	}

	userMessage := message
	var analysis *domain.TurnAnalysis

	if choice != nil {
		userMessage = choice.Text
		approach := choice.Approach
		if approach == "" {
			approach = sim.ApproachResults
		}

		session.WorldState = sim.ApplyApproach(session.WorldState, session.Role, approach)
		session.MarkModified(domain.FieldWorldState)

		if skill, delta := sim.SkillDelta(session.Role, approach); skill != "" {
			session.SkillScores[skill] += delta
			session.MarkModified(domain.FieldSkillScores)
		}
	} else {
		// Free text carries no approach semantics: no metric or skill
		// mutation, just a sidecar analysis on the stored message.
		turn := s.gen.AnalyzeTurn(ctx, userMessage, session.Persona.Briefing.Objective, session.Persona.Mood)
		analysis = &turn
	}

	session.TurnCount++
	session.MessageCount++
	session.MarkModified(domain.FieldCounters)

	session.AppendMessage(domain.SenderUser, userMessage, analysis)

	reply := s.gen.Reply(ctx, session.Messages, current.Stakeholder, current.Description, session.WorldState, session.Role)
	session.AppendMessage(domain.SenderAI, reply, nil)
	session.MarkModified(domain.FieldMessages)

	options := s.gen.MCQOptions(ctx, session.Messages, current.Description, session.WorldState, session.Role)

	isResolved := session.TurnCount > 0 && session.TurnCount%turnsPerScenario == 0
	isLastScenario := isResolved && session.OnLastScenario()

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	s.publish(session.ID, events.KindTurn, map[string]interface{}{
		"message":    reply,
		"worldState": session.WorldState,
		"turnCount":  session.TurnCount,
		"isResolved": isResolved,
	})

	return &TurnResult{
		Message:        &reply,
		WorldState:     session.WorldState,
		MCQOptions:     options,
		IsResolved:     isResolved,
		IsLastScenario: isLastScenario,
		Scenario:       current,
	}, nil
}

// Advance closes the current scenario and either opens the next one with a
// cleared conversation, or completes the session when none remain.
func (s *Service) Advance(ctx context.Context, sessionID, reason string) (*AdvanceResult, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsTerminal() {
		return &AdvanceResult{CurrentScenario: session.Progress.Current, IsComplete: true}, nil
	}

	current := session.CurrentScenario()
	if current == nil {
		return nil, fmt.Errorf("session %s has no active scenario", sessionID)
	}

	now := time.Now()
	if reason == "" {
		reason = "success"
	}
	current.Resolution = reason
	if reason == "failed" {
		current.Status = domain.ScenarioFailed
	} else {
		current.Status = domain.ScenarioResolved
	}
	current.CompletedAt = &now
	session.MarkModified(domain.FieldProgress)

	if !session.OnLastScenario() {
		session.Progress.Current++
		next := session.CurrentScenario()
		next.Status = domain.ScenarioInProgress
		next.StartedAt = &now

		// The scenario names the stakeholder; the generator fills in mood
		// and briefing color for the new episode.
		draft := s.gen.GeneratePersona(ctx, session.Role)
		session.Persona = draft.Persona
		session.Persona.Name = next.Stakeholder
		session.Persona.Role = next.Stakeholder
		session.Persona.Briefing.Situation = next.Description
		session.MarkModified(domain.FieldPersona)

		// Each scenario is a conversationally isolated episode.
		session.Messages = []domain.Message{}
		session.MarkModified(domain.FieldMessages)

		slog.Info("dojo session advanced", "session_id", session.ID, "scenario", session.Progress.Current)
	} else {
		session.Status = domain.SessionCompleted
		session.CompletedAt = &now
		session.MarkModified(domain.FieldStatus)

		slog.Info("dojo session completed", "session_id", session.ID)
	}

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist advance: %w", err)
	}

	kind := events.KindAdvance
	if session.Status == domain.SessionCompleted {
		kind = events.KindCompleted
	}
	s.publish(session.ID, kind, map[string]interface{}{
		"currentScenario": session.Progress.Current,
		"isComplete":      session.Status == domain.SessionCompleted,
	})

	return &AdvanceResult{
		CurrentScenario: session.Progress.Current,
		IsComplete:      session.Status == domain.SessionCompleted,
	}, nil
}

// Finalize compiles and persists the final report, forcing completed status.
// Finalizing an already-reported session returns the existing report
// unchanged.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*domain.FinalReport, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.FinalReport != nil {
		return session.FinalReport, nil
	}
	if session.Status == domain.SessionAbandoned {
		return nil, ErrSessionAbandoned
	}

	report, err := s.compileReport(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("compile report: %w", err)
	}

	now := time.Now()
	session.FinalReport = report
	session.Status = domain.SessionCompleted
	session.CompletedAt = &now
	session.MarkModified(domain.FieldFinalReport)
	session.MarkModified(domain.FieldStatus)

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	slog.Info("dojo report finalized", "session_id", session.ID, "grade", report.OverallGrade)

	s.publish(session.ID, events.KindCompleted, map[string]interface{}{
		"overallGrade": report.OverallGrade,
		"isComplete":   true,
	})

	return report, nil
}

// Get is a read-only session fetch.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CompletedSessions lists an owner's reported sessions for the gallery view.
func (s *Service) CompletedSessions(ctx context.Context, owner string) ([]*domain.Session, error) {
	sessions, err := s.repo.ListCompletedSessions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) publish(sessionID, kind string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(sessionID, kind, payload)
}
