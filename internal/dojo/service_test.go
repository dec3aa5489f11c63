package dojo

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okonev/careerdojo/internal/ai"
	"github.com/okonev/careerdojo/internal/domain"
	"github.com/okonev/careerdojo/internal/sim"
)

// fakeRepo is an in-memory Repository. Sessions are stored as JSON copies so
// mutations on a fetched session do not leak into the store until persisted,
// mirroring the real SQLite behavior.
type fakeRepo struct {
	mu        sync.Mutex
	sessions  map[string][]byte
	users     map[string]*domain.User
	lastDirty []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[string][]byte),
		users:    make(map[string]*domain.User),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.UserID] = user
	return nil
}

func (f *fakeRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }

func (f *fakeRepo) CreateSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	f.sessions[session.ID] = data
	session.ClearModified()
	return nil
}

func (f *fakeRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (f *fakeRepo) UpdateSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; !ok {
		return errors.New("session not found")
	}
	f.lastDirty = session.ModifiedFields()
	sort.Strings(f.lastDirty)
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	f.sessions[session.ID] = data
	session.ClearModified()
	return nil
}

func (f *fakeRepo) ListCompletedSessions(_ context.Context, owner string) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, data := range f.sessions {
		var s domain.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if s.Owner == owner && s.Status == domain.SessionCompleted && s.FinalReport != nil {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (f *fakeRepo) StaleActiveSessions(context.Context, time.Duration) ([]*domain.Session, error) {
	return nil, nil
}

func (f *fakeRepo) AbandonSessions(context.Context, []string) (int64, error) { return 0, nil }
func (f *fakeRepo) Ping(context.Context) error                               { return nil }
func (f *fakeRepo) Close() error                                             { return nil }

func newTestService(repo *fakeRepo) *Service {
	gen := ai.NewService(ai.NewRouter(nil, ai.NewLocalEngine()))
	return NewService(repo, gen, nil)
}

func TestStartInvariant(t *testing.T) {
	svc := newTestService(newFakeRepo())

	for _, role := range sim.Roles() {
		session, err := svc.Start(context.Background(), "user-1", role)
		if err != nil {
			t.Fatalf("Start(%s) failed: %v", role, err)
		}

		if session.Status != domain.SessionActive {
			t.Errorf("%s: status = %q", role, session.Status)
		}
		if session.TurnCount != 0 || session.MessageCount != 0 {
			t.Errorf("%s: counters not zero", role)
		}
		if session.Progress.Current != 1 || session.Progress.Total != 3 {
			t.Errorf("%s: progress = %+v", role, session.Progress)
		}

		inProgress := 0
		for i, s := range session.Progress.Scenarios {
			switch {
			case i == 0 && s.Status == domain.ScenarioInProgress:
				inProgress++
			case i > 0 && s.Status != domain.ScenarioPending:
				t.Errorf("%s: scenario %d status = %q, want pending", role, i+1, s.Status)
			}
		}
		if inProgress != 1 {
			t.Errorf("%s: %d scenarios in progress, want exactly 1 (the first)", role, inProgress)
		}

		wantWorld := sim.InitialWorldState(role)
		for metric, want := range wantWorld {
			if session.WorldState[metric] != want {
				t.Errorf("%s: %s = %d, want %d", role, metric, session.WorldState[metric], want)
			}
		}

		for skill, score := range session.SkillScores {
			if score != 0 {
				t.Errorf("%s: skill %q = %d, want 0", role, skill, score)
			}
		}
	}
}

func TestStartInvalidRole(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Start(context.Background(), "user-1", "Wizard")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRespondNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Respond(context.Background(), "missing", "hi", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRespondChoiceProbeDoesNotMutate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, err := svc.Start(context.Background(), "user-1", "Manager")
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Respond(context.Background(), session.ID, "", nil)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if len(result.MCQOptions) == 0 {
		t.Error("probe returned no options")
	}
	if result.IsResolved || result.IsLastScenario {
		t.Error("probe must not resolve anything")
	}
	if result.Message != nil {
		t.Errorf("fresh session probe message = %q, want nil", *result.Message)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.TurnCount != 0 || len(stored.Messages) != 0 {
		t.Error("probe mutated persisted state")
	}
}

func TestTurnCadence(t *testing.T) {
	svc := newTestService(newFakeRepo())
	session, err := svc.Start(context.Background(), "user-1", "Manager")
	if err != nil {
		t.Fatal(err)
	}

	choice := &MCQChoice{Text: "Let's talk this through.", Approach: sim.ApproachRelationship}
	wantResolved := []bool{false, false, true}

	for turn, want := range wantResolved {
		result, err := svc.Respond(context.Background(), session.ID, "", choice)
		if err != nil {
			t.Fatalf("turn %d failed: %v", turn+1, err)
		}
		if result.IsResolved != want {
			t.Errorf("turn %d: isResolved = %v, want %v", turn+1, result.IsResolved, want)
		}
		if result.IsLastScenario {
			t.Errorf("turn %d: isLastScenario true on first scenario", turn+1)
		}
		if result.Message == nil || *result.Message == "" {
			t.Errorf("turn %d: no persona reply", turn+1)
		}
		if len(result.MCQOptions) == 0 {
			t.Errorf("turn %d: no options for next turn", turn+1)
		}
	}
}

func TestChoiceAppliesPhysicsAndSkills(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, err := svc.Start(context.Background(), "user-1", "Manager")
	if err != nil {
		t.Fatal(err)
	}

	choice := &MCQChoice{Text: "Focus on the data.", Approach: sim.ApproachResults}
	if _, err := svc.Respond(context.Background(), session.ID, "", choice); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)

	// Results for Manager: morale -10, risk -10, trust +5.
	if stored.WorldState["morale"] != 50 {
		t.Errorf("morale = %d, want 50", stored.WorldState["morale"])
	}
	if stored.WorldState["risk"] != 30 {
		t.Errorf("risk = %d, want 30", stored.WorldState["risk"])
	}
	if stored.WorldState["trust"] != 55 {
		t.Errorf("trust = %d, want 55", stored.WorldState["trust"])
	}

	skill, _ := sim.SkillDelta("Manager", sim.ApproachResults)
	if stored.SkillScores[skill] != sim.SkillIncrement {
		t.Errorf("skill %q = %d, want %d", skill, stored.SkillScores[skill], sim.SkillIncrement)
	}

	if stored.TurnCount != 1 || stored.MessageCount != 1 {
		t.Errorf("counters = (%d, %d), want (1, 1)", stored.TurnCount, stored.MessageCount)
	}
	if len(stored.Messages) != 2 {
		t.Fatalf("stored %d messages, want user+ai pair", len(stored.Messages))
	}
	if stored.Messages[0].Sender != domain.SenderUser || stored.Messages[0].Text != choice.Text {
		t.Errorf("user message = %+v", stored.Messages[0])
	}
	if stored.Messages[1].Sender != domain.SenderAI {
		t.Errorf("second message sender = %q", stored.Messages[1].Sender)
	}
}

func TestChoiceWithoutApproachDefaultsToResults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	if _, err := svc.Respond(context.Background(), session.ID, "", &MCQChoice{Text: "Okay."}); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	skill, _ := sim.SkillDelta("Manager", sim.ApproachResults)
	if stored.SkillScores[skill] != sim.SkillIncrement {
		t.Errorf("missing approach should default to Results, skill %q = %d", skill, stored.SkillScores[skill])
	}
}

func TestFreeTextSkipsPhysicsButAnalyzes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Developer")

	if _, err := svc.Respond(context.Background(), session.ID, "I hear your concern and I have a plan.", nil); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)

	for metric, want := range sim.InitialWorldState("Developer") {
		if stored.WorldState[metric] != want {
			t.Errorf("free text mutated %s: %d, want %d", metric, stored.WorldState[metric], want)
		}
	}
	for skill, score := range stored.SkillScores {
		if score != 0 {
			t.Errorf("free text awarded skill %q = %d", skill, score)
		}
	}
	if stored.TurnCount != 1 {
		t.Errorf("turnCount = %d, want 1", stored.TurnCount)
	}
	if stored.Messages[0].Analysis == nil {
		t.Error("free-text user message has no sidecar analysis")
	}
}

func TestAdvanceClearsMessagesAndRotatesPersona(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	if _, err := svc.Respond(context.Background(), session.ID, "hello there", nil); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Advance(context.Background(), session.ID, "")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if result.CurrentScenario != 2 || result.IsComplete {
		t.Errorf("result = %+v", result)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if len(stored.Messages) != 0 {
		t.Errorf("messages not cleared: %d remain", len(stored.Messages))
	}
	if stored.Progress.Scenarios[0].Status != domain.ScenarioResolved {
		t.Errorf("first scenario status = %q", stored.Progress.Scenarios[0].Status)
	}
	if stored.Progress.Scenarios[0].Resolution != "success" {
		t.Errorf("resolution = %q, want success default", stored.Progress.Scenarios[0].Resolution)
	}
	if stored.Progress.Scenarios[1].Status != domain.ScenarioInProgress {
		t.Errorf("second scenario status = %q", stored.Progress.Scenarios[1].Status)
	}
	if stored.Persona.Name != stored.Progress.Scenarios[1].Stakeholder {
		t.Errorf("persona %q not rotated to %q", stored.Persona.Name, stored.Progress.Scenarios[1].Stakeholder)
	}
}

func TestAdvanceFailedReason(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "HR")

	if _, err := svc.Advance(context.Background(), session.ID, "failed"); err != nil {
		t.Fatal(err)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.Progress.Scenarios[0].Status != domain.ScenarioFailed {
		t.Errorf("status = %q, want failed", stored.Progress.Scenarios[0].Status)
	}
}

func TestAdvanceOnLastScenarioCompletes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	for i := 0; i < 2; i++ {
		if _, err := svc.Advance(context.Background(), session.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	result, err := svc.Advance(context.Background(), session.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsComplete {
		t.Error("advancing past the last scenario should complete the session")
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.Status != domain.SessionCompleted {
		t.Errorf("status = %q", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("completedAt not set")
	}
}

func TestIsLastScenarioConjunction(t *testing.T) {
	svc := newTestService(newFakeRepo())
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	choice := &MCQChoice{Text: "Proceed.", Approach: sim.ApproachResults}

	playScenario := func(scenario int) *TurnResult {
		var last *TurnResult
		for turn := 0; turn < 3; turn++ {
			result, err := svc.Respond(context.Background(), session.ID, "", choice)
			if err != nil {
				t.Fatalf("scenario %d turn %d: %v", scenario, turn+1, err)
			}
			last = result
		}
		return last
	}

	if result := playScenario(1); !result.IsResolved || result.IsLastScenario {
		t.Errorf("scenario 1: resolved=%v last=%v, want true/false", result.IsResolved, result.IsLastScenario)
	}
	if _, err := svc.Advance(context.Background(), session.ID, ""); err != nil {
		t.Fatal(err)
	}

	if result := playScenario(2); !result.IsResolved || result.IsLastScenario {
		t.Errorf("scenario 2: resolved=%v last=%v, want true/false", result.IsResolved, result.IsLastScenario)
	}
	if _, err := svc.Advance(context.Background(), session.ID, ""); err != nil {
		t.Fatal(err)
	}

	if result := playScenario(3); !result.IsResolved || !result.IsLastScenario {
		t.Errorf("scenario 3: resolved=%v last=%v, want true/true", result.IsResolved, result.IsLastScenario)
	}
}

func TestRespondOnCompletedSession(t *testing.T) {
	svc := newTestService(newFakeRepo())
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	for i := 0; i < 3; i++ {
		if _, err := svc.Advance(context.Background(), session.ID, ""); err != nil {
			t.Fatal(err)
		}
	}

	result, err := svc.Respond(context.Background(), session.ID, "anyone there?", nil)
	if err != nil {
		t.Fatalf("respond on completed session errored: %v", err)
	}
	if !result.IsComplete {
		t.Error("expected isComplete no-op result")
	}
}

// markAbandoned simulates the janitor reaping a session.
func markAbandoned(t *testing.T, repo *fakeRepo, id string) {
	t.Helper()
	session, err := repo.GetSession(context.Background(), id)
	if err != nil || session == nil {
		t.Fatalf("load session %s: %v", id, err)
	}
	session.Status = domain.SessionAbandoned
	session.MarkModified(domain.FieldStatus)
	if err := repo.UpdateSession(context.Background(), session); err != nil {
		t.Fatal(err)
	}
}

func TestRespondOnAbandonedSession(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")
	markAbandoned(t, repo, session.ID)

	choice := &MCQChoice{Text: "Let's align.", Approach: sim.ApproachRelationship}
	result, err := svc.Respond(context.Background(), session.ID, "", choice)
	if err != nil {
		t.Fatalf("respond on abandoned session errored: %v", err)
	}
	if !result.IsComplete {
		t.Error("expected isComplete no-op result")
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.Status != domain.SessionAbandoned {
		t.Errorf("status = %q, want abandoned", stored.Status)
	}
	if stored.TurnCount != 0 || stored.MessageCount != 0 {
		t.Errorf("reaped session played a turn: counters = (%d, %d)", stored.TurnCount, stored.MessageCount)
	}
	if len(stored.Messages) != 0 {
		t.Errorf("reaped session stored %d messages", len(stored.Messages))
	}
	for metric, want := range sim.InitialWorldState("Manager") {
		if stored.WorldState[metric] != want {
			t.Errorf("reaped session mutated %s: %d, want %d", metric, stored.WorldState[metric], want)
		}
	}
}

func TestAdvanceOnAbandonedSessionStaysAbandoned(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")
	markAbandoned(t, repo, session.ID)

	for i := 0; i < 3; i++ {
		result, err := svc.Advance(context.Background(), session.ID, "")
		if err != nil {
			t.Fatalf("advance %d errored: %v", i+1, err)
		}
		if !result.IsComplete {
			t.Errorf("advance %d: expected isComplete no-op result", i+1)
		}
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.Status != domain.SessionAbandoned {
		t.Errorf("status = %q, abandoned must stay terminal", stored.Status)
	}
	if stored.Progress.Current != 1 {
		t.Errorf("currentScenario = %d, want untouched 1", stored.Progress.Current)
	}
}

func TestFinalizeOnAbandonedSession(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")
	markAbandoned(t, repo, session.ID)

	if _, err := svc.Finalize(context.Background(), session.ID); !errors.Is(err, ErrSessionAbandoned) {
		t.Fatalf("err = %v, want ErrSessionAbandoned", err)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.FinalReport != nil {
		t.Error("reaped session earned a report")
	}
	if stored.Status != domain.SessionAbandoned {
		t.Errorf("status = %q, want abandoned", stored.Status)
	}
}

func TestFinalizeReport(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	session, _ := svc.Start(context.Background(), "user-1", "Manager")

	// Two Relationship choices make its skill a strength; everything else
	// stays an improvement area.
	choice := &MCQChoice{Text: "Let's align.", Approach: sim.ApproachRelationship}
	for i := 0; i < 2; i++ {
		if _, err := svc.Respond(context.Background(), session.ID, "", choice); err != nil {
			t.Fatal(err)
		}
	}

	report, err := svc.Finalize(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if report.RoleAssessed != "Manager" {
		t.Errorf("roleAssessed = %q", report.RoleAssessed)
	}
	if report.ScenariosCompleted != 3 {
		t.Errorf("scenariosCompleted = %d", report.ScenariosCompleted)
	}
	if report.OverallGrade == "" {
		t.Error("empty grade")
	}
	if report.Recommendation == "" {
		t.Error("empty recommendation")
	}
	if report.BestSuitedRole != "Manager" {
		t.Errorf("bestSuitedRole = %q, want current role with no history", report.BestSuitedRole)
	}

	relationshipSkill, _ := sim.SkillDelta("Manager", sim.ApproachRelationship)
	found := false
	for _, s := range report.GapAnalysis.Strengths {
		if s == relationshipSkill {
			found = true
		}
	}
	if !found {
		t.Errorf("%q should be a strength after two choices, gap = %+v", relationshipSkill, report.GapAnalysis)
	}

	// Multiplier is rounded to two decimals.
	if report.PerformanceMultiplier != math.Round(report.PerformanceMultiplier*100)/100 {
		t.Errorf("multiplier %v not rounded", report.PerformanceMultiplier)
	}

	stored, _ := repo.GetSession(context.Background(), session.ID)
	if stored.Status != domain.SessionCompleted {
		t.Errorf("status = %q after finalize", stored.Status)
	}

	// Finalizing again returns the existing report unchanged.
	again, err := svc.Finalize(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.OverallGrade != report.OverallGrade || again.Recommendation != report.Recommendation {
		t.Error("second finalize produced a different report")
	}
}

func TestGet(t *testing.T) {
	svc := newTestService(newFakeRepo())
	session, _ := svc.Start(context.Background(), "user-1", "Executive")

	got, err := svc.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != session.ID || got.Role != "Executive" {
		t.Errorf("got %+v", got)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
