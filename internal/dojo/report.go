package dojo

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/okonev/careerdojo/internal/domain"
)

// StrengthThreshold is the accumulated score at which a skill counts as a
// strength: the user chose its approach at least twice.
const StrengthThreshold = 20

// Grade maps an adjusted score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 95:
		return "S"
	case score >= 85:
		return "A"
	case score >= 75:
		return "B"
	case score >= 65:
		return "C"
	case score >= 55:
		return "D"
	default:
		return "F"
	}
}

// PerformanceMultiplier averages metric health over the final world state.
// A high-polarity metric is healthy when high, a low-polarity metric when
// low. An empty metric set yields the neutral 1.0.
func PerformanceMultiplier(world map[string]int, polarity map[string]string) float64 {
	if len(world) == 0 {
		return 1.0
	}

	var total float64
	for metric, value := range world {
		if polarity[metric] == "low" {
			total += float64(100-value) / 100
		} else {
			total += float64(value) / 100
		}
	}
	return total / float64(len(world))
}

// AdjustedScore combines the mean skill score with the world-state health
// multiplier into the 0-100ish scale the grade thresholds expect.
func AdjustedScore(skillScores map[string]int, multiplier float64) float64 {
	if len(skillScores) == 0 {
		return 30
	}
	var sum int
	for _, score := range skillScores {
		sum += score
	}
	skillAverage := float64(sum) / float64(len(skillScores))
	return skillAverage*multiplier*2 + 30
}

// SplitSkills partitions skills into strengths and improvement areas by the
// fixed threshold. Both lists are name-sorted for stable output.
func SplitSkills(skillScores map[string]int) (strengths, improvements []string) {
	names := make([]string, 0, len(skillScores))
	for name := range skillScores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if skillScores[name] >= StrengthThreshold {
			strengths = append(strengths, name)
		} else {
			improvements = append(improvements, name)
		}
	}
	return strengths, improvements
}

// BestSuitedRole ranks the owner's other completed sessions by mean grade
// rank per role and returns the best-performing role. Falls back to the
// current role when there is no other evidence.
func BestSuitedRole(currentRole string, completed []*domain.Session) string {
	type tally struct {
		total int
		count int
	}
	averages := make(map[string]*tally)

	for _, s := range completed {
		if s.FinalReport == nil || s.FinalReport.OverallGrade == "" {
			continue
		}
		rank, ok := domain.GradeRank[s.FinalReport.OverallGrade]
		if !ok {
			continue
		}
		t := averages[s.Role]
		if t == nil {
			t = &tally{}
			averages[s.Role] = t
		}
		t.total += rank
		t.count++
	}

	best := currentRole
	var maxAvg float64
	roles := make([]string, 0, len(averages))
	for role := range averages {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		t := averages[role]
		avg := float64(t.total) / float64(t.count)
		if avg > maxAvg {
			maxAvg = avg
			best = role
		}
	}
	return best
}

func (s *Service) compileReport(ctx context.Context, session *domain.Session) (*domain.FinalReport, error) {
	strengths, improvements := SplitSkills(session.SkillScores)

	multiplier := PerformanceMultiplier(session.WorldState, session.MetricPolarity)
	grade := Grade(AdjustedScore(session.SkillScores, multiplier))

	// The current session has no persisted report yet, so the completed-
	// session query naturally excludes it from the aggregation.
	completed, err := s.repo.ListCompletedSessions(ctx, session.Owner)
	if err != nil {
		return nil, err
	}
	bestRole := BestSuitedRole(session.Role, completed)

	summary := s.gen.ReportSummary(ctx, session.Role, session.SkillScores, strengths, improvements)

	report := &domain.FinalReport{
		RoleAssessed:          session.Role,
		ScenariosCompleted:    len(session.Progress.Scenarios),
		SkillScores:           session.SkillScores,
		GapAnalysis:           domain.GapAnalysis{Strengths: strengths, Improvements: improvements},
		OverallGrade:          grade,
		PerformanceMultiplier: math.Round(multiplier*100) / 100,
		Recommendation:        summary,
		BestSuitedRole:        bestRole,
	}

	// The final episode's conversation survives completion, so it can feed
	// the narrative sections. A session skipped straight through has none.
	if transcript := renderTranscript(session.Messages); transcript != "" {
		report.KeyMoments = s.gen.Summarize(ctx, transcript)
		report.TranscriptFeedback = s.gen.AnalyzeImpact(ctx, transcript, session.Role).OverallFeedback
	}

	return report, nil
}

func renderTranscript(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Sender)
		b.WriteString(": ")
		b.WriteString(m.Text)
	}
	return b.String()
}
