package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okonev/careerdojo/internal/domain"
)

// Prompt templates for the generation ops. The deterministic local engine
// keys off distinctive phrases in these templates ("Roleplay Mode",
// "leadership options", "performance summary", ...), so the wording here and
// the keyword sniffing in local.go move together.

const summarizeTemplate = `Analyze the following professional simulation transcript.
Extract 3-5 concise, evidence-based bullet points of what the user DID.
Focus on actions, specific decisions, and tone.
Example: 'Used a collaborative tone when unblocking developers.'
Transcript:
`

func summarizePrompt(transcript string) string {
	return summarizeTemplate + transcript
}

func impactPrompt(transcript, role string, competencies []string) string {
	focus := "the core competencies of the role"
	if len(competencies) > 0 {
		focus = strings.Join(competencies, ", ")
	}
	return fmt.Sprintf(`You are a Senior Executive evaluating a %s. Analyse the transcript.
Evaluate against these competencies: %s.
Return ONLY a JSON object:
{
  "scores": [
    { "competency": "string", "score": number, "evidence": "string" }
  ],
  "overallFeedback": "string"
}
Transcript:
%s`, role, focus, transcript)
}

func worldStateLines(world map[string]int) string {
	if len(world) == 0 {
		return "No metrics available."
	}
	metrics := make([]string, 0, len(world))
	for k := range world {
		metrics = append(metrics, k)
	}
	sort.Strings(metrics)

	var b strings.Builder
	for i, m := range metrics {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %d/100", m, world[m])
	}
	return b.String()
}

func historyLines(history []domain.Message, userRole, stakeholder string) string {
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := strings.ToUpper(stakeholder)
		if m.Sender == domain.SenderUser {
			speaker = strings.ToUpper(userRole)
		}
		fmt.Fprintf(&b, "%s: %s", speaker, m.Text)
	}
	return b.String()
}

func replyPrompt(history []domain.Message, stakeholder, scenario string, world map[string]int, userRole string) string {
	return fmt.Sprintf(`Roleplay Mode: ACTIVE.
You are roleplaying as "%[1]s", with the job title "%[1]s".
You are currently in a high-stakes meeting with the %[2]s.

SCENARIO CONTEXT:
%[3]s

YOUR CURRENT WORLD STATE:
%[4]s

YOUR GOAL:
You are a realistic stakeholder. You have your own professional agenda (the SCENARIO CONTEXT) which naturally conflicts with the %[2]s's perspective.
- Be firm and stick to your goal, but stay professional.
- Acknowledge the %[2]s's reasonable points, but explain the constraints that make it difficult to agree.
- Do NOT be an unreasonable villain; be a difficult colleague/partner.
- CRITICAL: You are NOT the %[2]s. Do not do their job for them. You represent your own department's interests.

Conversation History:
%[5]s

Reply ONLY as "%[1]s". Keep it SHORT (1-2 sentences). Be firm and challenging.
Response:`, stakeholder, userRole, scenario, worldStateLines(world), historyLines(history, userRole, stakeholder))
}

func mcqPrompt(history []domain.Message, scenario string, world map[string]int, role string) string {
	latest := "Starting the conversation."
	if len(history) > 0 {
		latest = history[len(history)-1].Text
	}
	return fmt.Sprintf(`You are a leadership development expert. Generate 3 distinct leadership options.

CONTEXT:
- Role: %s
- Scenario: %s
- World State:
%s
- Last Message from Stakeholder: "%s"

GENERATE 3 OPTIONS:
1. RELATIONSHIP: Focus on empathy and people.
   - Satisfies: Long-term trust, psychological safety.
   - Violates: Immediate efficiency or strict rules.
2. RESULTS: Focus on deadlines, data, and shipping.
   - Satisfies: Project velocity, revenue, client satisfaction.
   - Violates: Team morale or long-term quality.
3. BOUNDARY: Focus on standards, rules, and professional limits.
   - Satisfies: Professional standards, legal compliance, role clarity.
   - Violates: Short-term likability or flexibility.

GROUNDING RULES:
- Options must be a direct response to the last message.
- Sound like a real leader.

Return ONLY a valid JSON array.
JSON FORMAT:
[
  {
    "text": "The response text...",
    "approach": "Relationship" | "Results" | "Boundary",
    "satisfies": "One short phrase (e.g., 'Team Trust')",
    "violates": "One short phrase (e.g., 'Deadline Efficiency')"
  }
]`, role, scenario, worldStateLines(world), latest)
}

func turnAnalysisPrompt(lastUserMessage, goal, mood string) string {
	return fmt.Sprintf(`Real-Time Analysis.
Evaluate the User's last message: "%s"
Context: User is trying to "%s".
Opponent is "%s".

Rate the User (0-100):
- Empathy: Did they acknowledge feelings?
- Professionalism: Did they stay calm?
- Strategy: did they move towards the goal?

Return ONLY valid JSON:
{
  "empathy": 0-100,
  "professionalism": 0-100,
  "notes": "One short insight (max 10 words)"
}`, lastUserMessage, goal, mood)
}

func reportSummaryPrompt(role string, skillScores map[string]int, strengths, improvements []string) string {
	skills := make([]string, 0, len(skillScores))
	for k := range skillScores {
		skills = append(skills, k)
	}
	sort.Strings(skills)

	var scoreLines strings.Builder
	for i, s := range skills {
		if i > 0 {
			scoreLines.WriteByte('\n')
		}
		fmt.Fprintf(&scoreLines, "- %s: %d points", s, skillScores[s])
	}

	return fmt.Sprintf(`You are a Senior Executive Coach. Analyze this simulation performance.

Role: %s
Skill Performance:
%s

Strengths Identified: %s
Areas for Improvement: %s

Write a professional 2-3 sentence performance summary for the user.
Sound insightful and encouraging. Focus on behaviors.
Summary:`, role, scoreLines.String(), strings.Join(strengths, ", "), strings.Join(improvements, ", "))
}

func personaPrompt(role string) string {
	return fmt.Sprintf(`System Design: Persona Generation.
Create a detailed persona for a professional simulation.
Target User Role: %[1]s

Generate a character who will OPPOSE the user.
- Name: A realistic corporate name.
- Role: Who are they?
- Mood: Their initial emotional state.
- Mission Briefing:
    - Situation: A specific challenge relevant to %[1]s.
    - Objective: What must the user achieve?
    - Stakes: Consequences of failure.
- FirstMessage: An opening line that establishes the problem.

Return ONLY valid JSON:
{
  "name": "Name",
  "role": "Job Title",
  "mood": "Adjective",
  "briefing": {
    "situation": "Context description",
    "objective": "Clear goal",
    "stakes": "Consequences"
  },
  "firstMessage": "Opening line"
}`, role)
}

func scoreTextPrompt(text, prompt string, rubric []RubricCriterion) string {
	var criteria strings.Builder
	for i, c := range rubric {
		if i > 0 {
			criteria.WriteByte('\n')
		}
		fmt.Fprintf(&criteria, "- %s (%d pts)", c.Criterion, c.MaxPoints)
	}
	return fmt.Sprintf(`Score this response:
PROMPT: %s
RESPONSE: %s
RUBRIC:
%s
Return JSON with totalScore, confidence, evidence, breakdown.`, prompt, text, criteria.String())
}
