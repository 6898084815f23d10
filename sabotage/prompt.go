package sabotage

import (
	"strings"
)

// MaxDocContextRunes bounds the documentation excerpt embedded in a prompt.
const MaxDocContextRunes = 4000

// PromptInput carries everything the prompt depends on.
type PromptInput struct {
	Code       string
	Category   Category
	Pattern    ChaosPattern
	DocContext string
	EndGoal    string
}

// BuildPrompt renders the saboteur instruction text. It is deterministic in its input.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	sb.WriteString(`You are the "Code Saboteur". Your goal is to inject a realistic bug into the user's Python code.`)
	sb.WriteString("\n")
	if in.EndGoal != "" {
		sb.WriteString("\nUser's end goal (intended behavior): ")
		sb.WriteString(in.EndGoal)
		sb.WriteString("\n")
	}

	sb.WriteString("\nUser Code:\n```python\n")
	sb.WriteString(in.Code)
	sb.WriteString("\n```\n")

	if in.DocContext != "" {
		sb.WriteString("\nSkill / documentation context (use to make the bug realistic and aligned with this skill):\n")
		sb.WriteString(TruncateRunes(in.DocContext, MaxDocContextRunes))
		sb.WriteString("\n")
	}

	sb.WriteString("\nSabotage Type: ")
	sb.WriteString(in.Category.Upper())
	sb.WriteString("\nSpecific Tactic: ")
	sb.WriteString(in.Pattern.Name)
	sb.WriteString(" (")
	sb.WriteString(in.Pattern.Description)
	sb.WriteString(")\n")

	sb.WriteString(`
Instructions:
1. Modify the code to introduce a subtle bug matching the tactic.
2. Keep the code mostly identical, just change the specific part.
3. Return ONLY a JSON object with exactly the fields sabotagedCode, explanation and type (no markdown, no extra text). In sabotagedCode, use escaped newlines (\n) not actual line breaks:
{"sabotagedCode": "line1\nline2\nline3", "explanation": "A short cryptic hint, in a gamified way, like a treasure hunt clue, but keep it short.", "type": "`)
	sb.WriteString(string(in.Category))
	sb.WriteString(`"}`)

	return sb.String()
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
