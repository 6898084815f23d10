package sabotage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offByOne = ChaosPattern{Name: "Off By One", Description: "Shift a range bound or slice index by one"}

func TestBuildPrompt_SectionOrder(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Code:       "for i in range(10):\n    print(i)",
		Category:   CategoryLogic,
		Pattern:    offByOne,
		DocContext: "range(stop) yields 0..stop-1",
		EndGoal:    "print the digits 0 to 9",
	})

	markers := []string{
		`"Code Saboteur"`,
		"User's end goal (intended behavior): print the digits 0 to 9",
		"```python\nfor i in range(10):\n    print(i)\n```",
		"documentation context",
		"range(stop) yields 0..stop-1",
		"Sabotage Type: LOGIC",
		"Specific Tactic: Off By One (Shift a range bound or slice index by one)",
		"Instructions:",
		`"type": "logic"}`,
	}

	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q out of order", m)
		last = idx
	}
	assert.True(t, strings.HasSuffix(prompt, `"type": "logic"}`))
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Code: "x = 1", Category: CategorySyntax, Pattern: offByOne})

	assert.NotContains(t, prompt, "end goal")
	assert.NotContains(t, prompt, "documentation context")
	assert.Contains(t, prompt, "Sabotage Type: SYNTAX")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	in := PromptInput{Code: "x = 1", Category: CategorySemantic, Pattern: offByOne, DocContext: "ctx"}
	assert.Equal(t, BuildPrompt(in), BuildPrompt(in))
}

func TestBuildPrompt_TruncatesDocContext(t *testing.T) {
	doc := strings.Repeat("ü", MaxDocContextRunes) + "TAIL"
	prompt := BuildPrompt(PromptInput{Code: "x = 1", Category: CategoryLogic, Pattern: offByOne, DocContext: doc})

	assert.Contains(t, prompt, strings.Repeat("ü", MaxDocContextRunes))
	assert.NotContains(t, prompt, "TAIL")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncateRunes("héllo", 5))
	assert.Equal(t, "hé", TruncateRunes("héllo", 2))
	assert.Equal(t, "", TruncateRunes("héllo", 0))
	assert.Equal(t, "", TruncateRunes("", 3))
}
