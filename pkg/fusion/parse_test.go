package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantStrategy string
		wantDecision string
		wantRation   string
	}{
		{
			name:         "direct json",
			input:        `{"decision": "Admit", "rationale": "p_structured high"}`,
			wantStrategy: "direct",
			wantDecision: "Admit",
			wantRation:   "p_structured high",
		},
		{
			name:         "fenced block",
			input:        "Sure:\n```json\n{\"decision\": \"Discharge\", \"rationale\": \"stable\"}\n```\nThanks",
			wantStrategy: "fenced",
			wantDecision: "Discharge",
			wantRation:   "stable",
		},
		{
			name:         "object embedded in prose",
			input:        `Here you go {"decision": "Admit", "rationale": "sick", "extra": {"a": 1}} done`,
			wantStrategy: "braces",
			wantDecision: "Admit",
			wantRation:   "sick",
		},
		{
			name:         "trailing comma repaired",
			input:        `Answer: {"decision": "Admit", "rationale": "x",}`,
			wantStrategy: "braces_repaired",
			wantDecision: "Admit",
			wantRation:   "x",
		},
		{
			name:         "key value scan on broken json",
			input:        `"decision": "Discharge", "rationale": "looks fine" and then garbage {`,
			wantStrategy: "key_value",
			wantDecision: "Discharge",
			wantRation:   "looks fine",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, strategy, ok := Parse(tt.input, DefaultStrategies)
			require.True(t, ok)
			assert.Equal(t, tt.wantStrategy, strategy)
			assert.Equal(t, tt.wantDecision, obj["decision"])
			assert.Equal(t, tt.wantRation, obj["rationale"])
		})
	}
}

func TestParse_Failures(t *testing.T) {
	for _, input := range []string{"", "   ", "I think the patient should go home.", "[1, 2, 3]", "{not json at all"} {
		_, _, ok := Parse(input, DefaultStrategies)
		assert.False(t, ok, "input %q", input)
	}
}

func TestParse_CustomStrategyList(t *testing.T) {
	only := []Strategy{{Name: "direct", Parse: parseDirect}}
	_, _, ok := Parse("```json\n{\"decision\": \"Admit\"}\n```", only)
	assert.False(t, ok)
}
