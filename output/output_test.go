package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-dev/conclave/core"
)

const roleText = `Here is my assessment.
` + "```json" + `
{
  "assumptions": ["traffic stays moderate"],
  "proposal": "adopt a managed queue",
  "tradeoffs": ["vendor lock-in"],
  "risks": [
    {"risk": "cost overrun", "impact": "high", "mitigation": "budget alerts", "verification": "monthly review"}
  ],
  "questions": ["what is the latency target?"],
  "decision_recommendation": "adopt the managed queue"
}
` + "```"

func TestParseRoleOutput(t *testing.T) {
	out, err := ParseRoleOutput(roleText)
	require.NoError(t, err)
	assert.Equal(t, "adopt a managed queue", out.Proposal)
	assert.Equal(t, "adopt the managed queue", out.Conclusion())
	require.Len(t, out.Risks, 1)
	assert.Equal(t, "cost overrun", out.Risks[0].Risk)
	assert.Empty(t, out.BlockingQuestions)
}

func TestParseRoleOutputReportsMissingFields(t *testing.T) {
	_, err := ParseRoleOutput(`{"proposal": "just a proposal"}`)
	require.Error(t, err)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role output", verr.Subject)
	assert.Contains(t, verr.Problems, `field RoleOutput.Assumptions failed "required"`)
	assert.Contains(t, verr.Problems, `field RoleOutput.DecisionRecommendation failed "required"`)
}

func TestParseRoleOutputReportsNestedRiskFields(t *testing.T) {
	_, err := ParseRoleOutput(`{
		"assumptions": [], "proposal": "p", "tradeoffs": [],
		"risks": [{"risk": "only the risk"}],
		"questions": [], "decision_recommendation": "d"
	}`)
	require.Error(t, err)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, `field RoleOutput.Risks[0].Impact failed "required"`)
}

func TestParseRoleOutputRejectsProseWithoutJSON(t *testing.T) {
	_, err := ParseRoleOutput("I think we should use a queue.")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTopRisksCapsAtAvailable(t *testing.T) {
	out := RoleOutput{Risks: []Risk{{Risk: "a"}, {Risk: "b"}}}
	assert.Equal(t, []string{"a"}, out.TopRisks(1))
	assert.Equal(t, []string{"a", "b"}, out.TopRisks(5))
	assert.Nil(t, out.TopRisks(0))
}

func TestParseRoundSummaryDefaultsRound(t *testing.T) {
	sum, err := ParseRoundSummary(`{
		"summary": "agreed on the queue",
		"open_questions": [], "decisions": ["queue"], "risks": [], "next_steps": ["draft ADR"]
	}`, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Round)
	assert.Equal(t, "agreed on the queue", sum.Summary)

	explicit, err := ParseRoundSummary(`{
		"round": 7, "summary": "s",
		"open_questions": [], "decisions": [], "risks": [], "next_steps": []
	}`, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, explicit.Round)
}

func TestParseRecorderBundle(t *testing.T) {
	bundle, err := ParseRecorderBundle(`{
		"adr": {"context": "c"},
		"TASKS": [{"task_id": "T1"}],
		"Risks": {"risks": []}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "c", bundle.ADR["context"])
	// A bare task list is normalized into the object shape.
	list, ok := bundle.Tasks["tasks"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
	assert.Contains(t, bundle.Risks, "risks")
}

func TestParseRecorderBundleMissingSection(t *testing.T) {
	_, err := ParseRecorderBundle(`{"ADR": {}, "TASKS": {}}`)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems[0], "RISKS")
}
