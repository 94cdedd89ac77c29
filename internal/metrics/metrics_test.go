package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

func TestObserveInference(t *testing.T) {
	runs := testutil.ToFloat64(inferenceRuns)
	fired := testutil.ToFloat64(rulesFired)
	diagnoses := testutil.ToFloat64(diagnosesReported)

	ObserveInference(models.InferenceResult{
		Passes: 2,
		Trace: []models.TraceEntry{
			{RuleID: "r1", Fired: true},
			{RuleID: "r2", Fired: false},
			{RuleID: "r3", Fired: true},
		},
		Diagnoses: []models.Diagnosis{{RuleID: "r1"}},
	})

	assert.Equal(t, runs+1, testutil.ToFloat64(inferenceRuns))
	assert.Equal(t, fired+2, testutil.ToFloat64(rulesFired))
	assert.Equal(t, diagnoses+1, testutil.ToFloat64(diagnosesReported))
}

func TestKnowledgeMutation(t *testing.T) {
	before := testutil.ToFloat64(kbMutations.WithLabelValues("add_rule", OutcomeRejected))
	KnowledgeMutation("add_rule", OutcomeRejected)
	assert.Equal(t, before+1, testutil.ToFloat64(kbMutations.WithLabelValues("add_rule", OutcomeRejected)))
}

func TestToolCall(t *testing.T) {
	before := testutil.ToFloat64(toolCalls.WithLabelValues("diagnose", OutcomeOK))
	ToolCall("diagnose", OutcomeOK, 0.002)
	assert.Equal(t, before+1, testutil.ToFloat64(toolCalls.WithLabelValues("diagnose", OutcomeOK)))
}
