package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcourtman/insightctl/internal/state"
)

func baseTenant() state.Tenant {
	return state.Tenant{
		AutonomyPolicy: state.AutonomyPolicy{
			AutonomyMode:        "policy-gated",
			ConfidenceThreshold: 0.6,
			ActionAllowlist:     []string{"notify_owner", "adjust_budget"},
			HighImpactActions:   []string{"adjust_budget"},
			BudgetGuardrailUsd:  1000,
		},
	}
}

func TestEvaluateActionPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*state.Tenant)
		action   state.RecommendedAction
		decision Decision
		reason   string
	}{
		{
			name:     "kill switch wins over everything",
			mutate:   func(t *state.Tenant) { t.AutonomyPolicy.KillSwitch = true },
			action:   state.RecommendedAction{ActionType: "notify_owner", Confidence: 0.9},
			decision: DecisionDeny,
			reason:   "kill_switch_enabled",
		},
		{
			name:     "not allowlisted",
			action:   state.RecommendedAction{ActionType: "delete_tenant", Confidence: 0.9},
			decision: DecisionDeny,
			reason:   "action_not_allowlisted",
		},
		{
			name:     "over budget",
			action:   state.RecommendedAction{ActionType: "adjust_budget", Confidence: 0.9, EstimatedBudgetImpactUsd: 5000},
			decision: DecisionReview,
			reason:   "budget_guardrail",
		},
		{
			name:     "low confidence",
			action:   state.RecommendedAction{ActionType: "notify_owner", Confidence: 0.2},
			decision: DecisionReview,
			reason:   "low_confidence",
		},
		{
			name:     "high impact still needs review even with good confidence",
			action:   state.RecommendedAction{ActionType: "adjust_budget", Confidence: 0.9, EstimatedBudgetImpactUsd: 10},
			decision: DecisionReview,
			reason:   "high_impact_requires_approval",
		},
		{
			name:     "plain allow",
			action:   state.RecommendedAction{ActionType: "notify_owner", Confidence: 0.9},
			decision: DecisionAllow,
			reason:   "policy_allow",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tenant := baseTenant()
			if tc.mutate != nil {
				tc.mutate(&tenant)
			}
			result := EvaluateAction(tenant, tc.action)
			assert.Equal(t, tc.decision, result.Decision)
			assert.Equal(t, tc.reason, result.Reason)
		})
	}
}

func TestEvaluateActionIsPure(t *testing.T) {
	tenant := baseTenant()
	action := state.RecommendedAction{ActionType: "notify_owner", Confidence: 0.9}
	first := EvaluateAction(tenant, action)
	second := EvaluateAction(tenant, action)
	assert.Equal(t, first, second)
}

func TestExecutionStateRequiresAutopilotAndAllow(t *testing.T) {
	tenant := baseTenant()
	tenant.AutonomyPolicy.AutopilotEnabled = true
	action := state.RecommendedAction{ActionType: "notify_owner", Confidence: 0.9}
	result := EvaluateAction(tenant, action)

	assert.True(t, CanAutopilot(tenant, result))
	assert.Equal(t, "executed", ExecutionState(tenant, result))

	tenant.AutonomyPolicy.AutopilotEnabled = false
	assert.False(t, CanAutopilot(tenant, result))
	assert.Equal(t, "pending", ExecutionState(tenant, result))
}
