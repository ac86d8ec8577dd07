// Package policy evaluates recommended actions against a tenant's
// autonomy policy. It is a pure function over state.Tenant and
// state.RecommendedAction — no store access, no I/O.
package policy

import "github.com/rcourtman/insightctl/internal/state"

// Decision is one of allow, review, deny.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionDeny   Decision = "deny"
)

// Result is the outcome of evaluating one action against one tenant's policy.
type Result struct {
	Decision Decision
	Reason   string
}

// EvaluateAction runs the precedence chain: kill switch, allowlist
// membership, budget guardrail, confidence threshold, high-impact
// review, and finally policy_allow.
func EvaluateAction(tenant state.Tenant, action state.RecommendedAction) Result {
	p := tenant.AutonomyPolicy

	if p.KillSwitch {
		return Result{DecisionDeny, "kill_switch_enabled"}
	}
	if !contains(p.ActionAllowlist, action.ActionType) {
		return Result{DecisionDeny, "action_not_allowlisted"}
	}
	if action.EstimatedBudgetImpactUsd > p.BudgetGuardrailUsd {
		return Result{DecisionReview, "budget_guardrail"}
	}
	if action.Confidence < p.ConfidenceThreshold {
		return Result{DecisionReview, "low_confidence"}
	}
	if contains(p.HighImpactActions, action.ActionType) {
		return Result{DecisionReview, "high_impact_requires_approval"}
	}
	return Result{DecisionAllow, "policy_allow"}
}

// CanAutopilot reports whether a policy result may execute without
// human approval: autopilot must be enabled, autonomy mode must be
// policy-gated, and the decision must be allow.
func CanAutopilot(tenant state.Tenant, result Result) bool {
	p := tenant.AutonomyPolicy
	return p.AutopilotEnabled && p.AutonomyMode == "policy-gated" && result.Decision == DecisionAllow
}

// ExecutionState derives the action's executionState field from the
// autopilot decision: executed when autopilot may run it immediately,
// pending otherwise (awaiting human approval or rejection).
func ExecutionState(tenant state.Tenant, result Result) string {
	if CanAutopilot(tenant, result) {
		return "executed"
	}
	return "pending"
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
