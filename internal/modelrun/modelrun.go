// Package modelrun implements the model runner: provider chain
// construction with cooldown-aware failover, linear-extrapolation
// forecasting, z-score anomaly scanning, and policy-evaluated action
// proposal. No real LLM or ML call is made.
package modelrun

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rcourtman/insightctl/internal/facts"
	"github.com/rcourtman/insightctl/internal/metrics"
	"github.com/rcourtman/insightctl/internal/policy"
	"github.com/rcourtman/insightctl/internal/state"
)

// Task is the caller-supplied request shape for a model run.
type Task struct {
	Objective                string // forecast | anomaly
	Inputs                   []string
	OutputMetricIDs          []string
	HorizonDays              int
	Provider                 string
	PreferByo                bool
	SimulateProviderFailures []string
}

// Runner ties provider selection (via the store) to the deterministic
// forecast/anomaly math and policy-gated action proposal.
type Runner struct {
	store *state.Store
}

func New(store *state.Store) *Runner {
	return &Runner{store: store}
}

// BuildChain constructs the deduplicated, order-preserving provider
// chain for a task: task override, the tenant's BYO providers (only when
// PreferByo is set), tenant default, tenant fallbacks, then the managed
// provider as a final backstop.
func BuildChain(task Task, tenant state.Tenant) []string {
	var chain []string
	add := func(p string) {
		if p == "" {
			return
		}
		for _, existing := range chain {
			if existing == p {
				return
			}
		}
		chain = append(chain, p)
	}

	add(task.Provider)
	if task.PreferByo {
		for _, p := range tenant.ModelConfig.ByoProviders {
			add(p)
		}
	}
	add(tenant.ModelConfig.DefaultProvider)
	for _, p := range tenant.ModelConfig.FailoverChain {
		add(p)
	}
	add("managed")
	return chain
}

// Run executes one model task end to end: provider selection, the
// forecast or anomaly computation, confidence/severity scoring, and
// policy-gated action proposal.
func (r *Runner) Run(tenant state.Tenant, task Task, now time.Time) (state.ModelRun, state.Insight, error) {
	if len(task.OutputMetricIDs) == 0 {
		return state.ModelRun{}, state.Insight{}, fmt.Errorf("outputMetricIds is required")
	}
	metricID := task.OutputMetricIDs[0]

	chain := BuildChain(task, tenant)
	failing := func(provider string) bool {
		for _, f := range task.SimulateProviderFailures {
			if f == provider {
				return true
			}
		}
		return strings.Contains(provider, "down")
	}

	selected, trace, allFailed := r.store.ProviderSelect(tenant.ID, now, chain, failing, tenant.ModelConfig.ProviderCooldownMinutes)
	for _, entry := range trace {
		if strings.HasPrefix(entry, "failed:") {
			metrics.Get().RecordProviderFailover(strings.TrimPrefix(entry, "failed:"))
		}
	}

	var warnings []string
	if allFailed {
		selected = "managed"
		warnings = append(warnings, "provider_failover_exhausted_using_managed")
	} else if len(trace) > 1 {
		warnings = append(warnings, "provider_failover_used")
	}

	tenantFacts := r.store.FactsForTenant(tenant.ID, "")
	series, err := facts.QueryMetric(tenantFacts, metricID, facts.GrainDay, "", "")
	if err != nil {
		return state.ModelRun{}, state.Insight{}, err
	}
	n := len(series.Points)

	var forecastPoints []state.ForecastPoint
	var anomalies []state.AnomalyPoint
	switch task.Objective {
	case "anomaly":
		anomalies, warnings = detectAnomalies(series, warnings)
	default:
		forecastPoints, warnings = forecast(series, task.HorizonDays, warnings)
	}

	confidence := confidenceScore(n, warnings)
	severity := severityFromConfidence(confidence)

	status := "completed"
	if len(warnings) > 0 {
		status = "completed_with_warnings"
	}

	run := r.store.AppendModelRun(state.ModelRun{
		TenantID:        tenant.ID,
		Objective:       task.Objective,
		Provider:        selected,
		ProviderTrace:   state.ProviderTrace{Chain: chain, FailoverTrace: trace},
		MetricID:        metricID,
		Status:          status,
		QualityWarnings: warnings,
	})

	actions := proposeActions(tenant, task.Objective, confidence)

	insight := r.store.AppendInsight(state.Insight{
		TenantID:           tenant.ID,
		ModelRunID:         run.ID,
		Severity:           severity,
		Confidence:         confidence,
		Objective:          task.Objective,
		MetricID:           metricID,
		Summary:            summarize(task.Objective, metricID, confidence, len(forecastPoints), len(anomalies)),
		Forecast:           forecastPoints,
		Anomalies:          anomalies,
		RecommendedActions: actions,
		QualityWarnings:    warnings,
	})

	return run, insight, nil
}

func forecast(series facts.Series, horizonDays int, warnings []string) ([]state.ForecastPoint, []string) {
	n := len(series.Points)
	if n < 2 {
		return nil, warnings
	}
	if n < 14 {
		warnings = append(warnings, "insufficient_history_for_reliable_modeling")
	}
	first := series.Points[0].Value
	last := series.Points[n-1].Value
	slope := (last - first) / math.Max(1, float64(n-1))

	if horizonDays <= 0 {
		horizonDays = 7
	}
	points := make([]state.ForecastPoint, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		points = append(points, state.ForecastPoint{Step: i, Value: round2(last + slope*float64(i))})
	}
	return points, warnings
}

func detectAnomalies(series facts.Series, warnings []string) ([]state.AnomalyPoint, []string) {
	n := len(series.Points)
	if n < 10 {
		warnings = append(warnings, "insufficient_history_for_reliable_modeling")
		return nil, warnings
	}

	var sum float64
	for _, p := range series.Points {
		sum += p.Value
	}
	mean := sum / float64(n)

	var variance float64
	for _, p := range series.Points {
		d := p.Value - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(n))

	var out []state.AnomalyPoint
	for _, p := range series.Points {
		if stdev == 0 {
			continue
		}
		z := (p.Value - mean) / stdev
		if math.Abs(z) > 1.8 {
			out = append(out, state.AnomalyPoint{Date: p.Bucket, Value: p.Value, ZHint: round2(z)})
		}
	}
	return out, warnings
}

func confidenceScore(n int, warnings []string) float64 {
	var base float64
	switch {
	case n >= 30:
		base = 0.84
	case n >= 14:
		base = 0.72
	default:
		base = 0.54
	}
	base -= 0.10 * float64(len(warnings))
	if base < 0 {
		base = 0
	}
	return round2(base)
}

func severityFromConfidence(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "low"
	case confidence >= 0.65:
		return "medium"
	default:
		return "high"
	}
}

// proposeActions builds the candidate actions for a run's objective and
// runs each through the policy engine to set its decision and
// executionState.
func proposeActions(tenant state.Tenant, objective string, confidence float64) []state.RecommendedAction {
	var candidates []state.RecommendedAction
	if objective == "forecast" {
		candidates = []state.RecommendedAction{
			{ID: "act_" + tenant.ID + "_budget", ActionType: "adjust_budget", TargetSystem: "google_ads", RequiresApproval: true, Confidence: confidence, EstimatedBudgetImpactUsd: 2500},
			{ID: "act_" + tenant.ID + "_report", ActionType: "create_report", TargetSystem: "reporting", Confidence: confidence, EstimatedBudgetImpactUsd: 0},
		}
	} else {
		candidates = []state.RecommendedAction{
			{ID: "act_" + tenant.ID + "_notify", ActionType: "notify_owner", TargetSystem: "slack", Confidence: confidence, EstimatedBudgetImpactUsd: 0},
		}
	}

	for i := range candidates {
		result := policy.EvaluateAction(tenant, candidates[i])
		candidates[i].PolicyDecision = string(result.Decision)
		candidates[i].PolicyReason = result.Reason
		candidates[i].ExecutionState = policy.ExecutionState(tenant, result)
	}
	return candidates
}

func summarize(objective, metricID string, confidence float64, forecastPoints, anomalyPoints int) string {
	switch objective {
	case "anomaly":
		return fmt.Sprintf("Scanned %s for anomalies: %d flagged, confidence=%.2f", metricID, anomalyPoints, confidence)
	default:
		return fmt.Sprintf("Forecasted %s across %d steps, confidence=%.2f", metricID, forecastPoints, confidence)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

