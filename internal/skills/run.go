package skills

import (
	"sort"
	"strings"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

// Payload is the caller-supplied shape for dispatching a skill.
type Payload struct {
	SkillID               string
	Channel               string
	Intent                string
	Input                 string
	RequestedTools        []string
	EstimatedTokens        int
	ContextTokensEstimate int
	TimeoutMs              int
	GenerateReport         bool
}

// ModelAdapter dispatches model.run tool calls to the model runner
// without skills importing it directly.
type ModelAdapter interface {
	RunModel(tenant state.Tenant, objective, metricID string) (state.ModelRun, state.Insight, error)
}

// ReportAdapter dispatches reports.generate tool calls to the report
// builder.
type ReportAdapter interface {
	GenerateReport(tenant state.Tenant, insight *state.Insight) (state.Report, error)
}

// Adapters bundles the two injected collaborators a skill run may call.
type Adapters struct {
	Model   ModelAdapter
	Report  ReportAdapter
}

// Dispatch runs a skill pack end to end: route, verify signature,
// enforce guardrails, execute allowed tools, and apply post-checks.
func (s *Service) Dispatch(tenant state.Tenant, payload Payload, adapters Adapters) (state.SkillRun, error) {
	active := s.store.ActiveInstalledSkills(tenant.ID)

	sk, routing, err := route(active, payload)
	if err != nil {
		return state.SkillRun{}, err
	}

	if sk.Signature != Sign(sk.Manifest) {
		return state.SkillRun{}, apierror.Forbidden("signature verification failed")
	}

	var guardChecks []string
	if tenant.AutonomyPolicy.KillSwitch {
		return state.SkillRun{}, apierror.Forbidden("tenant kill switch is enabled")
	}
	guardChecks = append(guardChecks, "tenant_kill_switch_ok")

	if sk.Manifest.Guardrails.KillSwitch {
		return state.SkillRun{}, apierror.Forbidden("skill kill switch is enabled")
	}
	guardChecks = append(guardChecks, "skill_kill_switch_ok")

	allowedTools := allowedToolIDs(sk.Manifest)
	for _, t := range payload.RequestedTools {
		if !containsStr(allowedTools, t) {
			return state.SkillRun{}, apierror.Forbidden("tool %q is not allowed by this skill", t)
		}
	}
	guardChecks = append(guardChecks, "requested_tools_allowed")

	g := sk.Manifest.Guardrails
	if payload.EstimatedTokens > g.TokenBudget {
		return state.SkillRun{}, apierror.BadRequest("estimatedTokens %d exceeds tokenBudget %d", payload.EstimatedTokens, g.TokenBudget)
	}
	if payload.ContextTokensEstimate > g.ContextTokenBudget {
		return state.SkillRun{}, apierror.BadRequest("contextTokensEstimate %d exceeds contextTokenBudget %d", payload.ContextTokensEstimate, g.ContextTokenBudget)
	}
	if payload.TimeoutMs > g.TimeBudgetMs {
		return state.SkillRun{}, apierror.BadRequest("timeoutMs %d exceeds timeBudgetMs %d", payload.TimeoutMs, g.TimeBudgetMs)
	}
	guardChecks = append(guardChecks, "budgets_ok")

	artifacts, qualityScore := executeTools(s.store, tenant, sk, payload, adapters)

	confidence := confidenceFromArtifacts(artifacts)
	var warnings []string
	status := "completed"
	if confidence < g.ConfidenceMin {
		status = "completed_with_warning"
		warnings = append(warnings, "confidence_below_skill_threshold")
	}
	if qualityScore >= 0 && qualityScore < 0.70 {
		status = "completed_with_warning"
		warnings = append(warnings, "low_data_quality")
	}

	run := s.store.AppendSkillRun(state.SkillRun{
		TenantID:   tenant.ID,
		SkillID:    sk.ID,
		BaseID:     sk.BaseID,
		Channel:    payload.Channel,
		Intent:     payload.Intent,
		Status:     status,
		Confidence: confidence,
		Artifacts:  artifacts.SkillRunArtifacts,
		Trace: state.SkillRunTrace{
			Routing: routing,
			Tools: state.ToolTrace{
				Requested:             payload.RequestedTools,
				Allowed:               allowedTools,
				DeterministicExecuted: artifacts.deterministicExecuted,
			},
			Guardrails: guardChecks,
		},
		ReasoningHints: warnings,
	})
	return run, nil
}

func route(active []state.InstalledSkill, payload Payload) (state.InstalledSkill, string, error) {
	if payload.SkillID != "" {
		for _, sk := range active {
			if sk.ID == payload.SkillID || sk.BaseID == payload.SkillID {
				return sk, "direct:" + sk.ID, nil
			}
		}
	}

	sorted := append([]state.InstalledSkill{}, active...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return precedenceWeight(sorted[i].Manifest.Precedence) > precedenceWeight(sorted[j].Manifest.Precedence)
	})

	best := -1
	var bestSkill state.InstalledSkill
	haystack := strings.ToLower(payload.Intent + " " + payload.Input)
	for _, sk := range sorted {
		score := 0
		for _, ch := range sk.Manifest.Triggers.Channels {
			if ch == payload.Channel {
				score++
			}
		}
		for _, intent := range sk.Manifest.Triggers.Intents {
			if strings.Contains(haystack, strings.ToLower(intent)) {
				score += 3
			}
		}
		if score > best {
			best = score
			bestSkill = sk
		}
	}
	if best <= 0 {
		return state.InstalledSkill{}, "", apierror.NotFound("no installed skill matched this request")
	}
	return bestSkill, "scored:" + bestSkill.ID, nil
}

func precedenceWeight(p string) int {
	switch p {
	case "workspace":
		return 3
	case "local":
		return 2
	case "bundled":
		return 1
	default:
		return 0
	}
}

func allowedToolIDs(m state.SkillManifest) []string {
	var out []string
	for _, t := range m.Tools {
		if t.Allow {
			out = append(out, t.ID)
		}
	}
	return out
}

func containsStr(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func executeTools(store *state.Store, tenant state.Tenant, sk state.InstalledSkill, payload Payload, adapters Adapters) (artifactsWithTrace, float64) {
	artifacts := artifactsWithTrace{
		SkillRunArtifacts: state.SkillRunArtifacts{DeterministicOutputs: map[string]any{}},
	}
	qualityScore := -1.0

	for _, toolID := range payload.RequestedTools {
		if !isAllowed(sk.Manifest, toolID) {
			continue
		}
		switch toolID {
		case "compute.finance_snapshot":
			snap := financeSnapshot(store.FactsForTenant(tenant.ID, "finance"))
			artifacts.DeterministicOutputs["financeSnapshot"] = snap
			artifacts.deterministicExecuted = append(artifacts.deterministicExecuted, toolID)

		case "compute.data_quality_snapshot":
			snap := dataQualitySnapshot(store, tenant.ID)
			artifacts.DeterministicOutputs["dataQualitySnapshot"] = snap
			if q, ok := snap["qualityScore"].(float64); ok {
				qualityScore = q
			}
			artifacts.deterministicExecuted = append(artifacts.deterministicExecuted, toolID)

		case "compute.deal_desk_snapshot":
			snap := dealDeskSnapshot(store.FactsForTenant(tenant.ID, "crm"))
			artifacts.DeterministicOutputs["dealDeskSnapshot"] = snap
			artifacts.deterministicExecuted = append(artifacts.deterministicExecuted, toolID)

		case "model.run":
			if adapters.Model == nil {
				continue
			}
			objective := "forecast"
			lower := strings.ToLower(payload.Intent)
			if strings.Contains(lower, "anomaly") || strings.Contains(lower, "quality") {
				objective = "anomaly"
			}
			metricID := targetMetricForBase(sk.BaseID)
			run, insight, err := adapters.Model.RunModel(tenant, objective, metricID)
			if err == nil {
				artifacts.Model = &run
				artifacts.Models = append(artifacts.Models, run)
				artifacts.lastInsight = &insight
			}

		case "reports.generate":
			if !payload.GenerateReport || adapters.Report == nil {
				continue
			}
			report, err := adapters.Report.GenerateReport(tenant, artifacts.lastInsight)
			if err == nil {
				artifacts.Report = &report
				artifacts.Reports = append(artifacts.Reports, report)
			}
		}
	}
	return artifacts, qualityScore
}

// artifactsWithTrace carries execution bookkeeping alongside the stored artifacts shape.
type artifactsWithTrace struct {
	state.SkillRunArtifacts
	deterministicExecuted []string
	lastInsight           *state.Insight
}

func isAllowed(m state.SkillManifest, toolID string) bool {
	for _, t := range m.Tools {
		if t.ID == toolID {
			return t.Allow
		}
	}
	return false
}

func targetMetricForBase(baseID string) string {
	lower := strings.ToLower(baseID)
	switch {
	case strings.Contains(lower, "finance"):
		return "cash_in"
	case strings.Contains(lower, "deal"), strings.Contains(lower, "crm"):
		return "pipeline_value"
	default:
		return "revenue"
	}
}

func financeSnapshot(facts []state.Fact) map[string]any {
	var cashIn, cashOut float64
	for _, f := range facts {
		switch f.MetricID {
		case "cash_in":
			cashIn += f.Value
		case "cash_out":
			cashOut += f.Value
		}
	}
	return map[string]any{
		"cashIn":  cashIn,
		"cashOut": cashOut,
		"profit":  cashIn - cashOut,
	}
}

func dataQualitySnapshot(store *state.Store, tenantID string) map[string]any {
	facts := store.FactsForTenant(tenantID, "")
	quality := 0.0
	if len(facts) > 0 {
		quality = 0.9
	}
	return map[string]any{
		"factCount":    len(facts),
		"qualityScore": quality,
	}
}

func dealDeskSnapshot(facts []state.Fact) map[string]any {
	var pipeline, closed float64
	for _, f := range facts {
		switch f.MetricID {
		case "pipeline_value":
			pipeline += f.Value
		case "deals_closed":
			closed += f.Value
		}
	}
	return map[string]any{
		"pipelineValue": pipeline,
		"dealsClosed":   closed,
	}
}

func confidenceFromArtifacts(a artifactsWithTrace) float64 {
	if a.lastInsight != nil {
		return a.lastInsight.Confidence
	}
	return 1.0
}
