package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

type stubModelAdapter struct {
	called bool
	run    state.ModelRun
	insight state.Insight
	err     error
}

func (s *stubModelAdapter) RunModel(tenant state.Tenant, objective, metricID string) (state.ModelRun, state.Insight, error) {
	s.called = true
	return s.run, s.insight, s.err
}

type stubReportAdapter struct {
	called bool
	report state.Report
}

func (s *stubReportAdapter) GenerateReport(tenant state.Tenant, insight *state.Insight) (state.Report, error) {
	s.called = true
	return s.report, nil
}

func installSkill(t *testing.T, store *state.Store, tenantID string) state.InstalledSkill {
	t.Helper()
	svc := New(store)
	sk, err := svc.Install(tenantID, "finance-digest", validManifest(), true)
	require.NoError(t, err)
	return sk
}

func TestDispatchRejectsTamperedSignature(t *testing.T) {
	store := state.New(nil)
	tenantID := "t1"
	sk := installSkill(t, store, tenantID)

	// Tamper with the stored manifest without re-signing; the signature
	// check must fire before any tool executes.
	store.MutateInstalledSkill(sk.InstallID, func(s *state.InstalledSkill) {
		s.Manifest.Name = "tampered"
	})

	model := &stubModelAdapter{}
	svc := New(store)
	_, err := svc.Dispatch(state.Tenant{ID: tenantID}, Payload{SkillID: "finance-digest", RequestedTools: []string{"model.run"}}, Adapters{Model: model})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
	assert.False(t, model.called)
}

func TestDispatchDeniesWhenTenantKillSwitchEnabled(t *testing.T) {
	store := state.New(nil)
	installSkill(t, store, "t1")
	svc := New(store)

	tenant := state.Tenant{ID: "t1", AutonomyPolicy: state.AutonomyPolicy{KillSwitch: true}}
	_, err := svc.Dispatch(tenant, Payload{SkillID: "finance-digest"}, Adapters{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
}

func TestDispatchRejectsDisallowedRequestedTool(t *testing.T) {
	store := state.New(nil)
	installSkill(t, store, "t1")
	svc := New(store)

	_, err := svc.Dispatch(state.Tenant{ID: "t1"}, Payload{SkillID: "finance-digest", RequestedTools: []string{"model.run"}}, Adapters{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
}

func TestDispatchExecutesDeterministicTool(t *testing.T) {
	store := state.New(nil)
	store.InsertFact(state.Fact{TenantID: "t1", Domain: "finance", MetricID: "cash_in", Date: "2026-01-01", Value: 500, Source: "stripe"})
	installSkill(t, store, "t1")
	svc := New(store)

	run, err := svc.Dispatch(state.Tenant{ID: "t1"}, Payload{SkillID: "finance-digest", RequestedTools: []string{"compute.finance_snapshot"}}, Adapters{})
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Contains(t, run.Trace.Tools.DeterministicExecuted, "compute.finance_snapshot")
	snap, ok := run.Artifacts.DeterministicOutputs["financeSnapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 500.0, snap["cashIn"])
}

func TestDispatchRoutesByIntentWhenNoSkillIDGiven(t *testing.T) {
	store := state.New(nil)
	installSkill(t, store, "t1")
	svc := New(store)

	run, err := svc.Dispatch(state.Tenant{ID: "t1"}, Payload{Channel: "slack", Intent: "give me a finance summary", RequestedTools: []string{"compute.finance_snapshot"}}, Adapters{})
	require.NoError(t, err)
	assert.Equal(t, "finance-digest@1.0.0", run.SkillID)
}

func TestDispatchFailsWhenNoSkillMatches(t *testing.T) {
	store := state.New(nil)
	installSkill(t, store, "t1")
	svc := New(store)

	_, err := svc.Dispatch(state.Tenant{ID: "t1"}, Payload{Channel: "email", Intent: "unrelated nonsense"}, Adapters{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestDispatchEnforcesTokenBudget(t *testing.T) {
	store := state.New(nil)
	installSkill(t, store, "t1")
	svc := New(store)

	_, err := svc.Dispatch(state.Tenant{ID: "t1"}, Payload{SkillID: "finance-digest", EstimatedTokens: 999999}, Adapters{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}
