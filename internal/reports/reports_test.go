package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/facts"
	"github.com/rcourtman/insightctl/internal/state"
)

func TestGenerateUsesDefaultMetricsAndGrain(t *testing.T) {
	store := state.New(nil)
	tenant := state.Tenant{ID: "t1"}
	store.InsertFact(state.Fact{TenantID: "t1", Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 100, Source: "x"})

	svc := New(store)
	report, err := svc.Generate(tenant, GenerateInput{})
	require.NoError(t, err)

	assert.Equal(t, "Performance report", report.Title)
	assert.Equal(t, "markdown", report.Format)
	assert.Contains(t, report.Body, "revenue")
	assert.Contains(t, report.Body, "no model run yet")
	assert.Equal(t, []string{"profit", "revenue", "spend"}, report.MetricIDs)
}

func TestGenerateIncludesLatestInsight(t *testing.T) {
	store := state.New(nil)
	tenant := state.Tenant{ID: "t1"}
	store.AppendInsight(state.Insight{TenantID: "t1", Confidence: 0.8, RecommendedActions: []state.RecommendedAction{{ID: "a1"}}})

	svc := New(store)
	report, err := svc.Generate(tenant, GenerateInput{MetricIDs: []string{"revenue"}, Grain: facts.GrainDay})
	require.NoError(t, err)

	assert.Contains(t, report.Body, "confidence=0.80")
	assert.Contains(t, report.Summary, "1 recommended action(s)")
}

func TestGeneratePropagatesQueryErrors(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	_, err := svc.Generate(state.Tenant{ID: "t1"}, GenerateInput{MetricIDs: []string{""}})
	require.Error(t, err)
}

func TestRenderPDFProducesNonEmptyBytes(t *testing.T) {
	report := state.Report{Title: "Weekly digest", Body: "# Weekly digest\n\n- revenue: total=100"}
	out := RenderPDF(report)
	assert.NotEmpty(t, out)
}
