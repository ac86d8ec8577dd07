package connectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	first := Generate("t1", "marketing", 5, now)
	second := Generate("t1", "marketing", 5, now)
	require.Equal(t, first, second)
	assert.Len(t, first, 5*len(MetricsForDomain("marketing")))
}

func TestGenerateDiffersByTenant(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	a := Generate("t1", "marketing", 3, now)
	b := Generate("t2", "marketing", 3, now)
	assert.NotEqual(t, a[0].Value, b[0].Value)
}

func TestGenerateUnknownDomainIsEmpty(t *testing.T) {
	now := time.Now()
	assert.Empty(t, Generate("t1", "nonexistent", 5, now))
}

func TestGenerateNonPositivePeriodIsEmpty(t *testing.T) {
	now := time.Now()
	assert.Empty(t, Generate("t1", "marketing", 0, now))
}

func TestGenerateCoversExactDateRange(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	facts := Generate("t1", "marketing", 3, now)
	dates := map[string]bool{}
	for _, f := range facts {
		dates[f.Date] = true
	}
	assert.Len(t, dates, 3)
	assert.True(t, dates["2026-01-15"])
	assert.True(t, dates["2026-01-13"])
}

func TestToCanonicalFactsCarriesLineage(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	generated := Generate("t1", "marketing", 1, now)
	facts := ToCanonicalFacts("t1", "google_ads", "run_1", generated, now)
	require.Len(t, facts, len(generated))
	for _, f := range facts {
		assert.Equal(t, "t1", f.TenantID)
		assert.Equal(t, "google_ads", f.Source)
		assert.Equal(t, "run_1", f.Lineage.ConnectorRunID)
		assert.Equal(t, "google_ads", f.Lineage.Provider)
	}
}

func TestCatalogSupportsMode(t *testing.T) {
	src := Catalog["google_ads"]
	assert.True(t, src.SupportsMode("ingest"))
	assert.False(t, src.SupportsMode("live"))
}

func TestDefaultBlueprintsRevopsExtendsGrowth(t *testing.T) {
	bps := DefaultBlueprints()
	growth := bps["bp_growth"]
	revops := bps["bp_revops"]
	assert.Greater(t, len(revops.Metrics), len(growth.Metrics))

	revopsIDs := map[string]bool{}
	for _, m := range revops.Metrics {
		revopsIDs[m.ID] = true
	}
	for _, m := range growth.Metrics {
		assert.True(t, revopsIDs[m.ID], m.ID)
	}
}
