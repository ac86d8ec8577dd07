package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

func liveConn() state.SourceConnection {
	return state.SourceConnection{
		ID:     "conn_1",
		Mode:   "live",
		Status: "active",
		QueryPolicy: state.QueryPolicy{
			AllowedTables: []string{"metrics_daily"},
			AllowedColumnsByTable: map[string][]string{
				"metrics_daily": {"date", "metricId", "value"},
			},
		},
	}
}

func sampleFacts() []state.Fact {
	return []state.Fact{
		{TenantID: "t1", Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 100, Source: "google_ads"},
		{TenantID: "t1", Domain: "marketing", MetricID: "spend", Date: "2026-01-01", Value: 50, Source: "google_ads"},
	}
}

func TestRunRejectsBatchOnlyConnections(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	conn := liveConn()
	conn.Mode = "ingest"

	_, err := svc.Run(state.Tenant{ID: "t1"}, conn, sampleFacts(), Payload{Table: "metrics_daily"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestRunRejectsNonSelectSQL(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	_, err := svc.Run(state.Tenant{ID: "t1"}, liveConn(), sampleFacts(), Payload{Table: "metrics_daily", SQL: "DROP TABLE facts"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestRunEnforcesTableAllowlist(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	_, err := svc.Run(state.Tenant{ID: "t1"}, liveConn(), sampleFacts(), Payload{Table: "secret_table"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
}

func TestRunEnforcesColumnAllowlist(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	_, err := svc.Run(state.Tenant{ID: "t1"}, liveConn(), sampleFacts(), Payload{Table: "metrics_daily", Columns: []string{"secretColumn"}})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
}

func TestRunProjectsAndCachesResult(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	payload := Payload{Table: "metrics_daily", Columns: []string{"date", "value"}}

	first, err := svc.Run(state.Tenant{ID: "t1"}, liveConn(), sampleFacts(), payload)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, first.Rows, 2)
	for _, row := range first.Rows {
		assert.Len(t, row, 2)
	}

	second, err := svc.Run(state.Tenant{ID: "t1"}, liveConn(), sampleFacts(), payload)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ResultID, second.ResultID)
}

func TestRunEnforcesTenantDataPolicyLimits(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	tenant := state.Tenant{ID: "t1", DataPolicy: state.DataPolicy{MaxLiveQueryRows: 1}}
	_, err := svc.Run(tenant, liveConn(), sampleFacts(), Payload{Table: "metrics_daily", Limit: 50})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestMaterializeSkipsNonFiniteValues(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	rows := []map[string]any{
		{"metric": "revenue", "value": 100.0, "date": "2026-01-01"},
		{"metric": "revenue", "value": math.NaN(), "date": "2026-01-02"},
	}
	run := svc.Materialize(state.Tenant{ID: "t1"}, "qr_1", "my_dataset", rows, Mapping{
		Domain: "marketing", MetricColumn: "metric", ValueColumn: "value", DateColumn: "date",
	})
	assert.Equal(t, 1, run.InsertedRecords)
	assert.Equal(t, 2, run.TotalRows)

	facts := store.FactsForTenant("t1", "marketing")
	require.Len(t, facts, 1)
	assert.Equal(t, "materialized:my_dataset", facts[0].Source)
}
