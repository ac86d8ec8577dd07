package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSyncIncrementsCounterAndObservesDuration(t *testing.T) {
	r := Get()
	before := testutil.ToFloat64(r.syncTotal.WithLabelValues("google_ads", "success"))

	r.RecordSync("google_ads", "success", 0.25)

	after := testutil.ToFloat64(r.syncTotal.WithLabelValues("google_ads", "success"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, 1, testutil.CollectAndCount(r.syncDurationSeconds))
}

func TestRecordProviderFailoverIncrementsPerProvider(t *testing.T) {
	r := Get()
	before := testutil.ToFloat64(r.providerFailoverTotal.WithLabelValues("openai_byo"))

	r.RecordProviderFailover("openai_byo")

	after := testutil.ToFloat64(r.providerFailoverTotal.WithLabelValues("openai_byo"))
	assert.Equal(t, before+1, after)
}

func TestRecordAnalysisRunIncrementsByStatus(t *testing.T) {
	r := Get()
	before := testutil.ToFloat64(r.analysisRunTotal.WithLabelValues("completed"))

	r.RecordAnalysisRun("completed")

	after := testutil.ToFloat64(r.analysisRunTotal.WithLabelValues("completed"))
	assert.Equal(t, before+1, after)
}

func TestGetReturnsTheSameSingletonRegistry(t *testing.T) {
	assert.Same(t, Get(), Get())
}
