package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/connectors"
	"github.com/rcourtman/insightctl/internal/state"
)

func newStoreWithTenant(t *testing.T) (*state.Store, state.Tenant) {
	t.Helper()
	store := state.New(connectors.DefaultBlueprints())
	tenant, err := store.CreateTenant("Acme", "bp_growth")
	require.NoError(t, err)
	return store, *tenant
}

func TestCreateRejectsUnknownSourceType(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	_, err := svc.Create(tenant, CreateInput{SourceType: "carrier_pigeon", Mode: "ingest"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestCreateRejectsUnsupportedMode(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	_, err := svc.Create(tenant, CreateInput{SourceType: "google_ads", Mode: "live"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestCreateFingerprintsAuthWithoutStoringPlaintext(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{
		SourceType: "google_ads",
		Mode:       "ingest",
		Auth:       map[string]any{"token": "super-secret"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, conn.AuthRef)

	secret, ok := store.GetSecret(conn.AuthRef)
	require.True(t, ok)
	assert.True(t, secret.HasCredentials)
}

func TestTestConnectivityReflectsCredentials(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)

	withCreds, err := svc.Create(tenant, CreateInput{SourceType: "google_ads", Mode: "ingest", Auth: map[string]any{"token": "x"}})
	require.NoError(t, err)
	status, _, err := svc.Test(tenant.ID, withCreds.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", status)

	noCreds, err := svc.Create(tenant, CreateInput{SourceType: "google_ads", Mode: "ingest"})
	require.NoError(t, err)
	status, reason, err := svc.Test(tenant.ID, noCreds.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status)
	assert.NotEmpty(t, reason)
}

func TestSyncRejectsLiveMode(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{SourceType: "bigquery", Mode: "live"})
	require.NoError(t, err)

	_, err = svc.Sync(tenant, conn.ID, "marketing", 7, false, false, time.Now())
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestSyncInsertsFactsAndPassesQuality(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{
		SourceType: "google_ads",
		Mode:       "ingest",
		Auth:       map[string]any{"token": "x"},
		Metadata:   state.ConnectionMetadata{QualityChecks: []string{"null_check", "duplicate_guard"}},
	})
	require.NoError(t, err)

	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	result, err := svc.Sync(tenant, conn.ID, "marketing", 5, false, false, now)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Run.Status)
	assert.True(t, result.LineageMetadata.QualityPassed)
	assert.Greater(t, result.LineageMetadata.InsertedRecords, 0)
	assert.Equal(t, "2026-01-15", result.Run.Checkpoint.Cursor)

	facts := store.FactsForTenant(tenant.ID, "")
	assert.Len(t, facts, result.LineageMetadata.InsertedRecords)
}

func TestSyncIsIdempotentOnRepeat(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{SourceType: "google_ads", Mode: "ingest", Auth: map[string]any{"token": "x"}})
	require.NoError(t, err)

	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	first, err := svc.Sync(tenant, conn.ID, "marketing", 3, false, false, now)
	require.NoError(t, err)
	second, err := svc.Sync(tenant, conn.ID, "marketing", 3, false, false, now)
	require.NoError(t, err)

	assert.Equal(t, 0, second.LineageMetadata.InsertedRecords)
	assert.Equal(t, first.LineageMetadata.InsertedRecords, len(store.FactsForTenant(tenant.ID, "")))
}

func TestSyncFailsQualityOnSchemaDriftWithoutFailingTheRun(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{
		SourceType: "google_ads",
		Mode:       "ingest",
		Auth:       map[string]any{"token": "x"},
		Metadata:   state.ConnectionMetadata{QualityChecks: []string{"schema_drift"}},
	})
	require.NoError(t, err)

	result, err := svc.Sync(tenant, conn.ID, "marketing", 3, true, false, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "success", result.Run.Status)
	assert.False(t, result.LineageMetadata.QualityPassed)
}

func TestSyncMarksRunErrorOnSimulatedFailureRegardlessOfQuality(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{
		SourceType: "google_ads",
		Mode:       "ingest",
		Auth:       map[string]any{"token": "x"},
	})
	require.NoError(t, err)

	result, err := svc.Sync(tenant, conn.ID, "marketing", 3, false, true, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "error", result.Run.Status)
	assert.True(t, result.LineageMetadata.QualityPassed)
}

func TestResolveDomainFallsBackToBlueprint(t *testing.T) {
	store, tenant := newStoreWithTenant(t)
	svc := New(store)
	conn, err := svc.Create(tenant, CreateInput{SourceType: "bigquery", Mode: "ingest", Auth: map[string]any{"token": "x"}})
	require.NoError(t, err)

	result, err := svc.Sync(tenant, conn.ID, "", 2, false, false, time.Now())
	require.NoError(t, err)
	assert.Greater(t, result.LineageMetadata.GeneratedRecords, 0)
}
