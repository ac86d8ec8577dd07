package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
)

func TestInsertFactIsIdempotent(t *testing.T) {
	store := New(nil)
	f := Fact{TenantID: "t1", Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 100, Source: "google_ads"}

	first, inserted := store.InsertFact(f)
	assert.True(t, inserted)

	dup := f
	dup.Value = 999
	second, inserted := store.InsertFact(dup)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 100.0, second.Value)

	assert.Len(t, store.FactsForTenant("t1", ""), 1)
}

func TestTenantScopedReadsNeverLeakAcrossTenants(t *testing.T) {
	store := New(map[string]Blueprint{"bp": {ID: "bp"}})
	t1, err := store.CreateTenant("Acme", "bp")
	require.NoError(t, err)
	t2, err := store.CreateTenant("Globex", "bp")
	require.NoError(t, err)

	store.InsertFact(Fact{TenantID: t1.ID, Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 1, Source: "x"})
	store.InsertFact(Fact{TenantID: t2.ID, Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 2, Source: "x"})

	assert.Len(t, store.FactsForTenant(t1.ID, ""), 1)
	assert.Len(t, store.FactsForTenant(t2.ID, ""), 1)

	conn := store.CreateConnection(SourceConnection{TenantID: t1.ID, SourceType: "google_ads"})
	_, err = store.GetConnection(t2.ID, conn.ID)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestExportImportRoundTripsState(t *testing.T) {
	store := New(map[string]Blueprint{"bp": {ID: "bp"}})
	tenant, err := store.CreateTenant("Acme", "bp")
	require.NoError(t, err)
	store.InsertFact(Fact{TenantID: tenant.ID, Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 42, Source: "x"})
	store.AppendAuditEvent(AuditEvent{TenantID: tenant.ID, ActorID: "u1", Action: "connection.create"})

	snap := store.Export()

	restored := New(map[string]Blueprint{"bp": {ID: "bp"}})
	restored.ImportSnapshot(snap)

	assert.Equal(t, snap, restored.Export())

	facts := restored.FactsForTenant(tenant.ID, "")
	require.Len(t, facts, 1)
	assert.Equal(t, 42.0, facts[0].Value)

	// Idempotency index must have been rebuilt: re-inserting the same
	// tuple after import is still a no-op.
	_, inserted := restored.InsertFact(Fact{TenantID: tenant.ID, Domain: "marketing", MetricID: "revenue", Date: "2026-01-01", Value: 999, Source: "x"})
	assert.False(t, inserted)
}

func TestTryConsumeTickIsExactlyOnceUnderConcurrency(t *testing.T) {
	store := New(nil)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = store.TryConsumeTick("sched_1", tick)
		}(i)
	}
	wg.Wait()

	claimed := 0
	for _, r := range results {
		if r {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)
}

func TestProviderSelectAdvancesFirstHealthyProvider(t *testing.T) {
	store := New(nil)
	now := time.Now()
	selected, trace, allFailed := store.ProviderSelect("t1", now, []string{"google_ads_llm", "managed"}, func(p string) bool {
		return p == "google_ads_llm"
	}, 15)

	assert.False(t, allFailed)
	assert.Equal(t, "managed", selected)
	assert.Equal(t, []string{"failed:google_ads_llm", "selected:managed"}, trace)

	health, ok := store.ProviderHealthSnapshot("t1", "google_ads_llm")
	require.True(t, ok)
	assert.True(t, health.CoolingDown(now))
}

func TestAuditChainOrdering(t *testing.T) {
	store := New(nil)
	first := store.AppendAuditEvent(AuditEvent{TenantID: "t1", ActorID: "u1", Action: "connection.create"})
	second := store.AppendAuditEvent(AuditEvent{TenantID: "t1", ActorID: "u1", Action: "connection.sync"})

	events := store.ListAuditEventsSince("t1", time.Time{})
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	brokenAt, ok := store.VerifyChain()
	assert.True(t, ok)
	assert.Empty(t, brokenAt)
}
