package state

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// CreateTenant creates a tenant bound to a blueprint (which supplies its
// metric set, see TenantMetrics) with default model, autonomy and data
// policies, and returns the new Tenant. Settings are not seeded here;
// Settings initializes them on first read.
func (s *Store) CreateTenant(name, blueprintID string) (*Tenant, error) {
	bp, ok := s.blueprints[blueprintID]
	if !ok {
		return nil, apierror.BadRequest("unknown blueprint %q", blueprintID)
	}
	var out *Tenant
	s.withLock(func() {
		now := time.Now()
		t := &Tenant{
			ID:          newUUID("tenant"),
			Name:        name,
			Status:      "active",
			BlueprintID: bp.ID,
			ModelConfig: ModelConfig{Mode: "managed", DefaultProvider: "managed", ProviderCooldownMinutes: 15},
			AutonomyPolicy: AutonomyPolicy{
				AutonomyMode:        "policy-gated",
				AutopilotEnabled:    false,
				ConfidenceThreshold: 0.6,
				ActionAllowlist:     []string{"notify_owner", "create_report", "adjust_budget"},
				HighImpactActions:   []string{"adjust_budget"},
				BudgetGuardrailUsd:  5000,
			},
			DataPolicy: DataPolicy{MaxLiveQueryRows: 500, MaxLiveQueryTimeoutMs: 5000, MaxLiveQueryCostUnits: 100},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.tenants[t.ID] = t
		out = t
	})
	return out, nil
}

// GetTenant returns a tenant by id.
func (s *Store) GetTenant(tenantID string) (*Tenant, error) {
	var out *Tenant
	var err error
	s.readLock(func() {
		t, e := s.requireTenant(tenantID)
		if e != nil {
			err = e
			return
		}
		cp := *t
		out = &cp
	})
	return out, err
}

// ListTenants returns every tenant, oldest first.
func (s *Store) ListTenants() []Tenant {
	var out []Tenant
	s.readLock(func() {
		for _, t := range s.tenants {
			out = append(out, *t)
		}
	})
	sortByCreatedAt(out)
	return out
}

func sortByCreatedAt(ts []Tenant) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].CreatedAt.Before(ts[j-1].CreatedAt); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}

// TenantMetrics returns the metric definitions for a tenant's blueprint.
func (s *Store) TenantMetrics(tenantID string) ([]Metric, error) {
	var out []Metric
	var err error
	s.readLock(func() {
		t, e := s.requireTenant(tenantID)
		if e != nil {
			err = e
			return
		}
		bp := s.blueprints[t.BlueprintID]
		out = append([]Metric{}, bp.Metrics...)
	})
	return out, err
}

// MutateTenant applies fn to the tenant under the write lock and persists.
func (s *Store) MutateTenant(tenantID string, fn func(*Tenant)) (*Tenant, error) {
	var out *Tenant
	var err error
	s.withLock(func() {
		t, e := s.requireTenant(tenantID)
		if e != nil {
			err = e
			return
		}
		fn(t)
		t.UpdatedAt = time.Now()
		cp := *t
		out = &cp
	})
	return out, err
}
