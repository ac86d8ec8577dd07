package state

import "time"

// ProviderSelect performs provider-chain selection and the resulting
// health/cooldown bookkeeping atomically, so selection and update occur
// within the same critical section. isFailing reports whether a
// provider should be treated as failing for this attempt (simulated
// failure or name containing "down").
func (s *Store) ProviderSelect(tenantID string, now time.Time, chain []string, isFailing func(provider string) bool, cooldownMinutes int) (selected string, trace []string, allFailed bool) {
	s.withLock(func() {
		for _, provider := range chain {
			key := tenantID + "|" + provider
			health, ok := s.providerHealth[key]
			if !ok {
				health = &ProviderHealth{Provider: provider}
				s.providerHealth[key] = health
			}
			if health.CoolingDown(now) {
				trace = append(trace, "skipped_cooldown:"+provider)
				continue
			}
			if isFailing(provider) {
				health.FailCount++
				health.ConsecutiveSuccesses = 0
				health.LastError = "simulated_failure"
				health.CooldownUntil = now.Add(time.Duration(cooldownMinutes) * time.Minute)
				trace = append(trace, "failed:"+provider)
				continue
			}
			health.SuccessCount++
			health.ConsecutiveSuccesses++
			selected = provider
			trace = append(trace, "selected:"+provider)
			return
		}
		allFailed = true
	})
	return selected, trace, allFailed
}

// ProviderHealthSnapshot returns the current health record for a provider, if any.
func (s *Store) ProviderHealthSnapshot(tenantID, provider string) (ProviderHealth, bool) {
	var out ProviderHealth
	var ok bool
	s.readLock(func() {
		h, found := s.providerHealth[tenantID+"|"+provider]
		if found {
			out = *h
			ok = true
		}
	})
	return out, ok
}

// AppendModelRun records a completed model run.
func (s *Store) AppendModelRun(r ModelRun) ModelRun {
	s.withLock(func() {
		r.ID = newUUID("mrun")
		r.CreatedAt = time.Now()
		s.modelRuns = append(s.modelRuns, r)
	})
	return r
}

// AppendInsight records a synthesized insight.
func (s *Store) AppendInsight(i Insight) Insight {
	s.withLock(func() {
		i.ID = newUUID("insight")
		i.CreatedAt = time.Now()
		s.insights = append(s.insights, i)
	})
	return i
}

// LatestInsight returns the most recently created insight for a tenant.
func (s *Store) LatestInsight(tenantID string) (Insight, bool) {
	var out Insight
	var ok bool
	s.readLock(func() {
		for i := len(s.insights) - 1; i >= 0; i-- {
			if s.insights[i].TenantID == tenantID {
				out = s.insights[i]
				ok = true
				return
			}
		}
	})
	return out, ok
}

// GetInsight returns a tenant-scoped insight by id.
func (s *Store) GetInsight(tenantID, id string) (Insight, error) {
	var out Insight
	var err error
	s.readLock(func() {
		for _, i := range s.insights {
			if i.ID == id && i.TenantID == tenantID {
				out = i
				return
			}
		}
		err = notFoundInsight(id)
	})
	return out, err
}

// PendingActions returns every recommended action across a tenant's
// insights whose executionState is "pending" (awaiting approval).
func (s *Store) PendingActions(tenantID string) []RecommendedAction {
	var out []RecommendedAction
	s.readLock(func() {
		for _, i := range s.insights {
			if i.TenantID != tenantID {
				continue
			}
			for _, a := range i.RecommendedActions {
				if a.ExecutionState == "pending" {
					out = append(out, a)
				}
			}
		}
	})
	return out
}

// RecordApproval appends an approval decision and updates the matching
// action's executionState across whichever insight holds it.
func (s *Store) RecordApproval(tenantID, actionID, decision, reason string) (ActionApproval, error) {
	var out ActionApproval
	var err error
	s.withLock(func() {
		found := false
		for idx := range s.insights {
			if s.insights[idx].TenantID != tenantID {
				continue
			}
			for j := range s.insights[idx].RecommendedActions {
				a := &s.insights[idx].RecommendedActions[j]
				if a.ID == actionID {
					found = true
					if decision == "approve" {
						a.ExecutionState = "executed"
					} else {
						a.ExecutionState = "rejected"
					}
				}
			}
		}
		if !found {
			err = notFoundAction(actionID)
			return
		}
		out = ActionApproval{ID: newUUID("approval"), ActionID: actionID, Decision: decision, Reason: reason}
		s.approvals = append(s.approvals, out)
	})
	return out, err
}
