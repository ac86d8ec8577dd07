package state

// InsertFact enforces the idempotency invariant: a second insert of the
// same (tenantId,date,domain,metricId,source) tuple is a no-op that
// returns the original fact and inserted=false.
func (s *Store) InsertFact(f Fact) (Fact, bool) {
	var out Fact
	var inserted bool
	s.withLock(func() {
		key := IdempotencyKey{TenantID: f.TenantID, Date: f.Date, Domain: f.Domain, MetricID: f.MetricID, Source: f.Source}
		if existingID, ok := s.factIndex[key]; ok {
			for _, existing := range s.facts {
				if existing.ID == existingID {
					out = existing
					return
				}
			}
		}
		f.ID = newUUID("fact")
		s.facts = append(s.facts, f)
		s.factIndex[key] = f.ID
		out = f
		inserted = true
	})
	return out, inserted
}

// FactsInRange returns every fact for a tenant+metric within [start,end] (inclusive, ISO dates).
func (s *Store) FactsInRange(tenantID, metricID, start, end string) []Fact {
	var out []Fact
	s.readLock(func() {
		for _, f := range s.facts {
			if f.TenantID != tenantID || f.MetricID != metricID {
				continue
			}
			if start != "" && f.Date < start {
				continue
			}
			if end != "" && f.Date > end {
				continue
			}
			out = append(out, f)
		}
	})
	return out
}

// FactsForTenant returns every fact owned by a tenant (used by query
// projection and materialization dedup checks); optionally filtered by domain.
func (s *Store) FactsForTenant(tenantID, domain string) []Fact {
	var out []Fact
	s.readLock(func() {
		for _, f := range s.facts {
			if f.TenantID != tenantID {
				continue
			}
			if domain != "" && f.Domain != domain {
				continue
			}
			out = append(out, f)
		}
	})
	return out
}

// LatestFactDate returns the maximum date among generated facts, or "" if none.
func LatestFactDate(facts []Fact) string {
	latest := ""
	for _, f := range facts {
		if f.Date > latest {
			latest = f.Date
		}
	}
	return latest
}
