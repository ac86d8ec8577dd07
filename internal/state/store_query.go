package state

import "time"

// CacheLiveQuery stores a live-query result for 60s, keyed by the
// caller-supplied normalized hash (scoped to tenant+connection by the
// caller including them in the key).
func (s *Store) CacheLiveQuery(key string, entry LiveQueryCacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveQueryCache.Set(key, entry, 60*time.Second)
}

// GetCachedLiveQuery returns a cached entry if present and unexpired.
func (s *Store) GetCachedLiveQuery(key string) (LiveQueryCacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.liveQueryCache.Get(key)
	if !ok {
		return LiveQueryCacheEntry{}, false
	}
	return v.(LiveQueryCacheEntry), true
}

// AppendMaterialization records a materialization outcome.
func (s *Store) AppendMaterialization(m MaterializationRun) MaterializationRun {
	s.withLock(func() {
		m.ID = newUUID("mat")
		s.materializations = append(s.materializations, m)
	})
	return m
}
