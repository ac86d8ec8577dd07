package state

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// CreateAnalysisRun inserts a new draft analysis run.
func (s *Store) CreateAnalysisRun(r AnalysisRun) AnalysisRun {
	s.withLock(func() {
		r.ID = newUUID("run")
		now := time.Now()
		r.CreatedAt = now
		r.UpdatedAt = now
		if r.Status == "" {
			r.Status = "draft"
		}
		cp := r
		s.analysisRuns[r.ID] = &cp
	})
	return r
}

// GetAnalysisRun returns a tenant-scoped analysis run by id.
func (s *Store) GetAnalysisRun(tenantID, id string) (*AnalysisRun, error) {
	var out *AnalysisRun
	var err error
	s.readLock(func() {
		r, ok := s.analysisRuns[id]
		if !ok || r.TenantID != tenantID {
			err = apierror.NotFound("analysis run %q not found", id)
			return
		}
		cp := *r
		out = &cp
	})
	return out, err
}

// ListAnalysisRuns returns every analysis run for a tenant.
func (s *Store) ListAnalysisRuns(tenantID string) []AnalysisRun {
	var out []AnalysisRun
	s.readLock(func() {
		for _, id := range sortedKeys(s.analysisRuns) {
			r := s.analysisRuns[id]
			if r.TenantID == tenantID {
				out = append(out, *r)
			}
		}
	})
	return out
}

// MutateAnalysisRun applies fn to a tenant-scoped run and persists it.
// fn receives a pointer to the live run so callers can mutate Steps,
// Artifacts, Status, and append Timeline entries in one critical section.
func (s *Store) MutateAnalysisRun(tenantID, id string, fn func(*AnalysisRun)) (*AnalysisRun, error) {
	var out *AnalysisRun
	var err error
	s.withLock(func() {
		r, ok := s.analysisRuns[id]
		if !ok || r.TenantID != tenantID {
			err = apierror.NotFound("analysis run %q not found", id)
			return
		}
		fn(r)
		r.UpdatedAt = time.Now()
		cp := *r
		out = &cp
	})
	return out, err
}

// AppendTimeline appends a totally-ordered timeline entry to a run. Must
// be called from within a MutateAnalysisRun fn (i.e. under the write lock).
func AppendTimeline(r *AnalysisRun, message string, at time.Time) {
	r.Timeline = append(r.Timeline, TimelineEntry{ID: newULID("tl"), At: at, Message: message})
}
