package state

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// AppendReport records a generated report.
func (s *Store) AppendReport(r Report) Report {
	s.withLock(func() {
		r.ID = newUUID("report")
		r.CreatedAt = time.Now()
		s.reports = append(s.reports, r)
	})
	return r
}

// GetReport returns a tenant-scoped report by id.
func (s *Store) GetReport(tenantID, id string) (Report, error) {
	var out Report
	var err error
	s.readLock(func() {
		for _, r := range s.reports {
			if r.ID == id && r.TenantID == tenantID {
				out = r
				return
			}
		}
		err = apierror.NotFound("report %q not found", id)
	})
	return out, err
}

// ListReports returns every report for a tenant, newest first.
func (s *Store) ListReports(tenantID string) []Report {
	var out []Report
	s.readLock(func() {
		for i := len(s.reports) - 1; i >= 0; i-- {
			if s.reports[i].TenantID == tenantID {
				out = append(out, s.reports[i])
			}
		}
	})
	return out
}

// CreateSchedule inserts a new report schedule with nextRunAt = now+interval.
func (s *Store) CreateSchedule(sch ReportSchedule) ReportSchedule {
	s.withLock(func() {
		sch.ID = newUUID("sched")
		if sch.NextRunAt.IsZero() {
			sch.NextRunAt = time.Now().Add(time.Duration(sch.IntervalMinutes) * time.Minute)
		}
		cp := sch
		s.schedules[sch.ID] = &cp
	})
	return sch
}

// ListSchedules returns every schedule for a tenant.
func (s *Store) ListSchedules(tenantID string) []ReportSchedule {
	var out []ReportSchedule
	s.readLock(func() {
		for _, id := range sortedKeys(s.schedules) {
			sch := s.schedules[id]
			if sch.TenantID == tenantID {
				out = append(out, *sch)
			}
		}
	})
	return out
}

// DueSchedules returns every active schedule across all tenants whose
// nextRunAt is at or before now.
func (s *Store) DueSchedules(now time.Time) []ReportSchedule {
	var out []ReportSchedule
	s.readLock(func() {
		for _, id := range sortedKeys(s.schedules) {
			sch := s.schedules[id]
			if sch.Active && !sch.NextRunAt.After(now) {
				out = append(out, *sch)
			}
		}
	})
	return out
}

// TryConsumeTick atomically claims a (scheduleId, nextRunAt) tick. It
// returns false if that tick was already consumed, guaranteeing
// exactly-once firing.
func (s *Store) TryConsumeTick(scheduleID string, tick time.Time) bool {
	claimed := false
	s.withLock(func() {
		key := scheduleID + "|" + tick.UTC().Format(time.RFC3339Nano)
		if s.consumedTicks[key] {
			return
		}
		s.consumedTicks[key] = true
		claimed = true
	})
	return claimed
}

// AdvanceSchedule sets lastRunAt=tick and nextRunAt=now+interval. It
// deliberately uses the current wall-clock time, not previous
// nextRunAt + interval, so drift accumulates under a slow tick rather
// than compounding missed runs.
func (s *Store) AdvanceSchedule(scheduleID string, tick, now time.Time) {
	s.withLock(func() {
		sch, ok := s.schedules[scheduleID]
		if !ok {
			return
		}
		sch.LastRunAt = tick
		sch.NextRunAt = now.Add(time.Duration(sch.IntervalMinutes) * time.Minute)
	})
}

// AppendChannelEvent records a delivery attempt.
func (s *Store) AppendChannelEvent(e ChannelEvent) ChannelEvent {
	s.withLock(func() {
		e.ID = newUUID("chevt")
		e.CreatedAt = time.Now()
		e.UpdatedAt = e.CreatedAt
		if e.MaxAttempts == 0 {
			e.MaxAttempts = 3
		}
		cp := e
		s.channelEvents[e.ID] = &cp
	})
	return e
}

// GetChannelEvent returns a tenant-scoped channel event by id.
func (s *Store) GetChannelEvent(tenantID, id string) (*ChannelEvent, error) {
	var out *ChannelEvent
	var err error
	s.readLock(func() {
		e, ok := s.channelEvents[id]
		if !ok || e.TenantID != tenantID {
			err = apierror.NotFound("channel event %q not found", id)
			return
		}
		cp := *e
		out = &cp
	})
	return out, err
}

// ListChannelEvents returns every channel event for a tenant.
func (s *Store) ListChannelEvents(tenantID string) []ChannelEvent {
	var out []ChannelEvent
	s.readLock(func() {
		for _, id := range sortedKeys(s.channelEvents) {
			e := s.channelEvents[id]
			if e.TenantID == tenantID {
				out = append(out, *e)
			}
		}
	})
	return out
}

// MutateChannelEvent applies fn to a tenant-scoped channel event and persists it.
func (s *Store) MutateChannelEvent(tenantID, id string, fn func(*ChannelEvent)) (ChannelEvent, error) {
	var out ChannelEvent
	var err error
	s.withLock(func() {
		e, ok := s.channelEvents[id]
		if !ok || e.TenantID != tenantID {
			err = apierror.NotFound("channel event %q not found", id)
			return
		}
		fn(e)
		e.UpdatedAt = time.Now()
		out = *e
	})
	return out, err
}
