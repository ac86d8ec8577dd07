package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/state"
)

func TestClampIntervalEnforcesBounds(t *testing.T) {
	assert.Equal(t, 5, ClampInterval(0))
	assert.Equal(t, 5, ClampInterval(3))
	assert.Equal(t, 1440, ClampInterval(999999))
	assert.Equal(t, 60, ClampInterval(60))
}

func TestRunOnceFiresEachDueScheduleExactlyOnce(t *testing.T) {
	store := state.New(nil)
	sch := store.CreateSchedule(state.ReportSchedule{TenantID: "t1", IntervalMinutes: 60, Active: true, NextRunAt: time.Now().Add(-time.Minute)})

	var calls int
	sched := New(store, func(ctx context.Context, s state.ReportSchedule, tick time.Time) error {
		calls++
		return nil
	})

	now := time.Now()
	sched.runOnce(context.Background(), now)
	sched.runOnce(context.Background(), now)

	assert.Equal(t, 1, calls)

	updated := store.ListSchedules("t1")
	require.Len(t, updated, 1)
	assert.Equal(t, sch.ID, updated[0].ID)
	assert.True(t, updated[0].NextRunAt.After(now))
}

func TestRunOnceSkipsInactiveSchedules(t *testing.T) {
	store := state.New(nil)
	store.CreateSchedule(state.ReportSchedule{TenantID: "t1", IntervalMinutes: 60, Active: false, NextRunAt: time.Now().Add(-time.Minute)})

	var calls int
	sched := New(store, func(ctx context.Context, s state.ReportSchedule, tick time.Time) error {
		calls++
		return nil
	})
	sched.runOnce(context.Background(), time.Now())
	assert.Equal(t, 0, calls)
}

func TestRunOnceAdvancesScheduleEvenWhenCallbackErrors(t *testing.T) {
	store := state.New(nil)
	store.CreateSchedule(state.ReportSchedule{TenantID: "t1", IntervalMinutes: 60, Active: true, NextRunAt: time.Now().Add(-time.Minute)})

	sched := New(store, func(ctx context.Context, s state.ReportSchedule, tick time.Time) error {
		return assert.AnError
	})
	now := time.Now()
	sched.runOnce(context.Background(), now)

	updated := store.ListSchedules("t1")
	require.Len(t, updated, 1)
	assert.True(t, updated[0].NextRunAt.After(now))
}
