package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/authctx"
	"github.com/rcourtman/insightctl/internal/state"
)

func newStore() *state.Store {
	return state.New(map[string]state.Blueprint{})
}

func TestRecordDefaultsActorToSystem(t *testing.T) {
	r := New(newStore())
	ev := r.Record("t1", "", "connection.create", nil)
	assert.Equal(t, "system", ev.ActorID)
	assert.NotEmpty(t, ev.Hash)
	assert.Empty(t, ev.PrevHash)
}

func TestChainLinksSequentially(t *testing.T) {
	r := New(newStore())
	first := r.Record("t1", "u1", "connection.create", nil)
	second := r.Record("t1", "u1", "connection.sync", map[string]int{"inserted": 3})

	assert.Equal(t, first.Hash, second.PrevHash)
	brokenAt, ok := r.VerifyChain()
	assert.True(t, ok)
	assert.Empty(t, brokenAt)
}

func TestListSinceEnforcesTenantIsolation(t *testing.T) {
	r := New(newStore())
	r.Record("t1", "u1", "connection.create", nil)

	ctx := authctx.Context{TenantID: "t1"}
	events, err := r.ListSince(ctx, "t1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = r.ListSince(ctx, "t2", time.Time{})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindForbidden))
}

func TestRecordCtxUsesCallerIdentity(t *testing.T) {
	r := New(newStore())
	ctx := authctx.Context{TenantID: "t1", UserID: "u9"}
	ev := r.RecordCtx(ctx, "settings.patch", nil)
	assert.Equal(t, "u9", ev.ActorID)
}
