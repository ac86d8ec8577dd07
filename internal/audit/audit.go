// Package audit records every mutating invocation across the control
// plane into a tamper-evident, hash-chained event stream, and serves
// tenant-scoped reads of it.
package audit

import (
	"time"

	"github.com/rcourtman/insightctl/internal/authctx"
	"github.com/rcourtman/insightctl/internal/state"
)

// Recorder wraps the canonical store's audit primitives behind the
// narrow surface every C-component calls after a mutation.
type Recorder struct {
	store *state.Store
}

func New(store *state.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends an audit event for a mutating operation. actorID
// defaults to "system" when empty (background/scheduler-driven writes).
func (r *Recorder) Record(tenantID, actorID, action string, details any) state.AuditEvent {
	if actorID == "" {
		actorID = "system"
	}
	return r.store.AppendAuditEvent(state.AuditEvent{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Details:  details,
	})
}

// RecordCtx is a convenience wrapper that pulls the actor out of an
// already-resolved auth context.
func (r *Recorder) RecordCtx(ctx authctx.Context, action string, details any) state.AuditEvent {
	return r.Record(ctx.TenantID, ctx.UserID, action, details)
}

// ListSince enforces tenant isolation before returning events: a
// caller may only ever list their own tenant's events.
func (r *Recorder) ListSince(ctx authctx.Context, tenantID string, since time.Time) ([]state.AuditEvent, error) {
	if err := authctx.RequireTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return r.store.ListAuditEventsSince(tenantID, since), nil
}

// VerifyChain reports whether the full audit log's hash chain is
// intact, used for tamper detection the same way skill manifest
// signatures are verified.
func (r *Recorder) VerifyChain() (brokenAt string, ok bool) {
	return r.store.VerifyChain()
}
