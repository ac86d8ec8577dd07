package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// AppendAuditEvent appends a tamper-evident audit event, chaining each
// entry's hash from the previous one: sha256 over prevHash + canonical
// JSON of the event body, mirroring the manifest-signing approach used
// for skill packs.
func (s *Store) AppendAuditEvent(e AuditEvent) AuditEvent {
	s.withLock(func() {
		e.ID = newULID("audit")
		e.At = time.Now()
		e.PrevHash = s.lastHash
		e.Hash = hashAuditEvent(e)
		s.lastHash = e.Hash
		s.auditEvents = append(s.auditEvents, e)
	})
	return e
}

func hashAuditEvent(e AuditEvent) string {
	body, _ := json.Marshal(struct {
		ID       string `json:"id"`
		TenantID string `json:"tenantId"`
		ActorID  string `json:"actorId"`
		Action   string `json:"action"`
		Details  any    `json:"details,omitempty"`
		PrevHash string `json:"prevHash"`
	}{e.ID, e.TenantID, e.ActorID, e.Action, e.Details, e.PrevHash})
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ListAuditEventsSince returns a tenant's audit events at or after since,
// oldest first, preserving the chain order needed for verification.
func (s *Store) ListAuditEventsSince(tenantID string, since time.Time) []AuditEvent {
	var out []AuditEvent
	s.readLock(func() {
		for _, e := range s.auditEvents {
			if e.TenantID == tenantID && !e.At.Before(since) {
				out = append(out, e)
			}
		}
	})
	return out
}

// VerifyChain recomputes every hash in the full (cross-tenant) audit log
// and reports the id of the first entry whose chain link doesn't match,
// or ok=true if the whole log is intact.
func (s *Store) VerifyChain() (brokenAt string, ok bool) {
	s.readLock(func() {
		prev := ""
		for _, e := range s.auditEvents {
			if e.PrevHash != prev || hashAuditEvent(e) != e.Hash {
				brokenAt = e.ID
				return
			}
			prev = e.Hash
		}
		ok = true
	})
	return brokenAt, ok
}
