package state

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// StoreSecret records a fingerprint descriptor, never the plaintext.
func (s *Store) StoreSecret(authRef string, d SecretDescriptor) {
	s.withLock(func() {
		s.secrets[authRef] = d
	})
}

// GetSecret looks up a secret descriptor by authRef.
func (s *Store) GetSecret(authRef string) (SecretDescriptor, bool) {
	var d SecretDescriptor
	var ok bool
	s.readLock(func() {
		d, ok = s.secrets[authRef]
	})
	return d, ok
}

// CreateConnection inserts a new source connection.
func (s *Store) CreateConnection(c SourceConnection) SourceConnection {
	s.withLock(func() {
		now := time.Now()
		c.ID = newUUID("conn")
		c.CreatedAt = now
		c.UpdatedAt = now
		cp := c
		s.connections[c.ID] = &cp
	})
	return c
}

// GetConnection returns a connection scoped to a tenant.
func (s *Store) GetConnection(tenantID, id string) (*SourceConnection, error) {
	var out *SourceConnection
	var err error
	s.readLock(func() {
		c, ok := s.connections[id]
		if !ok || c.TenantID != tenantID {
			err = apierror.NotFound("source connection %q not found", id)
			return
		}
		cp := *c
		out = &cp
	})
	return out, err
}

// ListConnections returns every connection for a tenant.
func (s *Store) ListConnections(tenantID string) []SourceConnection {
	var out []SourceConnection
	s.readLock(func() {
		for _, id := range sortedKeys(s.connections) {
			c := s.connections[id]
			if c.TenantID == tenantID {
				out = append(out, *c)
			}
		}
	})
	return out
}

// PatchConnection applies fn to a tenant-scoped connection and persists it.
func (s *Store) PatchConnection(tenantID, id string, fn func(*SourceConnection)) (*SourceConnection, error) {
	var out *SourceConnection
	var err error
	s.withLock(func() {
		c, ok := s.connections[id]
		if !ok || c.TenantID != tenantID {
			err = apierror.NotFound("source connection %q not found", id)
			return
		}
		fn(c)
		c.UpdatedAt = time.Now()
		cp := *c
		out = &cp
	})
	return out, err
}

// AppendSourceRun records a completed sync run and updates the connection checkpoint.
func (s *Store) AppendSourceRun(run SourceRun) SourceRun {
	s.withLock(func() {
		run.ID = newUUID("run")
		run.CreatedAt = time.Now()
		s.sourceRuns = append(s.sourceRuns, run)
		if c, ok := s.connections[run.ConnectionID]; ok && run.Checkpoint.Cursor != "" {
			c.Checkpoint = run.Checkpoint.Cursor
		}
	})
	return run
}

// SourceRunsForConnection returns runs for a connection, newest first.
func (s *Store) SourceRunsForConnection(tenantID, connectionID string) []SourceRun {
	var out []SourceRun
	s.readLock(func() {
		for i := len(s.sourceRuns) - 1; i >= 0; i-- {
			r := s.sourceRuns[i]
			if r.ConnectionID == connectionID && r.TenantID == tenantID {
				out = append(out, r)
			}
		}
	})
	return out
}

// LatestSourceRun returns the most recent run for a connection, if any.
func (s *Store) LatestSourceRun(tenantID, connectionID string) (SourceRun, bool) {
	runs := s.SourceRunsForConnection(tenantID, connectionID)
	if len(runs) == 0 {
		return SourceRun{}, false
	}
	return runs[0], true
}
