package state

import (
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
)

// InstallSkill stores a new installed skill and, if active, deactivates
// every other install of the same (tenantId, baseId): at most one
// installed skill per baseId is active at a time.
func (s *Store) InstallSkill(sk InstalledSkill) InstalledSkill {
	s.withLock(func() {
		sk.InstallID = newUUID("install")
		sk.InstalledAt = time.Now()
		cp := sk
		s.installedSkills[sk.InstallID] = &cp
		if sk.Active {
			s.deactivateOthersLocked(sk.TenantID, sk.BaseID, sk.InstallID)
		}
	})
	return sk
}

// deactivateOthersLocked must be called with s.mu held.
func (s *Store) deactivateOthersLocked(tenantID, baseID, keepInstallID string) {
	for id, sk := range s.installedSkills {
		if id == keepInstallID {
			continue
		}
		if sk.TenantID == tenantID && sk.BaseID == baseID {
			sk.Active = false
		}
	}
}

// ActivateSkill marks an installed skill active and deactivates sibling installs.
func (s *Store) ActivateSkill(tenantID, installID string) (InstalledSkill, error) {
	var out InstalledSkill
	var err error
	s.withLock(func() {
		sk, ok := s.installedSkills[installID]
		if !ok || sk.TenantID != tenantID {
			err = apierror.NotFound("skill install %q not found", installID)
			return
		}
		sk.Active = true
		s.deactivateOthersLocked(tenantID, sk.BaseID, installID)
		out = *sk
	})
	return out, err
}

// DeactivateSkill marks an installed skill inactive.
func (s *Store) DeactivateSkill(tenantID, installID string) (InstalledSkill, error) {
	var out InstalledSkill
	var err error
	s.withLock(func() {
		sk, ok := s.installedSkills[installID]
		if !ok || sk.TenantID != tenantID {
			err = apierror.NotFound("skill install %q not found", installID)
			return
		}
		sk.Active = false
		out = *sk
	})
	return out, err
}

// GetInstalledSkill resolves by installId or by "id" (baseId@version).
func (s *Store) GetInstalledSkill(tenantID, idOrInstallID string) (InstalledSkill, error) {
	var out InstalledSkill
	var err error
	s.readLock(func() {
		if sk, ok := s.installedSkills[idOrInstallID]; ok && sk.TenantID == tenantID {
			out = *sk
			return
		}
		for _, sk := range s.installedSkills {
			if sk.TenantID == tenantID && (sk.ID == idOrInstallID || sk.BaseID == idOrInstallID) {
				out = *sk
				return
			}
		}
		err = apierror.NotFound("skill %q not found", idOrInstallID)
	})
	return out, err
}

// MutateInstalledSkill applies fn to a tenant-scoped installed skill
// under the write lock.
func (s *Store) MutateInstalledSkill(installID string, fn func(*InstalledSkill)) (InstalledSkill, error) {
	var out InstalledSkill
	var err error
	s.withLock(func() {
		sk, ok := s.installedSkills[installID]
		if !ok {
			err = apierror.NotFound("skill install %q not found", installID)
			return
		}
		fn(sk)
		out = *sk
	})
	return out, err
}

// ActiveInstalledSkills returns every active installed skill for a tenant.
func (s *Store) ActiveInstalledSkills(tenantID string) []InstalledSkill {
	var out []InstalledSkill
	s.readLock(func() {
		for _, id := range sortedKeys(s.installedSkills) {
			sk := s.installedSkills[id]
			if sk.TenantID == tenantID && sk.Active {
				out = append(out, *sk)
			}
		}
	})
	return out
}

// ListInstalledSkills returns every installed skill for a tenant.
func (s *Store) ListInstalledSkills(tenantID string) []InstalledSkill {
	var out []InstalledSkill
	s.readLock(func() {
		for _, id := range sortedKeys(s.installedSkills) {
			sk := s.installedSkills[id]
			if sk.TenantID == tenantID {
				out = append(out, *sk)
			}
		}
	})
	return out
}

// AppendSkillRun records a skill dispatch.
func (s *Store) AppendSkillRun(r SkillRun) SkillRun {
	s.withLock(func() {
		r.ID = newUUID("skillrun")
		r.CreatedAt = time.Now()
		s.skillRuns = append(s.skillRuns, r)
	})
	return r
}

// ListSkillRuns returns every skill run for a tenant.
func (s *Store) ListSkillRuns(tenantID string) []SkillRun {
	var out []SkillRun
	s.readLock(func() {
		for _, r := range s.skillRuns {
			if r.TenantID == tenantID {
				out = append(out, r)
			}
		}
	})
	return out
}
