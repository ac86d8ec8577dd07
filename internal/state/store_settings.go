package state

import "github.com/rcourtman/insightctl/internal/apierror"

// CreateModelProfile stores a model-run preset, deactivating sibling
// profiles when active (at most one active profile per tenant).
func (s *Store) CreateModelProfile(p ModelProfile) ModelProfile {
	s.withLock(func() {
		p.ID = newUUID("profile")
		if p.Active {
			for _, other := range s.modelProfiles {
				if other.TenantID == p.TenantID {
					other.Active = false
				}
			}
		}
		cp := p
		s.modelProfiles[p.ID] = &cp
	})
	return p
}

// ListModelProfiles returns every model profile for a tenant.
func (s *Store) ListModelProfiles(tenantID string) []ModelProfile {
	var out []ModelProfile
	s.readLock(func() {
		for _, id := range sortedKeys(s.modelProfiles) {
			p := s.modelProfiles[id]
			if p.TenantID == tenantID {
				out = append(out, *p)
			}
		}
	})
	return out
}

// ActiveModelProfile returns the tenant's active profile, if any.
func (s *Store) ActiveModelProfile(tenantID string) (ModelProfile, bool) {
	var out ModelProfile
	var ok bool
	s.readLock(func() {
		for _, id := range sortedKeys(s.modelProfiles) {
			p := s.modelProfiles[id]
			if p.TenantID == tenantID && p.Active {
				out = *p
				ok = true
				return
			}
		}
	})
	return out, ok
}

// GetModelProfile returns a tenant-scoped model profile by id.
func (s *Store) GetModelProfile(tenantID, id string) (ModelProfile, error) {
	var out ModelProfile
	var err error
	s.readLock(func() {
		p, ok := s.modelProfiles[id]
		if !ok || p.TenantID != tenantID {
			err = apierror.NotFound("model profile %q not found", id)
			return
		}
		out = *p
	})
	return out, err
}

// PatchModelProfile applies fn to a tenant-scoped model profile.
func (s *Store) PatchModelProfile(tenantID, id string, fn func(*ModelProfile)) (ModelProfile, error) {
	var out ModelProfile
	var err error
	s.withLock(func() {
		p, ok := s.modelProfiles[id]
		if !ok || p.TenantID != tenantID {
			err = apierror.NotFound("model profile %q not found", id)
			return
		}
		fn(p)
		out = *p
	})
	return out, err
}

// ActivateModelProfile marks a profile as the tenant's single active
// one and mirrors its id into settings.modelPreferences.defaultProfileId.
func (s *Store) ActivateModelProfile(tenantID, id string) (ModelProfile, error) {
	var out ModelProfile
	var err error
	s.withLock(func() {
		target, ok := s.modelProfiles[id]
		if !ok || target.TenantID != tenantID {
			err = apierror.NotFound("model profile %q not found", id)
			return
		}
		for _, p := range s.modelProfiles {
			if p.TenantID == tenantID {
				p.Active = p.ID == id
			}
		}
		sett, ok := s.settings[tenantID]
		if !ok {
			sett = &Settings{TenantID: tenantID, General: map[string]any{}, Channels: map[string]ChannelSettings{}}
			s.settings[tenantID] = sett
		}
		sett.ModelPreferences.DefaultProfileID = id
		out = *target
	})
	return out, err
}

// CreateReportType stores a report type definition.
func (s *Store) CreateReportType(rt ReportType) ReportType {
	s.withLock(func() {
		rt.ID = newUUID("rtype")
		cp := rt
		s.reportTypes[rt.ID] = &cp
	})
	return rt
}

// ListReportTypes returns every report type for a tenant, seeding the
// built-in presets (weekly performance digest, anomaly brief) the first
// time a tenant is queried.
func (s *Store) ListReportTypes(tenantID string) []ReportType {
	var out []ReportType
	s.withLock(func() {
		s.seedReportTypesLocked(tenantID)
		for _, id := range sortedKeys(s.reportTypes) {
			rt := s.reportTypes[id]
			if rt.TenantID == tenantID {
				out = append(out, *rt)
			}
		}
	})
	return out
}

func (s *Store) seedReportTypesLocked(tenantID string) {
	for _, rt := range s.reportTypes {
		if rt.TenantID == tenantID {
			return
		}
	}
	presets := []ReportType{
		{
			TenantID:        tenantID,
			Name:            "Weekly performance digest",
			Sections:        []string{"summary", "forecast", "recommended_actions"},
			DefaultChannels: []string{"email"},
			DefaultFormat:   "pdf",
			Schedule:        "weekly",
		},
		{
			TenantID:        tenantID,
			Name:            "Anomaly brief",
			Sections:        []string{"anomalies", "recommended_actions"},
			DefaultChannels: []string{"slack"},
			DefaultFormat:   "html",
		},
	}
	for _, rt := range presets {
		rt.ID = newUUID("rtype")
		cp := rt
		s.reportTypes[rt.ID] = &cp
	}
}

// GetReportType returns a tenant-scoped report type by id.
func (s *Store) GetReportType(tenantID, id string) (ReportType, error) {
	var out ReportType
	var err error
	s.readLock(func() {
		rt, ok := s.reportTypes[id]
		if !ok || rt.TenantID != tenantID {
			err = apierror.NotFound("report type %q not found", id)
			return
		}
		out = *rt
	})
	return out, err
}

// PatchReportType applies fn to a tenant-scoped report type.
func (s *Store) PatchReportType(tenantID, id string, fn func(*ReportType)) (ReportType, error) {
	var out ReportType
	var err error
	s.withLock(func() {
		s.seedReportTypesLocked(tenantID)
		rt, ok := s.reportTypes[id]
		if !ok || rt.TenantID != tenantID {
			err = apierror.NotFound("report type %q not found", id)
			return
		}
		fn(rt)
		out = *rt
	})
	return out, err
}

// Settings returns the tenant's settings, lazily initializing defaults
// and projecting Policies from the tenant's live AutonomyPolicy (never
// stored separately).
func (s *Store) Settings(tenantID string) (Settings, error) {
	var out Settings
	var err error
	s.withLock(func() {
		t, terr := s.requireTenant(tenantID)
		if terr != nil {
			err = terr
			return
		}
		sett, ok := s.settings[tenantID]
		if !ok {
			sett = &Settings{
				TenantID:         tenantID,
				General:          map[string]any{},
				ModelPreferences: ModelPreferences{DefaultProvider: t.ModelConfig.DefaultProvider},
				Training:         TrainingSettings{OptIn: t.TrainingOptIn},
				Channels:         map[string]ChannelSettings{},
			}
			s.settings[tenantID] = sett
		}
		sett.Policies = t.AutonomyPolicy
		sett.Checklist = s.deriveChecklistLocked(tenantID)
		out = *sett
	})
	return out, err
}

// PatchSettings deep-merges a partial update into the tenant's settings.
func (s *Store) PatchSettings(tenantID string, fn func(*Settings)) (Settings, error) {
	var out Settings
	var err error
	s.withLock(func() {
		t, terr := s.requireTenant(tenantID)
		if terr != nil {
			err = terr
			return
		}
		sett, ok := s.settings[tenantID]
		if !ok {
			sett = &Settings{TenantID: tenantID, General: map[string]any{}, Channels: map[string]ChannelSettings{}}
			s.settings[tenantID] = sett
		}
		fn(sett)
		sett.Policies = t.AutonomyPolicy
		sett.Checklist = s.deriveChecklistLocked(tenantID)
		out = *sett
	})
	return out, err
}

// deriveChecklistLocked must be called with s.mu held.
func (s *Store) deriveChecklistLocked(tenantID string) Checklist {
	var cl Checklist
	for _, c := range s.connections {
		if c.TenantID == tenantID {
			cl.ConnectionsConfigured = true
			break
		}
	}
	for _, p := range s.modelProfiles {
		if p.TenantID == tenantID {
			cl.ModelProfileConfigured = true
			break
		}
	}
	for _, rt := range s.reportTypes {
		if rt.TenantID == tenantID {
			cl.ReportTypeConfigured = true
			break
		}
	}
	if sett, ok := s.settings[tenantID]; ok {
		for _, ch := range sett.Channels {
			if ch.Enabled {
				cl.ChannelsConfigured = true
				break
			}
		}
	}
	return cl
}
