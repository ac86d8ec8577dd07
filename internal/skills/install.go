package skills

import (
	"github.com/rcourtman/insightctl/internal/state"
)

// Service wires skill install/activation/dispatch to the store.
type Service struct {
	store *state.Store
}

func New(store *state.Store) *Service {
	return &Service{store: store}
}

// Install validates and signs a manifest, then stores it as a new
// install. Activating a new install deactivates every other install of
// the same baseId for the tenant (enforced by the store).
func (s *Service) Install(tenantID, baseID string, manifest state.SkillManifest, active bool) (state.InstalledSkill, error) {
	if err := ValidateManifest(&manifest); err != nil {
		return state.InstalledSkill{}, err
	}
	sig := Sign(manifest)
	return s.store.InstallSkill(state.InstalledSkill{
		ID:       baseID + "@" + manifest.Version,
		BaseID:   baseID,
		TenantID: tenantID,
		Manifest: manifest,
		Signature: sig,
		Active:    active,
	}), nil
}
