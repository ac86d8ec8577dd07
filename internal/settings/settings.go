// Package settings implements the tenant settings, model profile, and
// report type surface: lazy defaults, deep-merge patches, and the two
// cross-effects that mirror settings fields back onto the tenant
// record.
package settings

import (
	"github.com/rcourtman/insightctl/internal/state"
)

// Service patches settings and manages profile/report-type presets
// against the canonical store.
type Service struct {
	store *state.Store
}

func New(store *state.Store) *Service {
	return &Service{store: store}
}

// Get returns the tenant's settings, lazily initialized.
func (s *Service) Get(tenantID string) (state.Settings, error) {
	return s.store.Settings(tenantID)
}

// GeneralPatch deep-merges into settings.general; non-object leaves are
// overwritten.
func (s *Service) GeneralPatch(tenantID string, patch map[string]any) (state.Settings, error) {
	return s.store.PatchSettings(tenantID, func(sett *state.Settings) {
		if sett.General == nil {
			sett.General = map[string]any{}
		}
		deepMerge(sett.General, patch)
	})
}

// ModelPreferencesPatch is the caller-supplied optional-field patch for
// settings.modelPreferences.
type ModelPreferencesPatch struct {
	DefaultProvider  *string
	DefaultProfileID *string
}

func (s *Service) ModelPreferencesPatch(tenantID string, patch ModelPreferencesPatch) (state.Settings, error) {
	return s.store.PatchSettings(tenantID, func(sett *state.Settings) {
		if patch.DefaultProvider != nil {
			sett.ModelPreferences.DefaultProvider = *patch.DefaultProvider
		}
		if patch.DefaultProfileID != nil {
			sett.ModelPreferences.DefaultProfileID = *patch.DefaultProfileID
		}
	})
}

// TrainingPatch patches settings.training. optIn is mirrored onto
// tenant.trainingOptIn.
func (s *Service) TrainingPatch(tenantID string, optIn bool) (state.Settings, error) {
	out, err := s.store.PatchSettings(tenantID, func(sett *state.Settings) {
		sett.Training.OptIn = optIn
	})
	if err != nil {
		return out, err
	}
	_, err = s.store.MutateTenant(tenantID, func(t *state.Tenant) {
		t.TrainingOptIn = optIn
	})
	return out, err
}

// PoliciesPatch is the caller-supplied optional-field patch for
// settings.policies / tenant.autonomyPolicy.
type PoliciesPatch struct {
	AutonomyMode        *string
	AutopilotEnabled    *bool
	ConfidenceThreshold *float64
	ActionAllowlist     []string
	HighImpactActions   []string
	BudgetGuardrailUsd  *float64
	KillSwitch          *bool
}

// PoliciesPatch patches settings.policies, which is always projected
// from tenant.autonomyPolicy on read; the patch is therefore applied to
// the tenant record directly and mirrored back.
func (s *Service) PoliciesPatch(tenantID string, patch PoliciesPatch) (state.Settings, error) {
	if _, err := s.store.MutateTenant(tenantID, func(t *state.Tenant) {
		p := &t.AutonomyPolicy
		if patch.AutonomyMode != nil {
			p.AutonomyMode = *patch.AutonomyMode
		}
		if patch.AutopilotEnabled != nil {
			p.AutopilotEnabled = *patch.AutopilotEnabled
		}
		if patch.ConfidenceThreshold != nil {
			p.ConfidenceThreshold = *patch.ConfidenceThreshold
		}
		if patch.ActionAllowlist != nil {
			p.ActionAllowlist = patch.ActionAllowlist
		}
		if patch.HighImpactActions != nil {
			p.HighImpactActions = patch.HighImpactActions
		}
		if patch.BudgetGuardrailUsd != nil {
			p.BudgetGuardrailUsd = *patch.BudgetGuardrailUsd
		}
		if patch.KillSwitch != nil {
			p.KillSwitch = *patch.KillSwitch
		}
	}); err != nil {
		return state.Settings{}, err
	}
	return s.store.Settings(tenantID)
}

// ChannelsPatch merges the patch into the settings one channel at a
// time, e.g. {"slack": {"enabled": true, "webhookRef": "..."}}: channels
// not named in the patch keep their settings, and each named channel's
// settings are replaced as a whole. Fields within a channel are not
// merged, so a field the patch leaves empty is cleared.
func (s *Service) ChannelsPatch(tenantID string, patch map[string]state.ChannelSettings) (state.Settings, error) {
	return s.store.PatchSettings(tenantID, func(sett *state.Settings) {
		if sett.Channels == nil {
			sett.Channels = map[string]state.ChannelSettings{}
		}
		for channel, cfg := range patch {
			sett.Channels[channel] = cfg
		}
	})
}

// deepMerge overwrites dst's leaves with src's, recursing only where
// both sides hold a nested object.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if srcObj, ok := v.(map[string]any); ok {
			if dstObj, ok := dst[k].(map[string]any); ok {
				deepMerge(dstObj, srcObj)
				continue
			}
			merged := map[string]any{}
			deepMerge(merged, srcObj)
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

// ModelProfilePresets are seeded the first time a tenant creates a
// profile from a preset name.
var ModelProfilePresets = map[string]state.ModelProfile{
	"Revenue Forecast": {Name: "Revenue Forecast", Objective: "forecast", TargetMetricID: "revenue", HorizonDays: 30},
	"Profit Forecast":  {Name: "Profit Forecast", Objective: "forecast", TargetMetricID: "profit", HorizonDays: 30},
	"Funnel Anomaly":   {Name: "Funnel Anomaly", Objective: "anomaly", TargetMetricID: "pipeline_value", HorizonDays: 14},
	"Pipeline Risk":    {Name: "Pipeline Risk", Objective: "anomaly", TargetMetricID: "pipeline_value", HorizonDays: 14},
}

// CreateModelProfile creates a profile, optionally starting from one of
// the named presets.
func (s *Service) CreateModelProfile(tenantID, presetName string, overrides state.ModelProfile) state.ModelProfile {
	p := overrides
	if preset, ok := ModelProfilePresets[presetName]; ok {
		if p.Name == "" {
			p.Name = preset.Name
		}
		if p.Objective == "" {
			p.Objective = preset.Objective
		}
		if p.TargetMetricID == "" {
			p.TargetMetricID = preset.TargetMetricID
		}
		if p.HorizonDays == 0 {
			p.HorizonDays = preset.HorizonDays
		}
	}
	p.TenantID = tenantID
	return s.store.CreateModelProfile(p)
}

// ActivateModelProfile activates a profile and mirrors its id into
// settings.modelPreferences.defaultProfileId.
func (s *Service) ActivateModelProfile(tenantID, profileID string) (state.ModelProfile, error) {
	return s.store.ActivateModelProfile(tenantID, profileID)
}
