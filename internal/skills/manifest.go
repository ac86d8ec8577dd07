// Package skills implements the skill-pack runtime: manifest validation
// and tamper-evident signing, install/activation, trigger-based
// routing, guardrail enforcement, and deterministic-or-adapter-dispatched
// tool execution.
package skills

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

var (
	idPattern      = regexp.MustCompile(`^[a-z0-9-]{2,80}$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
)

var toolCatalog = map[string]bool{
	"compute.finance_snapshot":       true,
	"compute.data_quality_snapshot":  true,
	"compute.deal_desk_snapshot":     true,
	"model.run":                      true,
	"reports.generate":               true,
}

// ValidateManifest checks a skill manifest against the runtime's schema,
// filling in default fields (e.g. a blank context token budget) on the
// caller's manifest so the defaulted value is what gets signed and
// persisted, not discarded along with a value copy.
func ValidateManifest(m *state.SkillManifest) error {
	if !idPattern.MatchString(m.ID) {
		return apierror.BadRequest("skill id %q must match ^[a-z0-9-]{2,80}$", m.ID)
	}
	if !versionPattern.MatchString(m.Version) {
		return apierror.BadRequest("skill version %q is not valid semver", m.Version)
	}
	if len(m.Triggers.Intents) == 0 {
		return apierror.BadRequest("skill %q must declare at least one trigger intent", m.ID)
	}
	if len(m.Tools) == 0 {
		return apierror.BadRequest("skill %q must declare at least one tool", m.ID)
	}
	for _, t := range m.Tools {
		if !toolCatalog[t.ID] && !isCustomTool(t.ID) {
			return apierror.BadRequest("tool %q is not in the tool catalog and is not a custom.* tool", t.ID)
		}
	}
	if m.Guardrails.ContextTokenBudget == 0 {
		m.Guardrails.ContextTokenBudget = 1400
	}
	switch m.RiskLevel {
	case "low", "medium", "high":
	default:
		return apierror.BadRequest("riskLevel %q must be one of low, medium, high", m.RiskLevel)
	}
	return nil
}

func isCustomTool(id string) bool {
	return len(id) > 7 && id[:7] == "custom."
}

// Sign computes sha256(canonical-json(manifest)) as the manifest's
// tamper-detection signature. Round-tripping through a generic map
// canonicalizes key order (encoding/json sorts map keys on marshal,
// unlike struct fields which marshal in declaration order).
func Sign(m state.SkillManifest) string {
	body, _ := json.Marshal(m)
	var generic map[string]any
	_ = json.Unmarshal(body, &generic)
	canon, _ := json.Marshal(generic)
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}
