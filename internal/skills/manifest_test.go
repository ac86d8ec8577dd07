package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

func validManifest() state.SkillManifest {
	return state.SkillManifest{
		ID:      "finance-digest",
		Version: "1.0.0",
		Name:    "Finance Digest",
		Triggers: state.Triggers{
			Intents:  []string{"finance summary"},
			Channels: []string{"slack"},
		},
		Tools: []state.ToolSpec{
			{ID: "compute.finance_snapshot", Allow: true},
		},
		Guardrails: state.Guardrails{ConfidenceMin: 0.5, TokenBudget: 2000, TimeBudgetMs: 5000},
		RiskLevel:  "low",
	}
}

func TestValidateManifestAccepts(t *testing.T) {
	m := validManifest()
	require.NoError(t, ValidateManifest(&m))
}

func TestValidateManifestRejectsBadID(t *testing.T) {
	m := validManifest()
	m.ID = "Finance Digest!"
	err := ValidateManifest(&m)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestValidateManifestRejectsBadVersion(t *testing.T) {
	m := validManifest()
	m.Version = "v1"
	err := ValidateManifest(&m)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestValidateManifestRequiresIntents(t *testing.T) {
	m := validManifest()
	m.Triggers.Intents = nil
	require.Error(t, ValidateManifest(&m))
}

func TestValidateManifestRequiresTools(t *testing.T) {
	m := validManifest()
	m.Tools = nil
	require.Error(t, ValidateManifest(&m))
}

func TestValidateManifestRejectsUnknownTool(t *testing.T) {
	m := validManifest()
	m.Tools = []state.ToolSpec{{ID: "compute.nonexistent", Allow: true}}
	require.Error(t, ValidateManifest(&m))
}

func TestValidateManifestAllowsCustomTool(t *testing.T) {
	m := validManifest()
	m.Tools = []state.ToolSpec{{ID: "custom.my_tool", Allow: true}}
	require.NoError(t, ValidateManifest(&m))
}

func TestValidateManifestRejectsBadRiskLevel(t *testing.T) {
	m := validManifest()
	m.RiskLevel = "extreme"
	require.Error(t, ValidateManifest(&m))
}

func TestValidateManifestDefaultsContextTokenBudgetOnCaller(t *testing.T) {
	m := validManifest()
	m.Guardrails.ContextTokenBudget = 0
	require.NoError(t, ValidateManifest(&m))
	assert.Equal(t, 1400, m.Guardrails.ContextTokenBudget)
}

func TestSignIsDeterministic(t *testing.T) {
	m := validManifest()
	first := Sign(m)
	second := Sign(m)
	assert.Equal(t, first, second)
}

func TestSignChangesWithManifestContent(t *testing.T) {
	m := validManifest()
	original := Sign(m)
	m.Name = "Finance Digest v2"
	assert.NotEqual(t, original, Sign(m))
}
