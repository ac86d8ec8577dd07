package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

func TestInstallValidatesManifest(t *testing.T) {
	store := state.New(nil)
	svc := New(store)
	m := validManifest()
	m.ID = "Bad ID!"
	_, err := svc.Install("t1", "bad-skill", m, true)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestInstallSignsManifestAndDeactivatesSiblings(t *testing.T) {
	store := state.New(nil)
	svc := New(store)

	first, err := svc.Install("t1", "finance-digest", validManifest(), true)
	require.NoError(t, err)
	assert.Equal(t, Sign(first.Manifest), first.Signature)

	m2 := validManifest()
	m2.Version = "1.1.0"
	second, err := svc.Install("t1", "finance-digest", m2, true)
	require.NoError(t, err)

	refreshed, err := store.GetInstalledSkill("t1", first.InstallID)
	require.NoError(t, err)
	assert.False(t, refreshed.Active)
	assert.True(t, second.Active)
}

func TestInstallPersistsDefaultedGuardrailsOnTheStoredManifest(t *testing.T) {
	store := state.New(nil)
	svc := New(store)

	m := validManifest()
	m.Guardrails.ContextTokenBudget = 0
	installed, err := svc.Install("t1", "finance-digest", m, true)
	require.NoError(t, err)

	assert.Equal(t, 1400, installed.Manifest.Guardrails.ContextTokenBudget)

	refreshed, err := store.GetInstalledSkill("t1", installed.InstallID)
	require.NoError(t, err)
	assert.Equal(t, 1400, refreshed.Manifest.Guardrails.ContextTokenBudget)
}
