package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		SplitSeparator:   ".",
		SyncQuietSeconds: 3,
		MaintenanceCron:  "0 3 * * *",
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	assert.NoError(t, validSettings().Validate())

	s := validSettings()
	s.SplitSeparator = " "
	assert.Error(t, s.Validate())

	s = validSettings()
	s.SyncQuietSeconds = 0
	assert.Error(t, s.Validate())

	s = validSettings()
	s.MaintenanceCron = "every day"
	assert.Error(t, s.Validate())
}

func TestWriteAndLoadRuntimeSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	want := validSettings()
	want.SyncQuietSeconds = 7

	require.NoError(t, WriteRuntimeSettingsFile(path, want))

	// no stray tmp file left behind
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSettingsStore_FallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewSettingsStore(path, validSettings())
	require.NoError(t, err)

	got, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, validSettings(), got)
}

func TestSettingsStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewSettingsStore(path, validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.SplitSeparator = "。"
	next.SyncQuietSeconds = 10

	updated, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, next, updated)

	reloaded, err := NewSettingsStore(path, RuntimeSettings{SplitSeparator: ".", SyncQuietSeconds: 1, MaintenanceCron: "0 0 * * *"})
	require.NoError(t, err)
	got, err := reloaded.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewSettingsStore(path, validSettings())
	require.NoError(t, err)

	bad := validSettings()
	bad.SyncQuietSeconds = -1
	_, err = store.UpdateRuntimeSettings(bad)
	assert.Error(t, err)

	got, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, validSettings(), got)
}

func TestWithRuntimeSettings_OverridesConfig(t *testing.T) {
	cfg, err := New(WithRuntimeSettings(RuntimeSettings{
		SplitSeparator:   "!",
		SyncQuietSeconds: 9,
		MaintenanceCron:  "30 4 * * *",
	}))
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Annotate.SplitSeparator)
	assert.Equal(t, 9, cfg.Annotate.SyncQuietSeconds)
	assert.Equal(t, "30 4 * * *", cfg.Maintenance.CronExpr)
}
