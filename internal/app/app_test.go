package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	root := t.TempDir()
	return &config.Config{
		FacesDir:     filepath.Join(root, "faces"),
		BackupDir:    filepath.Join(root, "backups"),
		SettingsPath: filepath.Join(root, "settings.yaml"),
		CascadePaths: []string{filepath.Join(root, "models")},
	}
}

func TestNewCoreWithoutModel(t *testing.T) {
	t.Setenv("EXTERNAL_STORAGE", "")
	cfg := testConfig(t)

	core, err := NewCore(context.Background(), cfg, logger.NewDiscard(), CoreOptions{})
	require.NoError(t, err)
	defer core.Close()

	assert.Equal(t, config.DefaultSettings(), core.Settings.Get())
	assert.Zero(t, core.Store.Len())
	assert.False(t, core.Backups.HasOffsite())
	assert.FileExists(t, cfg.SettingsPath)

	_, err = core.Manager.EnrollImage([]byte{0x89, 0x50}, "Alice")
	assert.ErrorIs(t, err, models.ErrEmptyImage)
}

func TestNewCoreRejectsInvalidSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.SettingsPath = t.TempDir()

	_, err := NewCore(context.Background(), cfg, logger.NewDiscard(), CoreOptions{})
	assert.Error(t, err)
}

func TestNewCoreOffsiteDisabledWithoutEndpoint(t *testing.T) {
	core, err := NewCore(context.Background(), testConfig(t), logger.NewDiscard(), CoreOptions{Offsite: true})
	require.NoError(t, err)
	defer core.Close()
	assert.False(t, core.Backups.HasOffsite())
}
