package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/signworks/internal/config"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/store/sqlstore"
)

func TestOpenStorePicksBackendByDriver(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenStore(config.Config{DBDriver: DriverFile, FileStoreDir: dir}, false)
	require.NoError(t, err)
	assert.IsType(t, &filestore.Store{}, s)
	require.NoError(t, s.Close())

	s, err = OpenStore(config.Config{DBDriver: "sqlite", DBPath: filepath.Join(dir, "app.db")}, true)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(config.Config{DBDriver: "mysql"}, false)
	assert.Error(t, err)
}

func TestNewLoadsStoredPreferences(t *testing.T) {
	ctx := context.Background()
	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)

	stored := model.DefaultSettings()
	stored.Locale = "en-US"
	stored.Currency = "USD"
	stored.Plan = model.PlanPro
	require.NoError(t, s.SaveSettings(ctx, stored))

	a, err := New(ctx, config.Config{DBDriver: DriverFile}, s, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	prefs := a.State.Preferences()
	assert.Equal(t, "en-US", prefs.Locale)
	assert.Equal(t, model.PlanPro, prefs.Plan)
	assert.NotNil(t, a.Orders)
	assert.NotNil(t, a.Reports)
}
