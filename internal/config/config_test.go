package config

import (
	"os"
	"path/filepath"
	"testing"

	"fieldhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: fieldhire
  environment: test

database:
  path: data/test.db

api:
  enabled: true
  http:
    port: 9999
  auth:
    api_keys:
      - key: secret-1
        name: Test Farmer
        role: farmer
        actor_id: farmer-1

engine:
  max_booking_days: 90

resources:
  - id: tractor-1
    supplier_id: supplier-1
    name: Tractor
    category: Tractor
    purpose_rates:
      plowing: 120
    quantity_available: 1
    available: true
    approval_status: approved
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fieldhire", cfg.App.Name)
	assert.Equal(t, "data/test.db", cfg.Database.Path)
	assert.Equal(t, 9999, cfg.API.HTTP.Port)
	assert.True(t, cfg.API.HTTP.Enabled, "api.enabled implies the http listener")
	assert.Equal(t, 90, cfg.Engine.MaxBookingDays)

	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "farmer-1", cfg.API.Auth.APIKeys[0].ActorID)
	assert.Equal(t, models.RoleFarmer, cfg.API.Auth.APIKeys[0].Role)

	require.Len(t, cfg.Resources, 1)
	assert.Equal(t, 120.0, cfg.Resources[0].PurposeRates["plowing"])
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: data/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.True(t, cfg.API.Auth.Enabled, "auth is on unless explicitly configured off in code")
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, models.DefaultSweepInterval, cfg.Engine.SweepIntervalSeconds)
	assert.Equal(t, models.DefaultMaxBookingDays, cfg.Engine.MaxBookingDays)
	assert.Equal(t, 30, cfg.Engine.BroadcastHorizonDays)
	assert.Equal(t, models.DefaultOfferIndexTTL, cfg.Engine.OfferIndexTTLSeconds)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "data/from-env.db")
	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data/from-env.db", cfg.Database.Path)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing database path", func(t *testing.T) {
		path := writeConfig(t, `
app:
  name: fieldhire
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "database path")
	})

	t.Run("telegram enabled without token", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: data/test.db
telegram:
  enabled: true
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "bot_token")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidateResources(t *testing.T) {
	valid := models.Resource{ID: "tractor-1", SupplierID: "supplier-1", Name: "Tractor"}

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, ValidateResources([]models.Resource{valid}))
	})

	t.Run("empty id", func(t *testing.T) {
		err := ValidateResources([]models.Resource{{Name: "Nameless", SupplierID: "supplier-1"}})
		assert.ErrorContains(t, err, "empty ID")
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := ValidateResources([]models.Resource{valid, valid})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("missing supplier", func(t *testing.T) {
		err := ValidateResources([]models.Resource{{ID: "tractor-2", Name: "Tractor"}})
		assert.ErrorContains(t, err, "no supplier")
	})
}
