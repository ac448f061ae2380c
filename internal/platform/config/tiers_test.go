package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTiersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTiers(t *testing.T) {
	path := writeTiersFile(t, `
tiers:
  - id: bronze
    name: Bronze
    min_points: 0
    benefits: [basic_support]
  - id: silver
    name: Silver
    min_points: 500
`)

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "bronze", tiers[0].ID)
	assert.EqualValues(t, 500, tiers[1].MinPoints)
	assert.True(t, tiers[0].HasBenefit("basic_support"))
}

func TestLoadTiersRejectsDuplicateIDs(t *testing.T) {
	path := writeTiersFile(t, `
tiers:
  - id: bronze
    name: Bronze
    min_points: 0
  - id: bronze
    name: Bronze Again
    min_points: 100
`)

	_, err := LoadTiers(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tier id")
}

func TestLoadTiersRejectsNegativeThreshold(t *testing.T) {
	path := writeTiersFile(t, `
tiers:
  - id: bronze
    name: Bronze
    min_points: -10
`)

	_, err := LoadTiers(path)
	require.Error(t, err)
}

func TestLoadTiersMissingFile(t *testing.T) {
	_, err := LoadTiers(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
