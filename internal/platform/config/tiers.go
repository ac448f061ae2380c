package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"loyalty/internal/loyalty/models"
)

type tiersFile struct {
	Tiers []models.Tier `yaml:"tiers"`
}

// LoadTiers reads the tier table from a YAML file. The file is the source of
// truth for tier configuration; stores are seeded from it at boot.
//
// Tier IDs must be unique, and thresholds should be too: equal MinPoints
// values make assignment depend on file order.
func LoadTiers(path string) ([]models.Tier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}

	var parsed tiersFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse tiers file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(parsed.Tiers))
	for _, tier := range parsed.Tiers {
		if tier.ID == "" {
			return nil, fmt.Errorf("tiers file %s: tier with empty id", path)
		}
		if seen[tier.ID] {
			return nil, fmt.Errorf("tiers file %s: duplicate tier id %q", path, tier.ID)
		}
		seen[tier.ID] = true
		if tier.MinPoints < 0 {
			return nil, fmt.Errorf("tiers file %s: tier %q has negative min_points", path, tier.ID)
		}
	}

	return parsed.Tiers, nil
}
