package competition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region roster
type rosterFile struct {
	Directors []Identity `yaml:"directors"`
}

// LoadRoster reads the director roster: one Identity per competitor with
// its evaluator weight and trait vector.
func LoadRoster(path string) ([]Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(f.Directors) == 0 {
		return nil, fmt.Errorf("roster %s: no directors", path)
	}

	seen := make(map[string]bool)
	for _, id := range f.Directors {
		if id.ID == "" {
			return nil, fmt.Errorf("roster %s: director with empty id", path)
		}
		if seen[id.ID] {
			return nil, fmt.Errorf("roster %s: duplicate director %s", path, id.ID)
		}
		seen[id.ID] = true
		if id.Weight <= 0 {
			return nil, fmt.Errorf("roster %s: director %s has non-positive weight %.2f", path, id.ID, id.Weight)
		}
	}
	return f.Directors, nil
}

// #endregion roster
