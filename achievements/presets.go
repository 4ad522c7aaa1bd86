package achievements

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Dosada05/arcade-tournaments/models"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a catalogue entry copied into a tournament as a definition.
type Preset struct {
	Code        string          `yaml:"code"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Icon        string          `yaml:"icon"`
	Points      int             `yaml:"points"`
	RuleType    models.RuleType `yaml:"rule_type"`
	Threshold   int64           `yaml:"threshold"`
}

var (
	presetsOnce sync.Once
	presets     []Preset
	presetsErr  error
)

// Presets returns the built-in catalogue. The slice is a copy.
func Presets() ([]Preset, error) {
	presetsOnce.Do(func() {
		presets, presetsErr = parsePresets(presetsYAML)
	})
	if presetsErr != nil {
		return nil, presetsErr
	}
	return append([]Preset(nil), presets...), nil
}

func parsePresets(raw []byte) ([]Preset, error) {
	var list []Preset
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse achievement presets: %w", err)
	}
	seen := make(map[string]bool, len(list))
	for i := range list {
		p := &list[i]
		if p.Code == "" || p.Name == "" {
			return nil, fmt.Errorf("preset #%d: code and name are required", i)
		}
		if seen[p.Code] {
			return nil, fmt.Errorf("preset %q: duplicate code", p.Code)
		}
		seen[p.Code] = true
		threshold, err := ValidateRule(p.RuleType, p.Threshold)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Code, err)
		}
		p.Threshold = threshold
	}
	return list, nil
}

// Definition turns the preset into an unsaved definition for a tournament.
func (p Preset) Definition(tournamentID int) models.Achievement {
	return models.Achievement{
		TournamentID: tournamentID,
		Code:         p.Code,
		Name:         p.Name,
		Description:  p.Description,
		Icon:         p.Icon,
		Points:       p.Points,
		RuleType:     p.RuleType,
		Threshold:    p.Threshold,
		IsActive:     true,
	}
}
