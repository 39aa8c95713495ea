// Package goals loads the configured conversion goals from a YAML file and
// answers lookups by code and by analytics goal ID.
package goals

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"uxpulse/api/models"
)

// Registry is an immutable goal set loaded at startup. It satisfies the
// analysis GoalResolver boundary.
type Registry struct {
	goals  []models.Goal
	byCode map[string]models.Goal
	byID   map[int64]models.Goal
}

type registryFile struct {
	Goals []models.Goal `yaml:"goals"`
}

// Empty returns a registry with no goals. Path extraction and funnel
// matching degrade to URL-only behavior.
func Empty() *Registry {
	return &Registry{
		byCode: map[string]models.Goal{},
		byID:   map[int64]models.Goal{},
	}
}

// Load reads a goals YAML file. Duplicate codes are a configuration error.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read goals file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse goals YAML: %w", err)
	}

	reg := &Registry{
		goals:  file.Goals,
		byCode: make(map[string]models.Goal, len(file.Goals)),
		byID:   make(map[int64]models.Goal, len(file.Goals)),
	}
	for _, goal := range file.Goals {
		if goal.Code == "" {
			return nil, fmt.Errorf("goal without a code in goals file")
		}
		if err := validateMatch(goal); err != nil {
			return nil, err
		}
		if _, dup := reg.byCode[goal.Code]; dup {
			return nil, fmt.Errorf("duplicate goal code %q in goals file", goal.Code)
		}
		reg.byCode[goal.Code] = goal
		if goal.YMGoalID != 0 {
			reg.byID[goal.YMGoalID] = goal
		}
	}
	return reg, nil
}

func validateMatch(goal models.Goal) error {
	switch goal.Match.Type {
	case models.MatchIdentifier, models.MatchClick:
		return nil
	case models.MatchURLPrefix, models.MatchURLContains:
		if goal.Match.Value == "" {
			return fmt.Errorf("goal %q has a %s match without a value", goal.Code, goal.Match.Type)
		}
		return nil
	default:
		return fmt.Errorf("goal %q has unknown match type %q", goal.Code, goal.Match.Type)
	}
}

// GoalByCode looks a goal up by its configured code.
func (r *Registry) GoalByCode(code string) (models.Goal, bool) {
	goal, ok := r.byCode[code]
	return goal, ok
}

// GoalByID looks a goal up by its analytics counter goal ID.
func (r *Registry) GoalByID(id int64) (models.Goal, bool) {
	goal, ok := r.byID[id]
	return goal, ok
}

// All returns the goals in file order.
func (r *Registry) All() []models.Goal {
	out := make([]models.Goal, len(r.goals))
	copy(out, r.goals)
	return out
}
