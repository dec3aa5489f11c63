// Package sim is the deterministic physics engine of the simulation: the
// static role catalog plus the pure functions that map a chosen approach to
// metric deltas and skill-score increments. No I/O happens here.
package sim

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// The three fixed conversational approaches a user can select.
const (
	ApproachRelationship = "Relationship"
	ApproachResults      = "Results"
	ApproachBoundary     = "Boundary"
)

// SkillIncrement is the flat score awarded to the skill mapped to a chosen
// approach. No other increment values exist.
const SkillIncrement = 10

// Metric polarity values: whether a higher metric value is favorable.
const (
	PolarityHigh = "high"
	PolarityLow  = "low"
)

// ScenarioTemplate is one canonical scenario from the role catalog.
type ScenarioTemplate struct {
	Stakeholder string `yaml:"stakeholder"`
	Description string `yaml:"description"`
}

// RoleConfig is the static, read-only configuration for one role.
type RoleConfig struct {
	InitialState    map[string]int            `yaml:"initialState"`
	Metrics         []string                  `yaml:"metrics"`
	MetricPolarity  map[string]string         `yaml:"metricPolarity"`
	Skills          map[string]string         `yaml:"skills"`
	ApproachEffects map[string]map[string]int `yaml:"approachEffects"`
	Scenarios       []ScenarioTemplate        `yaml:"scenarios"`
	Competencies    []string                  `yaml:"competencies"`
	Requirements    map[string]int            `yaml:"requirements"`
}

type catalogFile struct {
	Roles map[string]RoleConfig `yaml:"roles"`
}

//go:embed catalog.yaml
var catalogYAML []byte

var catalog map[string]RoleConfig

func init() {
	var f catalogFile
	if err := yaml.Unmarshal(catalogYAML, &f); err != nil {
		panic(fmt.Sprintf("sim: parse embedded catalog: %v", err))
	}
	if len(f.Roles) == 0 {
		panic("sim: embedded catalog has no roles")
	}
	catalog = f.Roles
}

// Roles returns the configured role names in stable order.
func Roles() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidRole reports whether a role exists in the catalog.
func ValidRole(role string) bool {
	_, ok := catalog[role]
	return ok
}

// Config returns the catalog entry for a role.
func Config(role string) (RoleConfig, bool) {
	cfg, ok := catalog[role]
	return cfg, ok
}

// ValidApproach reports whether the approach is one of the three fixed
// categories.
func ValidApproach(approach string) bool {
	switch approach {
	case ApproachRelationship, ApproachResults, ApproachBoundary:
		return true
	}
	return false
}

// InitialWorldState returns a fresh copy of the role's starting metrics.
func InitialWorldState(role string) map[string]int {
	cfg, ok := catalog[role]
	if !ok {
		return nil
	}
	state := make(map[string]int, len(cfg.InitialState))
	for k, v := range cfg.InitialState {
		state[k] = v
	}
	return state
}

// ApplyApproach returns a new world state with the role's delta vector for
// the approach applied. Every resulting value is clamped to [0,100]; metrics
// not mentioned by the vector are carried over unchanged.
func ApplyApproach(world map[string]int, role, approach string) map[string]int {
	next := make(map[string]int, len(world))
	for k, v := range world {
		next[k] = v
	}

	cfg, ok := catalog[role]
	if !ok {
		return next
	}
	effects, ok := cfg.ApproachEffects[approach]
	if !ok {
		return next
	}

	for metric, delta := range effects {
		next[metric] = clamp(next[metric]+delta, 0, 100)
	}
	return next
}

// SkillDelta returns the role-specific skill name mapped to the approach and
// the fixed increment to award it. The increment is always SkillIncrement;
// an unknown role or approach yields an empty skill name and zero.
func SkillDelta(role, approach string) (string, int) {
	cfg, ok := catalog[role]
	if !ok {
		return "", 0
	}
	skill, ok := cfg.Skills[approach]
	if !ok {
		return "", 0
	}
	return skill, SkillIncrement
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
