package rules

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/andresmejia3/formcheck/internal/repetition"
	"gopkg.in/yaml.v3"
)

// Override adjusts one exercise's thresholds. Nil fields keep the built-in value.
type Override struct {
	Lo      *float64 `yaml:"lo"`
	Hi      *float64 `yaml:"hi"`
	Delta   *float64 `yaml:"delta"`
	Disable []string `yaml:"disable"`
}

// Overrides maps exercise identifiers to their adjustments.
type Overrides map[string]Override

// LoadOverrides reads a YAML overrides file.
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return o, nil
}

// Apply returns a copy of s with the overrides merged in. s is left untouched.
// Overriding an alias only changes that identifier.
func (s Set) Apply(o Overrides) (Set, error) {
	out := s.Clone()

	ids := make([]string, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ov := o[id]
		r, ok := out[id]
		if !ok {
			return nil, fmt.Errorf("unknown exercise %q in rules file", id)
		}

		if (ov.Lo != nil || ov.Hi != nil) && r.Detector != repetition.KindAngle {
			return nil, fmt.Errorf("exercise %q uses the %s detector: lo and hi only apply to angle detectors", id, r.Detector)
		}
		if ov.Delta != nil && r.Detector != repetition.KindHeight {
			return nil, fmt.Errorf("exercise %q uses the %s detector: delta only applies to height detectors", id, r.Detector)
		}

		if ov.Lo != nil {
			r.Lo = *ov.Lo
		}
		if ov.Hi != nil {
			r.Hi = *ov.Hi
		}
		if ov.Delta != nil {
			r.Delta = *ov.Delta
		}
		if r.Lo >= r.Hi && (ov.Lo != nil || ov.Hi != nil) {
			return nil, fmt.Errorf("exercise %q: lo (%.1f) must be below hi (%.1f)", id, r.Lo, r.Hi)
		}
		if ov.Delta != nil && r.Delta <= 0 {
			return nil, fmt.Errorf("exercise %q: delta must be positive, got %.1f", id, r.Delta)
		}

		if len(ov.Disable) > 0 {
			kept := make([]Check, 0, len(r.Checks))
			for _, c := range r.Checks {
				if !slices.Contains(ov.Disable, c.Name) {
					kept = append(kept, c)
				}
			}
			for _, name := range ov.Disable {
				if !slices.ContainsFunc(r.Checks, func(c Check) bool { return c.Name == name }) {
					return nil, fmt.Errorf("exercise %q has no check named %q", id, name)
				}
			}
			r.Checks = kept
		}

		out[id] = r
	}
	return out, nil
}
