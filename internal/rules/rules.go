// Package rules is the exercise rule table: for every exercise identifier it
// says which landmarks to read, which signal drives the repetition detector,
// and which angle bands count as form issues.
package rules

import (
	"sort"

	"github.com/andresmejia3/formcheck/internal/repetition"
	"github.com/andresmejia3/formcheck/internal/types"
)

// GenericName is the rule used for identifiers the table does not know.
const GenericName = "generic"

// Signal is the primary measurement of a rule. Its value is reported as the
// result's CurrentAngle and, unless the rule is a static hold, drives the detector.
type Signal struct {
	Name    string
	Compute func(*Joints) float64
}

// Band is one failure zone of a Check. It triggers when the measured value is
// strictly below (or above) Limit.
type Band struct {
	Limit   float64
	Above   bool
	Issue   types.FormIssue
	Penalty int
}

// Triggered reports whether v falls inside the band.
func (b Band) Triggered(v float64) bool {
	if b.Above {
		return v > b.Limit
	}
	return v < b.Limit
}

func below(limit float64, kind types.IssueKind, sev types.Severity, penalty int, desc string) Band {
	return Band{Limit: limit, Issue: types.FormIssue{Kind: kind, Severity: sev, Description: desc}, Penalty: penalty}
}

func above(limit float64, kind types.IssueKind, sev types.Severity, penalty int, desc string) Band {
	b := below(limit, kind, sev, penalty, desc)
	b.Above = true
	return b
}

// Check compares one measurement against an ordered list of bands. Only the
// first band that triggers is reported, so list the most severe band first.
//
// Optional lists landmarks the check needs beyond the rule's Required set.
// If any of them are unusable the check is skipped rather than failing the sample.
type Check struct {
	Name     string
	Optional []types.LandmarkID
	Measure  func(*Joints) float64
	Bands    []Band
}

// Evaluate returns the first triggered band, if any.
func (c Check) Evaluate(v float64) (Band, bool) {
	for _, b := range c.Bands {
		if b.Triggered(v) {
			return b, true
		}
	}
	return Band{}, false
}

// Rule is the full definition of how one exercise is analyzed.
type Rule struct {
	Name     string
	Required []types.LandmarkID
	Signal   Signal
	Detector repetition.Kind
	// Lo and Hi are the AngleContraction thresholds.
	Lo, Hi float64
	// Delta is the HeightContraction threshold.
	Delta       float64
	Checks      []Check
	Affirmation string
	// Baseline is the score before penalties. Rules without form checks use a
	// lower ceiling so an unchecked movement never reads as perfect.
	Baseline int
}

// Angle returns the configured AngleContraction detector.
func (r Rule) Angle() repetition.AngleContraction {
	return repetition.AngleContraction{Lo: r.Lo, Hi: r.Hi}
}

// Height returns the configured HeightContraction detector.
func (r Rule) Height() repetition.HeightContraction {
	return repetition.HeightContraction{Delta: r.Delta}
}

// Set maps exercise identifiers to rules. Several identifiers may share a rule.
type Set map[string]Rule

// Lookup returns the rule registered for id.
func (s Set) Lookup(id string) (Rule, bool) {
	r, ok := s[id]
	return r, ok
}

// For returns the rule for id, falling back to the generic rule when id is
// unknown. It never fails: new exercises must degrade, not break the session.
func (s Set) For(id string) Rule {
	if r, ok := s[id]; ok {
		return r
	}
	if r, ok := s[GenericName]; ok {
		return r
	}
	return Generic()
}

// IDs returns every registered identifier in sorted order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy of the set whose rules can be modified independently.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id, r := range s {
		r.Checks = append([]Check(nil), r.Checks...)
		out[id] = r
	}
	return out
}

var defaultSet = Default()

// Lookup returns the built-in rule for id.
func Lookup(id string) (Rule, bool) { return defaultSet.Lookup(id) }

// For returns the built-in rule for id or the generic fallback.
func For(id string) Rule { return defaultSet.For(id) }

// IDs lists the built-in exercise identifiers.
func IDs() []string { return defaultSet.IDs() }
