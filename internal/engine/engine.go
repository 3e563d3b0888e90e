// Package engine turns a stream of pose samples into per-sample analysis
// results for one exercise session.
//
// An Engine is not safe for concurrent use. Callers feed one session's
// samples in order from a single goroutine.
package engine

import (
	"math"

	"github.com/andresmejia3/formcheck/internal/repetition"
	"github.com/andresmejia3/formcheck/internal/rules"
	"github.com/andresmejia3/formcheck/internal/types"
)

// DefaultMinLikelihood is the in-frame likelihood below which a landmark is
// treated as missing.
const DefaultMinLikelihood = 0.3

// CorrectFormScore is the lowest score reported as correct form.
const CorrectFormScore = 70

// OutOfFrameFeedback is returned whenever a sample cannot be analyzed.
const OutOfFrameFeedback = "Get back in frame"

// SessionState is everything the engine carries between samples.
type SessionState struct {
	Detector repetition.State
	// Baseline is the previous signal value, used by height detectors.
	Baseline    float64
	HasBaseline bool
}

// Engine analyzes samples for one exercise.
type Engine struct {
	exercise      string
	rule          rules.Rule
	set           rules.Set
	minLikelihood float64
	state         SessionState
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinLikelihood sets the confidence floor for required landmarks.
func WithMinLikelihood(v float64) Option {
	return func(e *Engine) {
		e.minLikelihood = v
	}
}

// WithRuleSet replaces the built-in rule table, e.g. with one that has
// overrides applied.
func WithRuleSet(s rules.Set) Option {
	return func(e *Engine) {
		if s != nil {
			e.set = s
		}
	}
}

// New creates an engine for exerciseID. Unknown identifiers use the generic rule.
func New(exerciseID string, opts ...Option) *Engine {
	e := &Engine{
		exercise:      exerciseID,
		set:           rules.Default(),
		minLikelihood: DefaultMinLikelihood,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rule = e.set.For(exerciseID)
	return e
}

// Exercise returns the identifier the engine was created with.
func (e *Engine) Exercise() string { return e.exercise }

// Rule returns the rule being applied.
func (e *Engine) Rule() rules.Rule { return e.rule }

// Known reports whether the exercise has its own entry in the rule table.
func (e *Engine) Known() bool {
	_, ok := e.set.Lookup(e.exercise)
	return ok
}

// State returns a snapshot of the session state.
func (e *Engine) State() SessionState { return e.state }

// Reset returns the session to its initial state.
func (e *Engine) Reset() {
	e.state = SessionState{}
}

// Analyze processes one sample. It never fails: samples that cannot be
// measured produce the out-of-frame result and leave the session untouched.
func (e *Engine) Analyze(sample types.JointSample) types.AnalysisResult {
	next, res := step(e.rule, e.state, &sample, e.minLikelihood)
	e.state = next
	return res
}

// step is the pure transition for a single sample.
func step(r rules.Rule, st SessionState, sample *types.JointSample, minLikelihood float64) (SessionState, types.AnalysisResult) {
	if !rules.Usable(sample, r.Required, minLikelihood) {
		return st, outOfFrame()
	}

	j := rules.NewJoints(sample)
	signal := r.Signal.Compute(j)
	if j.Degenerate() || !finite(signal) {
		return st, outOfFrame()
	}

	var issues []types.FormIssue
	penalty := 0
	for _, c := range r.Checks {
		if len(c.Optional) > 0 && !rules.Usable(sample, c.Optional, minLikelihood) {
			continue
		}
		v := c.Measure(j)
		if j.Degenerate() || !finite(v) {
			if len(c.Optional) > 0 {
				j.Clear()
				continue
			}
			return st, outOfFrame()
		}
		if b, hit := c.Evaluate(v); hit {
			issues = append(issues, b.Issue)
			penalty += b.Penalty
		}
	}

	rep := false
	switch r.Detector {
	case repetition.KindAngle:
		st.Detector, rep = r.Angle().Step(st.Detector, signal)
	case repetition.KindHeight:
		if st.HasBaseline {
			st.Detector, st.Baseline, rep = r.Height().Step(st.Detector, st.Baseline, signal)
		} else {
			st.Baseline = signal
			st.HasBaseline = true
		}
	}

	score := clamp(r.Baseline-penalty, 0, 100)
	feedback := r.Affirmation
	if len(issues) > 0 {
		feedback = issues[0].Description
	}

	return st, types.AnalysisResult{
		RepDetected:   rep,
		CurrentAngle:  signal,
		Feedback:      feedback,
		IsCorrectForm: score >= CorrectFormScore,
		FormScore:     score,
		Issues:        issues,
	}
}

func outOfFrame() types.AnalysisResult {
	return types.AnalysisResult{Feedback: OutOfFrameFeedback}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
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
