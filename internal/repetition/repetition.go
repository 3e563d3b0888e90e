// Package repetition implements the hysteresis detectors that turn a scalar
// movement signal into discrete "repetition completed" events.
//
// Detectors hold no state of their own. The caller owns the State (and, for
// height detectors, the baseline) and threads it through every Step, so a
// given (state, signal) pair always yields the same result.
package repetition

// State is the phase of the current repetition.
type State int

const (
	// Idle means no contraction has been seen since the last repetition.
	Idle State = iota
	// ContractedPhase means the signal has entered the contracted zone.
	ContractedPhase
	// ExtendedPhase is passed through when the signal returns past the
	// extension threshold. Step never leaves a detector in this state: the
	// repetition is counted and the state drops straight back to Idle.
	ExtendedPhase
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ContractedPhase:
		return "contracted"
	case ExtendedPhase:
		return "extended"
	default:
		return "unknown"
	}
}

// Kind selects which detector a rule drives.
type Kind int

const (
	// KindNone is used by static holds (e.g. plank) that never count repetitions.
	KindNone Kind = iota
	// KindAngle drives an AngleContraction detector.
	KindAngle
	// KindHeight drives a HeightContraction detector.
	KindHeight
)

func (k Kind) String() string {
	switch k {
	case KindAngle:
		return "angle"
	case KindHeight:
		return "height"
	default:
		return "none"
	}
}

// AngleContraction counts repetitions of movements where a decreasing angle
// marks the contracted phase (squats, presses, pulls, curls).
type AngleContraction struct {
	Lo float64
	Hi float64
}

// Step advances the detector by one sample.
// Idle -> ContractedPhase when signal < Lo; ContractedPhase -> Idle with a
// repetition when signal > Hi. Every other input leaves the state alone.
func (d AngleContraction) Step(state State, signal float64) (State, bool) {
	switch state {
	case Idle:
		if signal < d.Lo {
			return ContractedPhase, false
		}
	case ContractedPhase:
		if signal > d.Hi {
			return finish()
		}
	case ExtendedPhase:
		return Idle, false
	}
	return state, false
}

// HeightContraction counts repetitions from a raw coordinate (e.g. ankle
// height during calf raises). The thresholds sit Delta either side of the
// previously observed value, since absolute coordinates depend on the camera.
type HeightContraction struct {
	Delta float64
}

// Step advances the detector by one sample and returns the new state, the new
// baseline (always the current signal) and whether a repetition completed.
func (d HeightContraction) Step(state State, baseline, signal float64) (State, float64, bool) {
	switch state {
	case Idle:
		if signal < baseline-d.Delta {
			return ContractedPhase, signal, false
		}
	case ContractedPhase:
		if signal > baseline+d.Delta {
			next, rep := finish()
			return next, signal, rep
		}
	case ExtendedPhase:
		return Idle, signal, false
	}
	return state, signal, false
}

// finish performs the ExtendedPhase transition: the repetition is reported
// and the detector is immediately ready for the next one.
func finish() (State, bool) {
	return Idle, true
}
