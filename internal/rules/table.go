package rules

import (
	"math"

	"github.com/andresmejia3/formcheck/internal/geometry"
	"github.com/andresmejia3/formcheck/internal/repetition"
	"github.com/andresmejia3/formcheck/internal/types"
)

// Angle thresholds shared by every angle-driven exercise.
const (
	contractBelow = 120.0
	extendAbove   = 150.0
	// Height and spread thresholds are in model coordinate units (pixels for 2D-backed models).
	calfRaiseDelta = 20.0
	jumpDelta      = 20.0
	strideLevel    = 10.0
	strideLift     = 30.0
	twistLevel     = 15.0
	twistLift      = 50.0
)

// Signals reused across families.
var (
	kneeAngle = Signal{Name: "knee angle", Compute: func(j *Joints) float64 {
		return j.Angle(types.LeftHip, types.LeftKnee, types.LeftAnkle)
	}}
	rightKneeAngle = func(j *Joints) float64 {
		return j.Angle(types.RightHip, types.RightKnee, types.RightAnkle)
	}
	elbowAngle = Signal{Name: "elbow angle", Compute: func(j *Joints) float64 {
		return j.Angle(types.LeftShoulder, types.LeftElbow, types.LeftWrist)
	}}
	hipAngle = Signal{Name: "hip angle", Compute: func(j *Joints) float64 {
		return j.Angle(types.LeftShoulder, types.LeftHip, types.LeftKnee)
	}}
	ankleHeight = Signal{Name: "ankle height", Compute: func(j *Joints) float64 {
		return j.P(types.LeftAnkle).Y
	}}
)

// kneeLift is the vertical gap between the knees. It is near zero with the
// legs level and grows as one knee is driven up.
var kneeLift = Signal{Name: "knee lift", Compute: func(j *Joints) float64 {
	return math.Abs(j.P(types.LeftKnee).Y - j.P(types.RightKnee).Y)
}}

var feetHeight = Signal{Name: "feet height", Compute: func(j *Joints) float64 {
	return (j.P(types.LeftAnkle).Y + j.P(types.RightAnkle).Y) / 2
}}

// spreadRatio is the horizontal spread of the inner pair over that of the
// outer pair. Side-on views stack both outer landmarks on top of each other;
// with the outer spread under a quarter of ref there is nothing to compare
// and the result is NaN, which skips the check.
func spreadRatio(j *Joints, innerL, innerR, outerL, outerR types.LandmarkID, ref float64) float64 {
	outer := math.Abs(j.P(outerL).X - j.P(outerR).X)
	if outer < ref/4 {
		return math.NaN()
	}
	return math.Abs(j.P(innerL).X-j.P(innerR).X) / outer
}

// kneeTracking compares knee spread to ankle spread. Knees caving inward read well below 1.
func kneeTracking(j *Joints) float64 {
	thigh := geometry.Distance(j.P(types.LeftHip), j.P(types.LeftKnee))
	return spreadRatio(j, types.LeftKnee, types.RightKnee, types.LeftAnkle, types.RightAnkle, thigh)
}

// elbowFlare compares elbow spread to shoulder spread.
func elbowFlare(j *Joints) float64 {
	upperArm := geometry.Distance(j.P(types.LeftShoulder), j.P(types.LeftElbow))
	return spreadRatio(j, types.LeftElbow, types.RightElbow, types.LeftShoulder, types.RightShoulder, upperArm)
}

// hipDeviation is how far the body bends at the hip, signed by direction:
// positive when the hip hangs below the shoulder-knee midpoint (sag), negative
// when it is pushed above it (pike). Image y grows downward.
func hipDeviation(j *Joints) float64 {
	dev := 180 - j.Angle(types.LeftShoulder, types.LeftHip, types.LeftKnee)
	mid := geometry.Midpoint(j.P(types.LeftShoulder), j.P(types.LeftKnee))
	if j.P(types.LeftHip).Y < mid.Y {
		return -dev
	}
	return dev
}

func squat() Rule {
	return Rule{
		Name:     "squat",
		Required: []types.LandmarkID{types.LeftHip, types.LeftKnee, types.LeftAnkle, types.LeftShoulder},
		Signal:   kneeAngle,
		Detector: repetition.KindAngle,
		Lo:       contractBelow,
		Hi:       extendAbove,
		Checks: []Check{
			{
				Name:    "back",
				Measure: hipAngle.Compute,
				Bands: []Band{
					below(140, types.BackPosition, types.Major, 30, "Keep your back straight!"),
					below(150, types.BackPosition, types.Moderate, 15, "Straighten your back"),
				},
			},
			{
				Name:    "depth",
				Measure: kneeAngle.Compute,
				Bands: []Band{
					above(120, types.Depth, types.Moderate, 15, "Go lower"),
					below(70, types.Depth, types.Minor, 10, "Too deep"),
				},
			},
			{
				Name:     "symmetry",
				Optional: []types.LandmarkID{types.RightHip, types.RightKnee, types.RightAnkle},
				Measure: func(j *Joints) float64 {
					d := kneeAngle.Compute(j) - rightKneeAngle(j)
					if d < 0 {
						return -d
					}
					return d
				},
				Bands: []Band{
					above(25, types.Symmetry, types.Minor, 10, "Keep your knees even"),
				},
			},
			{
				Name:     "knees",
				Optional: []types.LandmarkID{types.RightHip, types.RightKnee, types.RightAnkle},
				Measure:  kneeTracking,
				Bands: []Band{
					below(0.8, types.KneeAlignment, types.Moderate, 15, "Push your knees out"),
				},
			},
		},
		Affirmation: "Great form!",
		Baseline:    100,
	}
}

func pushup() Rule {
	return Rule{
		Name:     "pushup",
		Required: []types.LandmarkID{types.LeftShoulder, types.LeftElbow, types.LeftWrist, types.LeftHip, types.LeftKnee},
		Signal:   elbowAngle,
		Detector: repetition.KindAngle,
		Lo:       contractBelow,
		Hi:       extendAbove,
		Checks: []Check{
			{
				Name:    "body",
				Measure: hipAngle.Compute,
				Bands: []Band{
					below(160, types.BackPosition, types.Major, 25, "Keep your body straight!"),
				},
			},
			{
				Name:    "depth",
				Measure: elbowAngle.Compute,
				Bands: []Band{
					above(140, types.Depth, types.Moderate, 15, "Go lower"),
				},
			},
			{
				Name:     "elbows",
				Optional: []types.LandmarkID{types.RightShoulder, types.RightElbow},
				Measure:  elbowFlare,
				Bands: []Band{
					above(1.8, types.ElbowFlare, types.Moderate, 10, "Tuck your elbows"),
				},
			},
		},
		Affirmation: "Great form!",
		Baseline:    100,
	}
}

func plank() Rule {
	return Rule{
		Name:     "plank",
		Required: []types.LandmarkID{types.LeftShoulder, types.LeftHip, types.LeftKnee},
		Signal:   Signal{Name: "body angle", Compute: hipAngle.Compute},
		Detector: repetition.KindNone,
		Checks: []Check{
			{
				Name:    "hips",
				Measure: hipDeviation,
				Bands: []Band{
					above(20, types.HipPosition, types.Major, 30, "Raise your hips!"),
					below(-20, types.HipPosition, types.Moderate, 15, "Lower your hips"),
				},
			},
		},
		Affirmation: "Hold the plank",
		Baseline:    100,
	}
}

// simple builds the rules that only count repetitions and report a fixed
// coaching cue, without form checks.
func simple(name string, required []types.LandmarkID, sig Signal, baseline int, cue string) Rule {
	return Rule{
		Name:        name,
		Required:    required,
		Signal:      sig,
		Detector:    repetition.KindAngle,
		Lo:          contractBelow,
		Hi:          extendAbove,
		Affirmation: cue,
		Baseline:    baseline,
	}
}

var (
	armChain   = []types.LandmarkID{types.LeftShoulder, types.LeftElbow, types.LeftWrist}
	legChain   = []types.LandmarkID{types.LeftHip, types.LeftKnee, types.LeftAnkle}
	torsoChain = []types.LandmarkID{types.LeftShoulder, types.LeftHip, types.LeftKnee}
)

// Generic is the fallback rule: knee angle, angle detector, no form checks.
func Generic() Rule {
	return simple(GenericName, legChain, kneeAngle, 70, "Keep going")
}

func calfRaise() Rule {
	return Rule{
		Name:        "calf_raise",
		Required:    []types.LandmarkID{types.LeftAnkle, types.LeftKnee},
		Signal:      ankleHeight,
		Detector:    repetition.KindHeight,
		Delta:       calfRaiseDelta,
		Affirmation: "Rise onto your toes",
		Baseline:    85,
	}
}

// alternating counts one repetition per knee drive: the knees pass level
// (below lo) and then one is lifted past hi.
func alternating(name string, required []types.LandmarkID, lo, hi float64, baseline int, cue string) Rule {
	r := simple(name, required, kneeLift, baseline, cue)
	r.Lo, r.Hi = lo, hi
	return r
}

func jumpRope() Rule {
	return Rule{
		Name:        "jump_rope",
		Required:    []types.LandmarkID{types.LeftAnkle, types.RightAnkle, types.LeftKnee, types.RightKnee},
		Signal:      feetHeight,
		Detector:    repetition.KindHeight,
		Delta:       jumpDelta,
		Affirmation: "Stay on your toes",
		Baseline:    85,
	}
}

// Default builds the built-in rule table.
func Default() Set {
	s := Set{}
	register := func(r Rule, ids ...string) {
		for _, id := range ids {
			s[id] = r
		}
	}

	register(squat(), "squat", "barbell_squat", "leg_press", "burpee")
	register(pushup(), "pushup", "dips_chest", "dumbbell_flyes", "pec_deck",
		"barbell_bench_press", "dumbbell_bench_press", "incline_dumbbell_press", "close_grip_bench_press",
		"tricep_extension", "tricep_pushdown", "dips_tricep", "tricep_dip", "overhead_tricep_extension")
	register(simple("pull", armChain, elbowAngle, 80, "Pull to your chin"),
		"pullup", "lat_pulldown", "seated_row", "dumbbell_row", "barbell_row", "hyperextension")
	register(plank(), "plank")
	register(simple("deadlift", torsoChain, hipAngle, 80, "Keep your back straight"), "deadlift", "romanian_deadlift")
	register(simple("lunge", legChain, kneeAngle, 85, "Keep lunging"), "lunge")
	register(simple("crunch", torsoChain, hipAngle, 80, "Curl up"), "crunch", "ball_crunch")
	register(simple("hip_thrust", torsoChain, hipAngle, 80, "Drive your hips up"), "hip_thrust", "glute_bridge")
	register(simple("leg_raise", legChain, kneeAngle, 80, "Raise your legs"), "hanging_leg_raise")
	register(calfRaise(), "calf_raise")
	register(alternating("cardio", []types.LandmarkID{types.LeftHip, types.LeftKnee, types.RightKnee},
		strideLevel, strideLift, 85, "Keep moving!"), "running", "treadmill")
	register(alternating("twist", []types.LandmarkID{types.LeftKnee, types.RightKnee},
		twistLevel, twistLift, 80, "Alternate your legs"), "russian_twist")
	register(jumpRope(), "jump_rope")
	register(Generic(), GenericName, "leg_curl", "leg_extension",
		"dumbbell_shoulder_press", "military_press", "lateral_raise", "rear_delt_fly", "upright_row",
		"barbell_curl", "dumbbell_curl", "hammer_curl", "scott_curl", "cable_curl",
		"bike", "rowing_machine")

	return s
}
