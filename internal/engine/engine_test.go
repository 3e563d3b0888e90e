package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/andresmejia3/formcheck/internal/geometry"
	"github.com/andresmejia3/formcheck/internal/repetition"
	"github.com/andresmejia3/formcheck/internal/rules"
	"github.com/andresmejia3/formcheck/internal/types"
)

// ray returns the point 100 units from origin at deg degrees from the +Y axis.
func ray(origin geometry.Point3D, deg float64) geometry.Point3D {
	rad := deg * math.Pi / 180
	return geometry.Point3D{X: origin.X + 100*math.Sin(rad), Y: origin.Y + 100*math.Cos(rad)}
}

// legSample builds a left-side sample with the given knee angle (hip-knee-ankle)
// and back angle (shoulder-hip-knee).
func legSample(knee, back float64) types.JointSample {
	kneePos := geometry.Point3D{X: 200, Y: 300}
	hip := geometry.Point3D{X: 200, Y: 200}

	var s types.JointSample
	set := func(id types.LandmarkID, p geometry.Point3D) {
		s.Set(id, types.Landmark{Position: p, InFrameLikelihood: 0.95})
	}
	set(types.LeftHip, hip)
	set(types.LeftKnee, kneePos)
	// Hip sits at -Y from the knee; the ankle is knee degrees away from that ray.
	set(types.LeftAnkle, ray(kneePos, 180-knee))
	// Knee sits at +Y from the hip; the shoulder is back degrees away from that ray.
	set(types.LeftShoulder, ray(hip, back))
	return s
}

func TestSquatEndToEnd(t *testing.T) {
	e := New("squat")
	knees := []float64{160, 135, 95, 135, 160}

	reps := 0
	for i, k := range knees {
		res := e.Analyze(legSample(k, 160))
		if math.Abs(res.CurrentAngle-k) > 1e-6 {
			t.Errorf("sample %d: CurrentAngle = %.3f, want %.0f", i, res.CurrentAngle, k)
		}
		if !res.IsCorrectForm {
			t.Errorf("sample %d: expected correct form, got score %d (%v)", i, res.FormScore, res.Issues)
		}
		if res.RepDetected {
			reps++
			if i != len(knees)-1 {
				t.Errorf("rep fired at sample %d, want only the last", i)
			}
		}
	}
	if reps != 1 {
		t.Errorf("reps = %d, want 1", reps)
	}
	if e.State().Detector != repetition.Idle {
		t.Errorf("final detector state = %v, want idle", e.State().Detector)
	}
}

func TestSquatScoring(t *testing.T) {
	tests := []struct {
		name         string
		knee, back   float64
		wantScore    int
		wantFeedback string
		wantCorrect  bool
	}{
		{"Good depth, straight back", 95, 165, 100, "Great form!", true},
		{"Too shallow", 160, 165, 85, "Go lower", true},
		{"Rounded back", 95, 145, 85, "Straighten your back", true},
		{"Collapsed back", 95, 120, 70, "Keep your back straight!", true},
		{"Collapsed back and shallow", 130, 120, 55, "Keep your back straight!", false},
		{"Too deep", 60, 165, 90, "Too deep", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New("squat").Analyze(legSample(tt.knee, tt.back))
			if res.FormScore != tt.wantScore {
				t.Errorf("score = %d, want %d (issues %v)", res.FormScore, tt.wantScore, res.Issues)
			}
			if res.Feedback != tt.wantFeedback {
				t.Errorf("feedback = %q, want %q", res.Feedback, tt.wantFeedback)
			}
			if res.IsCorrectForm != tt.wantCorrect {
				t.Errorf("IsCorrectForm = %v, want %v", res.IsCorrectForm, tt.wantCorrect)
			}
		})
	}
}

func TestMissingLandmarkSandwich(t *testing.T) {
	e := New("squat")

	e.Analyze(legSample(160, 165))
	e.Analyze(legSample(95, 165))
	before := e.State()

	broken := legSample(160, 165)
	broken.Landmarks[types.LeftKnee] = nil
	res := e.Analyze(broken)

	if res.RepDetected || res.FormScore != 0 || res.IsCorrectForm || res.Feedback != OutOfFrameFeedback {
		t.Errorf("missing landmark result = %+v, want the out-of-frame result", res)
	}
	if e.State() != before {
		t.Errorf("state changed across a missing sample: %+v -> %+v", before, e.State())
	}

	// The interrupted repetition still completes.
	if res := e.Analyze(legSample(160, 165)); !res.RepDetected {
		t.Error("rep lost after a tracking dropout")
	}
}

func TestLowConfidenceCountsAsMissing(t *testing.T) {
	s := legSample(95, 165)
	s.Landmarks[types.LeftAnkle].InFrameLikelihood = 0.2

	if res := New("squat").Analyze(s); res.Feedback != OutOfFrameFeedback {
		t.Errorf("low confidence ankle: feedback = %q, want out of frame", res.Feedback)
	}
	if res := New("squat", WithMinLikelihood(0.1)).Analyze(s); res.Feedback == OutOfFrameFeedback {
		t.Error("lowered confidence floor still rejected the sample")
	}
}

func TestDegenerateGeometryIsUnusable(t *testing.T) {
	e := New("squat")
	e.Analyze(legSample(95, 165))
	before := e.State()

	s := legSample(160, 165)
	s.Set(types.LeftAnkle, *s.Get(types.LeftKnee))

	res := e.Analyze(s)
	if res.Feedback != OutOfFrameFeedback || res.RepDetected {
		t.Errorf("degenerate sample = %+v, want the out-of-frame result", res)
	}
	if e.State() != before {
		t.Error("degenerate sample mutated state")
	}
}

func TestOptionalCheckSkipped(t *testing.T) {
	s := legSample(95, 165)
	kneePos := s.Get(types.LeftKnee).Position
	// Right knee is visible but the rest of the right leg is not.
	s.Set(types.RightKnee, types.Landmark{Position: geometry.Point3D{X: kneePos.X + 50, Y: kneePos.Y}, InFrameLikelihood: 0.9})

	res := New("squat").Analyze(s)
	if res.FormScore != 100 {
		t.Errorf("score = %d, want 100 with the symmetry check skipped", res.FormScore)
	}

	// A collapsed right leg is optional too: degenerate geometry skips the check.
	s.Set(types.RightHip, types.Landmark{Position: geometry.Point3D{X: 250, Y: 300}, InFrameLikelihood: 0.9})
	s.Set(types.RightAnkle, types.Landmark{Position: geometry.Point3D{X: 250, Y: 400}, InFrameLikelihood: 0.9})
	res = New("squat").Analyze(s)
	if res.Feedback == OutOfFrameFeedback {
		t.Error("degenerate optional geometry rejected the whole sample")
	}
}

func TestScoreMonotonicity(t *testing.T) {
	// Adding a failing band can only lower the score.
	base := rules.Default()
	withExtra := base.Clone()
	r := withExtra["squat"]
	r.Checks = append(r.Checks, rules.Check{
		Name:    "always",
		Measure: func(*rules.Joints) float64 { return 0 },
		Bands: []rules.Band{{
			Limit:   1,
			Issue:   types.FormIssue{Kind: types.Stability, Severity: types.Minor, Description: "wobble"},
			Penalty: 10,
		}},
	})
	withExtra["squat"] = r

	for _, knee := range []float64{60, 95, 130, 160} {
		for _, back := range []float64{110, 145, 170} {
			s := legSample(knee, back)
			a := New("squat", WithRuleSet(base)).Analyze(s)
			b := New("squat", WithRuleSet(withExtra)).Analyze(s)
			if b.FormScore > a.FormScore {
				t.Errorf("knee %v back %v: extra check raised score %d -> %d", knee, back, a.FormScore, b.FormScore)
			}
			if a.FormScore < 0 || a.FormScore > 100 || b.FormScore < 0 {
				t.Errorf("score out of range: %d, %d", a.FormScore, b.FormScore)
			}
		}
	}
}

func TestUnknownExerciseFallsBack(t *testing.T) {
	e := New("not_a_real_exercise")
	if e.Known() {
		t.Error("unknown exercise reported as known")
	}
	if e.Rule().Name != rules.GenericName {
		t.Errorf("rule = %q, want generic", e.Rule().Name)
	}
	if e.Exercise() != "not_a_real_exercise" {
		t.Errorf("Exercise() = %q", e.Exercise())
	}

	var fired bool
	for _, k := range []float64{160, 90, 160} {
		res := e.Analyze(legSample(k, 170))
		if res.FormScore != 70 || res.Feedback != "Keep going" {
			t.Errorf("generic result = %+v", res)
		}
		fired = fired || res.RepDetected
	}
	if !fired {
		t.Error("generic rule did not count a full knee cycle")
	}
}

func TestPlankNeverCounts(t *testing.T) {
	e := New("plank")

	var s types.JointSample
	s.Set(types.LeftShoulder, types.Landmark{Position: geometry.Point3D{X: 0, Y: 100}, InFrameLikelihood: 1})
	s.Set(types.LeftKnee, types.Landmark{Position: geometry.Point3D{X: 200, Y: 100}, InFrameLikelihood: 1})

	for _, hipY := range []float64{100, 160, 100, 40, 100} {
		s.Set(types.LeftHip, types.Landmark{Position: geometry.Point3D{X: 100, Y: hipY}, InFrameLikelihood: 1})
		res := e.Analyze(s)
		if res.RepDetected {
			t.Fatal("plank counted a rep")
		}
		switch {
		case hipY > 100 && res.Feedback != "Raise your hips!":
			t.Errorf("sagging hip feedback = %q", res.Feedback)
		case hipY < 100 && res.Feedback != "Lower your hips":
			t.Errorf("piked hip feedback = %q", res.Feedback)
		case hipY == 100 && res.Feedback != "Hold the plank":
			t.Errorf("straight plank feedback = %q", res.Feedback)
		}
	}
}

func TestCalfRaiseHeight(t *testing.T) {
	e := New("calf_raise")
	ankleY := []float64{400, 401, 370, 365, 390, 399}

	fired := -1
	for i, y := range ankleY {
		var s types.JointSample
		s.Set(types.LeftKnee, types.Landmark{Position: geometry.Point3D{X: 100, Y: y - 100}, InFrameLikelihood: 1})
		s.Set(types.LeftAnkle, types.Landmark{Position: geometry.Point3D{X: 100, Y: y}, InFrameLikelihood: 1})
		if e.Analyze(s).RepDetected {
			fired = i
		}
	}
	if fired != 4 {
		t.Errorf("calf raise fired at %d, want 4", fired)
	}
	if !e.State().HasBaseline || e.State().Baseline != 399 {
		t.Errorf("baseline = %+v, want 399", e.State())
	}
}

func TestReset(t *testing.T) {
	e := New("squat")
	e.Analyze(legSample(95, 165))
	if e.State().Detector != repetition.ContractedPhase {
		t.Fatalf("detector = %v, want contracted", e.State().Detector)
	}
	e.Reset()
	if e.State() != (SessionState{}) {
		t.Errorf("state after Reset = %+v", e.State())
	}
	if e.Analyze(legSample(160, 165)).RepDetected {
		t.Error("rep fired after Reset without a contraction")
	}
}

// scaled moves every landmark of s by factor, keeping the angles.
func scaled(s types.JointSample, factor float64) types.JointSample {
	for id := types.LandmarkID(0); id < types.NumLandmarks; id++ {
		if l := s.Get(id); l != nil {
			l.Position = geometry.Point3D{X: l.Position.X * factor, Y: l.Position.Y * factor, Z: l.Position.Z * factor}
		}
	}
	return s
}

func TestHugeCoordinates(t *testing.T) {
	e := New("squat")
	res := e.Analyze(scaled(legSample(130, 120), 1e200))

	if math.IsNaN(res.CurrentAngle) || math.Abs(res.CurrentAngle-130) > 1e-6 {
		t.Errorf("CurrentAngle = %v, want 130", res.CurrentAngle)
	}
	if res.IsCorrectForm || res.FormScore != 55 {
		t.Errorf("expected the same verdict as unscaled input, got score %d correct=%v", res.FormScore, res.IsCorrectForm)
	}
	if _, err := json.Marshal(res); err != nil {
		t.Errorf("result does not encode: %v", err)
	}
}

func TestNonFiniteCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		exercise string
		sample   func() types.JointSample
	}{
		{"Infinite ankle on squat", "squat", func() types.JointSample {
			s := legSample(95, 165)
			s.Get(types.LeftAnkle).Position.X = math.Inf(1)
			return s
		}},
		{"NaN shoulder on squat back check", "squat", func() types.JointSample {
			s := legSample(95, 165)
			s.Get(types.LeftShoulder).Position.Y = math.NaN()
			return s
		}},
		{"Infinite ankle height", "calf_raise", func() types.JointSample {
			var s types.JointSample
			s.Set(types.LeftKnee, types.Landmark{Position: geometry.Point3D{X: 100, Y: 300}, InFrameLikelihood: 1})
			s.Set(types.LeftAnkle, types.Landmark{Position: geometry.Point3D{X: 100, Y: math.Inf(-1)}, InFrameLikelihood: 1})
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.exercise)
			res := e.Analyze(tt.sample())
			if res.Feedback != OutOfFrameFeedback || res.FormScore != 0 || res.IsCorrectForm {
				t.Errorf("expected the out-of-frame result, got %+v", res)
			}
			if e.State() != (SessionState{}) {
				t.Errorf("state changed on unusable sample: %+v", e.State())
			}
		})
	}
}

func TestAlternatingKneeDrive(t *testing.T) {
	e := New("running")
	// Left knee height minus right knee height per sample.
	gaps := []float64{0, 35, 5, -40, -20, 2, 45}

	var fired []int
	for i, g := range gaps {
		var s types.JointSample
		s.Set(types.LeftHip, types.Landmark{Position: geometry.Point3D{X: 100, Y: 100}, InFrameLikelihood: 1})
		s.Set(types.LeftKnee, types.Landmark{Position: geometry.Point3D{X: 100, Y: 200 - g}, InFrameLikelihood: 1})
		s.Set(types.RightKnee, types.Landmark{Position: geometry.Point3D{X: 120, Y: 200}, InFrameLikelihood: 1})
		res := e.Analyze(s)
		if res.RepDetected {
			fired = append(fired, i)
		}
		if res.FormScore != 85 || res.Feedback != "Keep moving!" {
			t.Errorf("sample %d: got score %d feedback %q", i, res.FormScore, res.Feedback)
		}
	}

	want := []int{1, 3, 6}
	if len(fired) != len(want) {
		t.Fatalf("reps fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("reps fired at %v, want %v", fired, want)
		}
	}
}
