package geometry

import (
	"math"
	"math/rand"
	"testing"
)

func TestAngleAtVertex(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point3D
		want    float64
	}{
		{
			name: "Right angle",
			a:    Point3D{X: 1},
			b:    Point3D{},
			c:    Point3D{Y: 1},
			want: 90,
		},
		{
			name: "Straight line",
			a:    Point3D{X: -1},
			b:    Point3D{},
			c:    Point3D{X: 2},
			want: 180,
		},
		{
			name: "Same direction",
			a:    Point3D{X: 1},
			b:    Point3D{},
			c:    Point3D{X: 5},
			want: 0,
		},
		{
			name: "Depth axis counts",
			a:    Point3D{Z: 1},
			b:    Point3D{},
			c:    Point3D{X: 1, Z: 1},
			want: 45,
		},
		{
			name: "Vertex away from origin",
			a:    Point3D{X: 10, Y: 11},
			b:    Point3D{X: 10, Y: 10},
			c:    Point3D{X: 11, Y: 10},
			want: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleAtVertex(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AngleAtVertex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAngleAtVertexRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	point := func() Point3D {
		return Point3D{X: rng.NormFloat64() * 100, Y: rng.NormFloat64() * 100, Z: rng.NormFloat64() * 100}
	}

	for i := 0; i < 10000; i++ {
		a, b, c := point(), point(), point()
		got := AngleAtVertex(a, b, c)
		if math.IsNaN(got) || got < 0 || got > 180 {
			t.Fatalf("AngleAtVertex(%v, %v, %v) = %v, want value in [0, 180]", a, b, c, got)
		}
	}
}

func TestAngleAtVertexDegenerate(t *testing.T) {
	p := Point3D{X: 0.3, Y: 0.7, Z: -0.2}
	q := Point3D{X: 1, Y: 2, Z: 3}

	tests := []struct {
		name    string
		a, b, c Point3D
	}{
		{"A equals B", p, p, q},
		{"C equals B", q, p, p},
		{"All equal", p, p, p},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleAtVertex(tt.a, tt.b, tt.c)
			if got != 0 {
				t.Errorf("AngleAtVertex() = %v, want 0", got)
			}
			if !Degenerate(tt.a, tt.b, tt.c) {
				t.Error("Degenerate() = false, want true")
			}
		})
	}

	// A and C coinciding is not degenerate: both rays have length, the angle is simply 0.
	if Degenerate(q, p, q) {
		t.Error("Degenerate() = true for A == C, want false")
	}
	if got := AngleAtVertex(q, p, q); math.Abs(got) > 1e-6 {
		t.Errorf("AngleAtVertex(q, p, q) = %v, want 0", got)
	}
}

func TestAngleAtVertexClampsRounding(t *testing.T) {
	// Nearly collinear rays where the cosine can overshoot 1 by an ulp.
	a := Point3D{X: 0.1, Y: 0.1, Z: 0.1}
	b := Point3D{}
	c := Point3D{X: 0.3, Y: 0.3, Z: 0.3}
	if got := AngleAtVertex(a, b, c); math.IsNaN(got) {
		t.Fatal("AngleAtVertex() returned NaN for collinear input")
	}
}

func TestDistance(t *testing.T) {
	got := Distance(Point3D{X: 1, Y: 2, Z: 3}, Point3D{X: 4, Y: 6, Z: 3})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("Distance() = %v, want 5", got)
	}
	if got := Distance(Point3D{X: 7}, Point3D{X: 7}); got != 0 {
		t.Errorf("Distance() of equal points = %v, want 0", got)
	}
}

func TestMidpoint(t *testing.T) {
	got := Midpoint(Point3D{X: 0, Y: 2, Z: -4}, Point3D{X: 2, Y: 4, Z: 4})
	want := Point3D{X: 1, Y: 3, Z: 0}
	if got != want {
		t.Errorf("Midpoint() = %v, want %v", got, want)
	}
}

func TestAngleAtVertexLargeCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Point3D
		want    float64
	}{
		{"Overflowing dot product", Point3D{X: 1e200, Y: 1e200}, Point3D{}, Point3D{X: 1e200}, 45},
		{"Near max float", Point3D{Y: math.MaxFloat64}, Point3D{}, Point3D{X: math.MaxFloat64}, 90},
		{"Tiny but nonzero rays", Point3D{X: 1e-300}, Point3D{}, Point3D{X: -1e-300}, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleAtVertex(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AngleAtVertex() = %v, want %v", got, tt.want)
			}
			if Degenerate(tt.a, tt.b, tt.c) {
				t.Error("Degenerate() = true for finite, nonzero rays")
			}
		})
	}
}

func TestAngleAtVertexNonFinite(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name    string
		a, b, c Point3D
	}{
		{"Infinite point", Point3D{X: inf}, Point3D{}, Point3D{Y: 1}},
		{"NaN vertex", Point3D{X: 1}, Point3D{X: math.NaN()}, Point3D{Y: 1}},
		{"Ray overflows", Point3D{X: math.MaxFloat64}, Point3D{X: -math.MaxFloat64}, Point3D{Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AngleAtVertex(tt.a, tt.b, tt.c); got != 0 {
				t.Errorf("AngleAtVertex() = %v, want 0", got)
			}
			if !Degenerate(tt.a, tt.b, tt.c) {
				t.Error("Degenerate() = false, want true")
			}
		})
	}
}
