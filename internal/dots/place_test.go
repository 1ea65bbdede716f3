package dots

import (
	"errors"
	"math"
	"testing"

	"github.com/jbeda/geom"
)

func newTestEngine(seed int64, size int, attempts int) *Engine {
	canvas := DefaultCanvas()
	canvas.Size = size
	return NewEngine(EngineConfig{Canvas: canvas, AttemptsLimit: attempts}, NewRand(seed))
}

// assertLayout checks the boundary and no-overlap invariants on every pair.
func assertLayout(t *testing.T, ps PointSet) {
	t.Helper()

	cv := ps.Canvas()
	lo := cv.BoundaryWidth
	hi := float64(cv.Size) - cv.BoundaryWidth
	for i := 0; i < ps.Len(); i++ {
		c := ps.At(i)
		if c.Radius <= 0 {
			t.Errorf("circle %d has radius %f", i, c.Radius)
		}
		if c.Center.X-c.Radius < lo || c.Center.X+c.Radius > hi ||
			c.Center.Y-c.Radius < lo || c.Center.Y+c.Radius > hi {
			t.Errorf("circle %d (%.2f, %.2f) r=%.2f crosses boundary [%f, %f]", i, c.Center.X, c.Center.Y, c.Radius, lo, hi)
		}
		for j := i + 1; j < ps.Len(); j++ {
			o := ps.At(j)
			if d := c.Center.DistanceFrom(o.Center); d < c.Radius+o.Radius+cv.PointSep {
				t.Errorf("circles %d and %d too close: distance %.2f < %.2f", i, j, d, c.Radius+o.Radius+cv.PointSep)
			}
		}
	}
}

func TestPlaceCirclesFiveOnDefaultCanvas(t *testing.T) {
	engine := newTestEngine(42, 512, 10000)

	ps, err := engine.PlaceCircles(engine.Empty(), 5, Primary, RadiusRange{Min: 20, Max: 30})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}

	if ps.Len() != 5 {
		t.Fatalf("Expected 5 circles, got %d", ps.Len())
	}
	for i := 0; i < ps.Len(); i++ {
		if r := ps.At(i).Radius; r < 20 || r > 30 {
			t.Errorf("circle %d radius %f outside [20, 30]", i, r)
		}
		if ps.At(i).Group != Primary {
			t.Errorf("circle %d group = %s, want primary", i, ps.At(i).Group)
		}
	}
	assertLayout(t, ps)
}

func TestPlaceCirclesDeterministic(t *testing.T) {
	place := func() PointSet {
		engine := newTestEngine(42, 512, 10000)
		ps, err := engine.PlaceCircles(engine.Empty(), 8, Primary, RadiusRange{Min: 10, Max: 25})
		if err != nil {
			t.Fatalf("PlaceCircles failed: %v", err)
		}
		ps, err = engine.PlaceCircles(ps, 4, Secondary, RadiusRange{Min: 10, Max: 25})
		if err != nil {
			t.Fatalf("PlaceCircles failed: %v", err)
		}
		return ps
	}

	first, second := place(), place()
	if !first.Equal(second) {
		t.Error("Same seed produced different layouts")
	}

	other := newTestEngine(43, 512, 10000)
	third, err := other.PlaceCircles(other.Empty(), 8, Primary, RadiusRange{Min: 10, Max: 25})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}
	if third.Equal(first) {
		t.Error("Different seeds produced identical layouts")
	}
}

func TestPlaceCirclesExhausted(t *testing.T) {
	engine := newTestEngine(1, 128, 100)

	ps, err := engine.PlaceCircles(engine.Empty(), 50, Primary, RadiusRange{Min: 50, Max: 60})
	if !errors.Is(err, ErrPlacementExhausted) {
		t.Fatalf("Expected PlacementExhausted, got %v", err)
	}
	if ps.Len() != 0 {
		t.Errorf("Failed placement returned %d circles", ps.Len())
	}

	var layoutErr *LayoutError
	if !errors.As(err, &layoutErr) || layoutErr.Kind != PlacementExhausted {
		t.Errorf("Expected *LayoutError with PlacementExhausted kind, got %#v", err)
	}
}

func TestPlaceCirclesHugeCount(t *testing.T) {
	engine := newTestEngine(1, 128, 100)

	ps, err := engine.PlaceCircles(engine.Empty(), math.MaxInt, Primary, RadiusRange{Min: 20, Max: 30})
	if !errors.Is(err, ErrPlacementExhausted) {
		t.Fatalf("Expected PlacementExhausted, got %v", err)
	}
	if ps.Len() != 0 {
		t.Errorf("Failed placement returned %d circles", ps.Len())
	}
}

func TestPlaceCirclesExtendsExistingWithoutMutation(t *testing.T) {
	engine := newTestEngine(7, 512, 10000)
	base, err := engine.PlaceCircles(engine.Empty(), 3, Primary, RadiusRange{Min: 15, Max: 20})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}
	snapshot := base.Circles()

	extended, err := engine.PlaceCircles(base, 4, Secondary, RadiusRange{Min: 15, Max: 20})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}

	if extended.Len() != 7 || extended.Count(Primary) != 3 || extended.Count(Secondary) != 4 {
		t.Errorf("Unexpected counts: total %d, primary %d, secondary %d",
			extended.Len(), extended.Count(Primary), extended.Count(Secondary))
	}
	for i, c := range snapshot {
		if base.At(i) != c || extended.At(i) != c {
			t.Errorf("circle %d changed after extension", i)
		}
	}
	assertLayout(t, extended)
}

func TestPlaceCirclesFailureLeavesExistingIntact(t *testing.T) {
	engine := newTestEngine(3, 256, 50)
	base, err := engine.PlaceCircles(engine.Empty(), 2, Primary, RadiusRange{Min: 10, Max: 12})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}
	snapshot := base.Circles()

	if _, err := engine.PlaceCircles(base, 40, Secondary, RadiusRange{Min: 40, Max: 50}); !errors.Is(err, ErrPlacementExhausted) {
		t.Fatalf("Expected PlacementExhausted, got %v", err)
	}
	if base.Len() != len(snapshot) {
		t.Fatalf("base length changed to %d", base.Len())
	}
	for i, c := range snapshot {
		if base.At(i) != c {
			t.Errorf("circle %d changed after failed placement", i)
		}
	}
}

func TestPlaceCirclesZeroCountReturnsExisting(t *testing.T) {
	engine := newTestEngine(5, 512, 100)
	base, err := engine.PlaceCircles(engine.Empty(), 2, Primary, RadiusRange{Min: 10, Max: 20})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}

	same, err := engine.PlaceCircles(base, 0, Secondary, RadiusRange{Min: 10, Max: 20})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}
	if !same.Equal(base) {
		t.Error("count=0 should return existing unchanged")
	}
}

func TestPlaceCirclesInvalidRequests(t *testing.T) {
	engine := newTestEngine(5, 512, 100)
	tests := []struct {
		name  string
		count int
		radii RadiusRange
	}{
		{"negative count", -1, RadiusRange{Min: 10, Max: 20}},
		{"zero min radius", 1, RadiusRange{Min: 0, Max: 20}},
		{"inverted range", 1, RadiusRange{Min: 20, Max: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.PlaceCircles(engine.Empty(), tt.count, Primary, tt.radii)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected InvalidRequest, got %v", err)
			}
		})
	}

	otherCanvas := NewPointSet(Canvas{Size: 100, BoundaryWidth: 5, PointSep: 10})
	if _, err := engine.PlaceCircles(otherCanvas, 1, Primary, RadiusRange{Min: 5, Max: 6}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected InvalidRequest for mismatched canvas, got %v", err)
	}
}

func TestPlaceCirclesShapes(t *testing.T) {
	for _, shape := range []Shape{ShapeCircle, ShapeSquare} {
		t.Run(shape.String(), func(t *testing.T) {
			canvas := DefaultCanvas()
			canvas.Shape = shape
			engine := NewEngine(EngineConfig{Canvas: canvas, AttemptsLimit: 5000}, NewRand(11))

			ps, err := engine.PlaceCircles(engine.Empty(), 12, Primary, RadiusRange{Min: 8, Max: 16})
			if err != nil {
				t.Fatalf("PlaceCircles failed: %v", err)
			}
			assertLayout(t, ps)

			if shape != ShapeCircle {
				return
			}
			half := float64(canvas.Size) / 2
			center := geom.Coord{X: half, Y: half}
			for i := 0; i < ps.Len(); i++ {
				c := ps.At(i)
				if d := c.Center.DistanceFrom(center); d > half-canvas.BoundaryWidth-c.Radius+1e-9 {
					t.Errorf("circle %d leaves the disc: distance %.2f", i, d)
				}
			}
		})
	}
}

func TestPlaceCirclesIntegerPixels(t *testing.T) {
	engine := NewEngine(EngineConfig{Canvas: DefaultCanvas(), AttemptsLimit: 1000, IntegerPixels: true}, NewRand(9))

	ps, err := engine.PlaceCircles(engine.Empty(), 6, Primary, RadiusRange{Min: 10, Max: 14})
	if err != nil {
		t.Fatalf("PlaceCircles failed: %v", err)
	}
	for i := 0; i < ps.Len(); i++ {
		c := ps.At(i)
		if c.Radius != math.Trunc(c.Radius) || c.Center.X != math.Trunc(c.Center.X) || c.Center.Y != math.Trunc(c.Center.Y) {
			t.Errorf("circle %d not on the pixel grid: %+v", i, c)
		}
	}
	assertLayout(t, ps)
}

func TestPlaceCirclesCanvasTooSmall(t *testing.T) {
	engine := newTestEngine(2, 40, 20)

	_, err := engine.PlaceCircles(engine.Empty(), 1, Primary, RadiusRange{Min: 30, Max: 30})
	if !errors.Is(err, ErrPlacementExhausted) {
		t.Errorf("Expected PlacementExhausted for an empty region, got %v", err)
	}
}

func TestFromCirclesValidates(t *testing.T) {
	canvas := DefaultCanvas()
	tests := []struct {
		name    string
		circles []Circle
		wantErr bool
	}{
		{"valid", []Circle{{Center: geom.Coord{X: 100, Y: 100}, Radius: 20}}, false},
		{"zero radius", []Circle{{Center: geom.Coord{X: 100, Y: 100}, Radius: 0}}, true},
		{"crosses boundary", []Circle{{Center: geom.Coord{X: 20, Y: 100}, Radius: 20}}, true},
		{"overlap", []Circle{
			{Center: geom.Coord{X: 100, Y: 100}, Radius: 20},
			{Center: geom.Coord{X: 140, Y: 100}, Radius: 20},
		}, true},
		{"touching with separation", []Circle{
			{Center: geom.Coord{X: 100, Y: 100}, Radius: 20},
			{Center: geom.Coord{X: 150, Y: 100}, Radius: 20},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCircles(canvas, tt.circles)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromCircles error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
