package dots

import (
	"math"
	"math/rand"

	"github.com/jbeda/geom"
)

// DefaultAttemptsLimit is the number of candidates tried per circle.
const DefaultAttemptsLimit = 10000

// maxPrealloc bounds the capacity hint for huge counts.
const maxPrealloc = 1024

// EngineConfig configures circle placement.
type EngineConfig struct {
	Canvas        Canvas
	AttemptsLimit int
	// IntegerPixels draws integer radii and snaps centres to whole pixels.
	IntegerPixels bool
}

// Engine places non-overlapping circles by rejection sampling. It owns the
// random source it was given; use one Engine per image and never share it
// between goroutines.
type Engine struct {
	cfg EngineConfig
	rng *rand.Rand
}

// NewRand returns the seeded generator every placement and search draw uses.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewEngine creates an engine drawing from rng.
func NewEngine(cfg EngineConfig, rng *rand.Rand) *Engine {
	if cfg.AttemptsLimit == 0 {
		cfg.AttemptsLimit = DefaultAttemptsLimit
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Canvas returns the canvas new sets are created on.
func (e *Engine) Canvas() Canvas {
	return e.cfg.Canvas
}

// Rand exposes the engine's generator so that collaborators (e.g. a search
// based equalizer) can derive their seeds from the same sequence.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

// Empty returns an empty set on the engine's canvas.
func (e *Engine) Empty() PointSet {
	return NewPointSet(e.cfg.Canvas)
}

// PlaceCircles appends count circles of group to existing. Radii are drawn
// uniformly from radii. If any single circle exhausts the attempts limit the
// whole call fails with PlacementExhausted and nothing is returned; existing
// is never modified.
func (e *Engine) PlaceCircles(existing PointSet, count int, group Group, radii RadiusRange) (PointSet, error) {
	if count < 0 {
		return PointSet{}, layoutErrorf(InvalidRequest, "negative circle count %d", count)
	}
	if !radii.valid() {
		return PointSet{}, layoutErrorf(InvalidRequest, "invalid radius range [%g, %g]", radii.Min, radii.Max)
	}
	if e.cfg.AttemptsLimit < 1 {
		return PointSet{}, layoutErrorf(InvalidRequest, "attempts limit must be positive, got %d", e.cfg.AttemptsLimit)
	}
	if existing.canvas != e.cfg.Canvas {
		return PointSet{}, layoutErrorf(InvalidRequest, "point set canvas does not match engine canvas")
	}
	if count == 0 {
		return existing, nil
	}

	cv := e.cfg.Canvas
	placed := make([]Circle, len(existing.circles), len(existing.circles)+min(count, maxPrealloc))
	copy(placed, existing.circles)

	for i := 0; i < count; i++ {
		accepted := false
		for attempt := 0; attempt < e.cfg.AttemptsLimit; attempt++ {
			candidate, ok := e.candidate(group, radii)
			if !ok || !cv.clearOf(candidate, placed) {
				continue
			}
			placed = append(placed, candidate)
			accepted = true
			break
		}
		if !accepted {
			return PointSet{}, layoutErrorf(PlacementExhausted,
				"circle %d of %d not placed after %d attempts", i+1, count, e.cfg.AttemptsLimit)
		}
	}

	return existing.withCircles(placed), nil
}

// candidate draws one radius and a centre inside the region inset by the
// boundary width and that radius. It reports false when the inset region is
// empty, which counts as a failed attempt.
func (e *Engine) candidate(group Group, radii RadiusRange) (Circle, bool) {
	cv := e.cfg.Canvas
	r := e.drawRadius(radii)

	half := float64(cv.Size) / 2
	inset := cv.BoundaryWidth + r
	span := half - inset
	if span < 0 {
		return Circle{}, false
	}

	var offset geom.Coord
	switch cv.Shape {
	case ShapeSquare:
		offset = geom.Coord{
			X: (2*e.rng.Float64() - 1) * span,
			Y: (2*e.rng.Float64() - 1) * span,
		}
	default:
		// sqrt keeps the density uniform over the disc
		rho := span * math.Sqrt(e.rng.Float64())
		theta := 2 * math.Pi * e.rng.Float64()
		offset = geom.Coord{X: rho * math.Cos(theta), Y: rho * math.Sin(theta)}
	}

	center := geom.Coord{X: half, Y: half}.Plus(offset)
	if e.cfg.IntegerPixels {
		center = geom.Coord{X: math.Round(center.X), Y: math.Round(center.Y)}
	}
	center.X = clamp(center.X, inset, float64(cv.Size)-inset)
	center.Y = clamp(center.Y, inset, float64(cv.Size)-inset)

	return Circle{Center: center, Radius: r, Group: group}, true
}

func (e *Engine) drawRadius(radii RadiusRange) float64 {
	if e.cfg.IntegerPixels {
		lo := math.Ceil(radii.Min)
		hi := math.Floor(radii.Max)
		if hi >= lo {
			return lo + float64(e.rng.Intn(int(hi-lo)+1))
		}
		// no integer inside the range
		return radii.Min
	}
	return radii.Min + e.rng.Float64()*(radii.Max-radii.Min)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
