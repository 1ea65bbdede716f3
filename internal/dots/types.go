package dots

import (
	"fmt"
	"math"

	"github.com/jbeda/geom"
)

// Group identifies the colour/role a circle belongs to.
type Group int

const (
	Primary Group = iota
	Secondary
)

// String returns the group name used in logs and persisted layouts.
func (g Group) String() string {
	switch g {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// MarshalText encodes the group by name.
func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes "primary" or "secondary".
func (g *Group) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary":
		*g = Primary
	case "secondary":
		*g = Secondary
	default:
		return fmt.Errorf("unknown group: %s", b)
	}
	return nil
}

// Other returns the opposite group.
func (g Group) Other() Group {
	if g == Primary {
		return Secondary
	}
	return Primary
}

// Shape selects the region candidate centres are drawn from.
type Shape int

const (
	// ShapeCircle draws centres inside the disc inscribed in the canvas.
	ShapeCircle Shape = iota
	// ShapeSquare draws centres inside the full square canvas.
	ShapeSquare
)

// ParseShape converts "circle" or "square" into a Shape.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "", "circle":
		return ShapeCircle, nil
	case "square":
		return ShapeSquare, nil
	default:
		return ShapeCircle, fmt.Errorf("unknown canvas shape: %s", s)
	}
}

func (s Shape) String() string {
	if s == ShapeSquare {
		return "square"
	}
	return "circle"
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Default canvas constants.
const (
	DefaultCanvasSize    = 512
	DefaultBoundaryWidth = 5
	DefaultPointSep      = 10
)

// Canvas describes the square drawing area shared by every circle of a PointSet.
type Canvas struct {
	Size          int     `json:"size" toml:"size"`
	Shape         Shape   `json:"shape" toml:"shape"`
	BoundaryWidth float64 `json:"boundaryWidth" toml:"boundary_width"`
	PointSep      float64 `json:"pointSep" toml:"point_sep"`
}

// DefaultCanvas returns a 512px circular canvas with the standard margins.
func DefaultCanvas() Canvas {
	return Canvas{
		Size:          DefaultCanvasSize,
		Shape:         ShapeCircle,
		BoundaryWidth: DefaultBoundaryWidth,
		PointSep:      DefaultPointSep,
	}
}

// RadiusRange bounds the radius drawn for every new circle.
type RadiusRange struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

func (r RadiusRange) valid() bool {
	return r.Min > 0 && r.Min <= r.Max && !math.IsInf(r.Max, 1)
}

// Circle is a single placed dot.
type Circle struct {
	Center geom.Coord `json:"center"`
	Radius float64    `json:"radius"`
	Group  Group      `json:"group"`
}

// Area returns the surface of the circle in px².
func (c Circle) Area() float64 {
	return math.Pi * c.Radius * c.Radius
}

// PointSet is an immutable, ordered collection of circles sharing one canvas.
// Every transformation returns a new PointSet; the receiver is never modified.
type PointSet struct {
	canvas  Canvas
	circles []Circle
}

// NewPointSet creates an empty set on the given canvas.
func NewPointSet(canvas Canvas) PointSet {
	return PointSet{canvas: canvas}
}

// FromCircles builds a set from explicit circles and validates it.
func FromCircles(canvas Canvas, circles []Circle) (PointSet, error) {
	ps := PointSet{canvas: canvas, circles: append([]Circle(nil), circles...)}
	if err := ps.Validate(); err != nil {
		return PointSet{}, err
	}
	return ps, nil
}

// Canvas returns the canvas the set was created on.
func (ps PointSet) Canvas() Canvas {
	return ps.canvas
}

// Len returns the number of circles.
func (ps PointSet) Len() int {
	return len(ps.circles)
}

// At returns the i-th circle in insertion order.
func (ps PointSet) At(i int) Circle {
	return ps.circles[i]
}

// Circles returns a copy of the circles in insertion order.
func (ps PointSet) Circles() []Circle {
	return append([]Circle(nil), ps.circles...)
}

// Count returns the number of circles in group g.
func (ps PointSet) Count(g Group) int {
	n := 0
	for _, c := range ps.circles {
		if c.Group == g {
			n++
		}
	}
	return n
}

// Area returns Σ π·r² over the circles of group g.
func (ps PointSet) Area(g Group) float64 {
	var sum float64
	for _, c := range ps.circles {
		if c.Group == g {
			sum += c.Area()
		}
	}
	return sum
}

// TotalArea returns Σ π·r² over every circle regardless of group.
func (ps PointSet) TotalArea() float64 {
	var sum float64
	for _, c := range ps.circles {
		sum += c.Area()
	}
	return sum
}

// Equal reports whether two sets hold identical circles on identical canvases.
func (ps PointSet) Equal(other PointSet) bool {
	if ps.canvas != other.canvas || len(ps.circles) != len(other.circles) {
		return false
	}
	for i := range ps.circles {
		if ps.circles[i] != other.circles[i] {
			return false
		}
	}
	return true
}

// withCircles returns a new set sharing the canvas but owning circles.
func (ps PointSet) withCircles(circles []Circle) PointSet {
	return PointSet{canvas: ps.canvas, circles: circles}
}

// mapRadii returns a copy of the set where fn rewrites the radius of every
// circle selected by sel.
func (ps PointSet) mapRadii(sel func(Circle) bool, fn func(r float64) float64) PointSet {
	out := make([]Circle, len(ps.circles))
	for i, c := range ps.circles {
		if sel(c) {
			c.Radius = fn(c.Radius)
		}
		out[i] = c
	}
	return ps.withCircles(out)
}

func allCircles(Circle) bool { return true }

func inGroup(g Group) func(Circle) bool {
	return func(c Circle) bool { return c.Group == g }
}
