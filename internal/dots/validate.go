package dots

import "math"

// withinBounds reports whether c, including its radius, lies inside
// [BoundaryWidth, Size-BoundaryWidth] on both axes.
func (cv Canvas) withinBounds(c Circle) bool {
	lo := cv.BoundaryWidth
	hi := float64(cv.Size) - cv.BoundaryWidth
	return c.Center.X-c.Radius >= lo && c.Center.X+c.Radius <= hi &&
		c.Center.Y-c.Radius >= lo && c.Center.Y+c.Radius <= hi
}

// separated reports whether a and b keep at least PointSep between their edges.
func (cv Canvas) separated(a, b Circle) bool {
	return a.Center.DistanceFrom(b.Center) >= a.Radius+b.Radius+cv.PointSep
}

// clearOf is the strict acceptance test used during placement.
func (cv Canvas) clearOf(candidate Circle, placed []Circle) bool {
	for _, p := range placed {
		if candidate.Center.DistanceFrom(p.Center) <= candidate.Radius+p.Radius+cv.PointSep {
			return false
		}
	}
	return true
}

// Validate checks the radius, boundary and overlap invariants of every circle.
// It returns nil for a valid layout.
func (ps PointSet) Validate() error {
	cv := ps.canvas
	for i, c := range ps.circles {
		if !(c.Radius > 0) || math.IsInf(c.Radius, 0) {
			return layoutErrorf(InvalidRequest, "circle %d has non-positive radius %g", i, c.Radius)
		}
		if !cv.withinBounds(c) {
			return layoutErrorf(InvalidRequest, "circle %d at (%.1f, %.1f) r=%.2f crosses the boundary", i, c.Center.X, c.Center.Y, c.Radius)
		}
	}
	for i := 0; i < len(ps.circles); i++ {
		for j := i + 1; j < len(ps.circles); j++ {
			if !cv.separated(ps.circles[i], ps.circles[j]) {
				return layoutErrorf(InvalidRequest, "circles %d and %d overlap", i, j)
			}
		}
	}
	return nil
}

// valid is Validate without the error allocation, used on hot paths.
func (ps PointSet) valid() bool {
	cv := ps.canvas
	for _, c := range ps.circles {
		if !(c.Radius > 0) || !cv.withinBounds(c) {
			return false
		}
	}
	for i := 0; i < len(ps.circles); i++ {
		for j := i + 1; j < len(ps.circles); j++ {
			if !cv.separated(ps.circles[i], ps.circles[j]) {
				return false
			}
		}
	}
	return true
}
