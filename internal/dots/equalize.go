package dots

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/cogstim/internal/opt"
)

// Tolerance decides when two areas count as equal. Either bound suffices.
type Tolerance struct {
	Relative float64 `json:"relative" toml:"relative"`
	Absolute float64 `json:"absolute" toml:"absolute"`
}

// Within reports whether |a-b| <= Absolute or |a-b| <= Relative·max(a, b, 1).
func (t Tolerance) Within(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= t.Absolute {
		return true
	}
	return diff <= t.Relative*math.Max(math.Max(a, b), 1)
}

// GrowthStrategy selects how the incremental fallback searches for the
// equalizing radius increment.
type GrowthStrategy int

const (
	// GrowStep adds StepPx to every adjusted radius until the tolerance is met.
	GrowStep GrowthStrategy = iota
	// GrowBisect bisects a continuous uniform increment.
	GrowBisect
	// GrowSearch hands the increment to an opt.Optimizer.
	GrowSearch
)

// ParseGrowthStrategy converts "step", "bisect" or "search".
func ParseGrowthStrategy(s string) (GrowthStrategy, error) {
	switch s {
	case "", "step":
		return GrowStep, nil
	case "bisect":
		return GrowBisect, nil
	case "search":
		return GrowSearch, nil
	default:
		return GrowStep, fmt.Errorf("unknown growth strategy: %s", s)
	}
}

func (g GrowthStrategy) String() string {
	switch g {
	case GrowBisect:
		return "bisect"
	case GrowSearch:
		return "search"
	default:
		return "step"
	}
}

func (g GrowthStrategy) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GrowthStrategy) UnmarshalText(b []byte) error {
	v, err := ParseGrowthStrategy(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// bisectIterations fixes the number of halvings for GrowBisect.
const bisectIterations = 48

// EqualizerConfig configures area equalization.
type EqualizerConfig struct {
	Tolerance Tolerance
	// Radii is the nominal radius range; it bounds incremental growth to
	// floor((Max-Min)/StepPx)+1 steps.
	Radii  RadiusRange
	StepPx float64
	// RoundRadii rounds scaled radii to whole pixels (minimum 1).
	RoundRadii bool
	Strategy   GrowthStrategy
	// Optimizer is required by GrowSearch and ignored otherwise.
	Optimizer opt.Optimizer
}

// Equalizer adjusts radii so that two groups or two sets reach matching
// total area. It never mutates its inputs.
type Equalizer struct {
	cfg EqualizerConfig
}

// NewEqualizer creates an equalizer; a zero StepPx defaults to 1px.
func NewEqualizer(cfg EqualizerConfig) *Equalizer {
	if cfg.StepPx <= 0 {
		cfg.StepPx = 1
	}
	return &Equalizer{cfg: cfg}
}

// Tolerance returns the configured acceptance bounds.
func (eq *Equalizer) Tolerance() Tolerance {
	return eq.cfg.Tolerance
}

// MaxGrowthSteps is the iteration bound of incremental growth.
func (eq *Equalizer) MaxGrowthSteps() int {
	span := eq.cfg.Radii.Max - eq.cfg.Radii.Min
	if span < 0 || math.IsNaN(span) {
		span = 0
	}
	return int(math.Floor(span/eq.cfg.StepPx)) + 1
}

// ScaleTotalArea multiplies every radius by sqrt(target/current) so the
// total area of the set becomes target.
func (eq *Equalizer) ScaleTotalArea(set PointSet, target float64) (PointSet, error) {
	return eq.scaleSelected(set, allCircles, target)
}

// ScaleGroupArea scales only the circles of group g so that their area
// becomes target; the whole set is re-validated.
func (eq *Equalizer) ScaleGroupArea(set PointSet, g Group, target float64) (PointSet, error) {
	return eq.scaleSelected(set, inGroup(g), target)
}

func (eq *Equalizer) scaleSelected(set PointSet, sel func(Circle) bool, target float64) (PointSet, error) {
	if !(target > 0) || math.IsInf(target, 1) {
		return PointSet{}, layoutErrorf(InvalidRequest, "target area must be positive, got %g", target)
	}
	current := selectedArea(set, sel)
	if current == 0 {
		return PointSet{}, layoutErrorf(ScalingInfeasible, "current area is zero; cannot scale radii")
	}

	factor := math.Sqrt(target / current)
	scaled := set.mapRadii(sel, func(r float64) float64 {
		return eq.round(r * factor)
	})
	if !scaled.valid() {
		return PointSet{}, layoutErrorf(ScalingInfeasible, "scaling by %.4f breaks the layout", factor)
	}
	return scaled, nil
}

// ScaleByFactor multiplies every radius by factor, optionally rounding to
// whole pixels, and re-validates the layout.
func (eq *Equalizer) ScaleByFactor(set PointSet, factor float64, round bool) (PointSet, error) {
	if !(factor > 0) || math.IsInf(factor, 1) {
		return PointSet{}, layoutErrorf(InvalidRequest, "scale factor must be positive, got %g", factor)
	}
	scaled := set.mapRadii(allCircles, func(r float64) float64 {
		r *= factor
		if round {
			r = math.Max(math.Round(r), 1)
		}
		return r
	})
	if !scaled.valid() {
		return PointSet{}, layoutErrorf(ScalingInfeasible, "scaling by %.4f breaks the layout", factor)
	}
	return scaled, nil
}

func (eq *Equalizer) round(r float64) float64 {
	if !eq.cfg.RoundRadii {
		return r
	}
	return math.Max(math.Round(r), 1)
}

// GrowToTarget grows every circle of group g until their area is within
// tolerance of target, re-validating the full set after each increment.
func (eq *Equalizer) GrowToTarget(set PointSet, g Group, target float64) (PointSet, error) {
	return eq.grow(set, inGroup(g), target)
}

// GrowTotalToTarget grows every circle of the set towards target.
func (eq *Equalizer) GrowTotalToTarget(set PointSet, target float64) (PointSet, error) {
	return eq.grow(set, allCircles, target)
}

func (eq *Equalizer) grow(set PointSet, sel func(Circle) bool, target float64) (PointSet, error) {
	tol := eq.cfg.Tolerance
	if tol.Within(selectedArea(set, sel), target) {
		return set, nil
	}

	var (
		out PointSet
		err error
	)
	switch eq.cfg.Strategy {
	case GrowBisect:
		out = eq.growBisect(set, sel, target)
	case GrowSearch:
		out, err = eq.growSearch(set, sel, target)
		if err != nil {
			return PointSet{}, err
		}
	default:
		out = eq.growStep(set, sel, target)
	}

	reached := selectedArea(out, sel)
	if !tol.Within(reached, target) {
		return PointSet{}, layoutErrorf(EqualizationInfeasible,
			"reached %.1f px² of %.1f px² target", reached, target)
	}
	return out, nil
}

// growStep returns the last valid state of fixed pixel increments. It stops
// at the tolerance, at the first invalid step, at the iteration bound, or
// on overshoot (keeping whichever state is closer to target).
func (eq *Equalizer) growStep(set PointSet, sel func(Circle) bool, target float64) PointSet {
	tol := eq.cfg.Tolerance
	step := eq.cfg.StepPx
	current := set
	area := selectedArea(current, sel)

	for i := 0; i < eq.MaxGrowthSteps(); i++ {
		candidate := current.mapRadii(sel, func(r float64) float64 { return r + step })
		if !candidate.valid() {
			break
		}
		next := selectedArea(candidate, sel)
		if next >= target {
			if math.Abs(next-target) < math.Abs(area-target) {
				current = candidate
			}
			break
		}
		current, area = candidate, next
		if tol.Within(area, target) {
			break
		}
	}
	return current
}

// growBisect finds the largest uniform increment δ in [0, bound] that keeps
// the layout valid without exceeding target. Validity only gets worse and
// area only grows with δ, so the predicate is monotone.
func (eq *Equalizer) growBisect(set PointSet, sel func(Circle) bool, target float64) PointSet {
	grown := func(delta float64) PointSet {
		return set.mapRadii(sel, func(r float64) float64 { return r + delta })
	}
	ok := func(ps PointSet) bool {
		return ps.valid() && selectedArea(ps, sel) <= target
	}

	lo, hi := 0.0, float64(eq.MaxGrowthSteps())*eq.cfg.StepPx
	if ok(grown(hi)) {
		return grown(hi)
	}
	for i := 0; i < bisectIterations; i++ {
		mid := (lo + hi) / 2
		if ok(grown(mid)) {
			lo = mid
		} else {
			hi = mid
		}
	}

	best := grown(lo)
	// hi may be valid and land just past target
	if above := grown(hi); above.valid() &&
		math.Abs(selectedArea(above, sel)-target) < math.Abs(selectedArea(best, sel)-target) {
		best = above
	}
	return best
}

// growSearch minimises |area(δ)-target| with the configured optimizer.
// Invalid layouts are penalised above any valid one.
func (eq *Equalizer) growSearch(set PointSet, sel func(Circle) bool, target float64) (PointSet, error) {
	if eq.cfg.Optimizer == nil {
		return PointSet{}, layoutErrorf(InvalidRequest, "search growth requires an optimizer")
	}

	grown := func(delta float64) PointSet {
		return set.mapRadii(sel, func(r float64) float64 { return r + delta })
	}
	penalty := 2 * target
	eval := func(x []float64) float64 {
		ps := grown(x[0])
		cost := math.Abs(selectedArea(ps, sel) - target)
		if !ps.valid() {
			cost += penalty
		}
		return cost
	}

	upper := float64(eq.MaxGrowthSteps()) * eq.cfg.StepPx
	best, _, err := eq.cfg.Optimizer.Run(eval, []float64{0}, []float64{upper}, 1)
	if err != nil {
		return PointSet{}, layoutErrorf(EqualizationInfeasible, "increment search failed: %v", err)
	}

	out := grown(clamp(best[0], 0, upper))
	if !out.valid() {
		return set, nil
	}
	return out, nil
}

// EqualizeGroups equalizes Primary and Secondary area within one set. The
// smaller group is scaled to the larger group's area; on failure it falls
// back to incremental growth. A set already within tolerance is returned
// unchanged.
func (eq *Equalizer) EqualizeGroups(set PointSet) (PointSet, error) {
	primary, secondary := set.Area(Primary), set.Area(Secondary)
	if eq.cfg.Tolerance.Within(primary, secondary) {
		return set, nil
	}

	small, target := Secondary, primary
	if primary < secondary {
		small, target = Primary, secondary
	}
	if set.Area(small) == 0 {
		return PointSet{}, layoutErrorf(EqualizationInfeasible, "%s group has no circles", small)
	}

	sel := inGroup(small)
	out, err := eq.scaleOrGrow(set, sel, target)
	if err != nil {
		return PointSet{}, err
	}
	return out, nil
}

// EqualizePair equalizes the total area of two independent sets. Only the
// smaller set is adjusted; results are returned in argument order.
func (eq *Equalizer) EqualizePair(a, b PointSet) (PointSet, PointSet, error) {
	areaA, areaB := a.TotalArea(), b.TotalArea()
	if eq.cfg.Tolerance.Within(areaA, areaB) {
		return a, b, nil
	}

	if areaA < areaB {
		out, err := eq.pairSide(a, areaB)
		if err != nil {
			return PointSet{}, PointSet{}, err
		}
		return out, b, nil
	}
	out, err := eq.pairSide(b, areaA)
	if err != nil {
		return PointSet{}, PointSet{}, err
	}
	return a, out, nil
}

func (eq *Equalizer) pairSide(small PointSet, target float64) (PointSet, error) {
	if small.TotalArea() == 0 {
		return PointSet{}, layoutErrorf(EqualizationInfeasible, "set has no circles")
	}
	return eq.scaleOrGrow(small, allCircles, target)
}

func (eq *Equalizer) scaleOrGrow(set PointSet, sel func(Circle) bool, target float64) (PointSet, error) {
	scaled, err := eq.scaleSelected(set, sel, target)
	switch {
	case err == nil && eq.cfg.Tolerance.Within(selectedArea(scaled, sel), target):
		return scaled, nil
	case err != nil && !errors.Is(err, ErrScalingInfeasible):
		return PointSet{}, err
	}
	return eq.grow(set, sel, target)
}

func selectedArea(set PointSet, sel func(Circle) bool) float64 {
	var sum float64
	for _, c := range set.circles {
		if sel(c) {
			sum += c.Area()
		}
	}
	return sum
}
