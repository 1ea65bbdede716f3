package generate

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"path/filepath"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/plan"
	"github.com/cwbudde/cogstim/internal/store"
)

// ANS generates two-colour approximate number system images, or one-colour
// counting images when Config.OneColour is set.
//
// Two-colour images land in <out>/<phase>/<majority colour>/; every position
// yields four images per repeat (both orders, random and equalized).
func (g *Generator) ANS(ctx context.Context) (*store.Run, error) {
	kind := store.KindANS
	var ratios []plan.Ratio
	if g.cfg.OneColour {
		kind = store.KindOneColour
	} else {
		var err error
		if ratios, err = plan.ResolveRatios(g.cfg.Ratios, plan.ANSEasy, plan.ANSHard); err != nil {
			return nil, err
		}
	}

	positions := plan.ANSPositions(g.cfg.MinPoints, g.cfg.MaxPoints, ratios, g.cfg.OneColour)
	tasksFor := func(repeats int) []plan.Task {
		return plan.ANSPlan(positions, repeats, g.cfg.OneColour)
	}
	return g.run(ctx, kind, tasksFor, g.ansTask)
}

// classDir is the colour of the group with more dots.
func (g *Generator) classDir(t plan.Task) string {
	if g.cfg.OneColour || t.N1 > t.N2 {
		return g.cfg.Primary
	}
	return g.cfg.Secondary
}

func (g *Generator) ansTask(ctx context.Context, phase string, index int, t plan.Task) (outcome, error) {
	equalize := t.Equalize && !g.cfg.OneColour
	rel := filepath.Join(phase, g.classDir(t), g.baseName(t)+g.ext)

	var set dots.PointSet
	retries, err := g.attempt(ctx, phase, index, rel, func(rng *rand.Rand) error {
		ps, err := g.buildANS(rng, t, equalize)
		set = ps
		return err
	})
	if err != nil {
		return outcome{}, err
	}

	entry, err := g.save(set, rel)
	if err != nil {
		return outcome{}, err
	}
	rec := store.NewRecord(phase, t.N1, t.N2, set.Area(dots.Primary), set.Area(dots.Secondary), equalize, entry.Image)
	return outcome{record: rec, layouts: []store.LayoutEntry{entry}, retries: retries}, nil
}

// buildANS places N1 primary and N2 secondary dots and optionally equalizes
// the two group areas.
func (g *Generator) buildANS(rng *rand.Rand, t plan.Task, equalize bool) (dots.PointSet, error) {
	eng := g.engine(rng)
	ps, err := eng.PlaceCircles(eng.Empty(), t.N1, dots.Primary, g.cfg.Radii)
	if err != nil {
		return dots.PointSet{}, err
	}
	if ps, err = eng.PlaceCircles(ps, t.N2, dots.Secondary, g.cfg.Radii); err != nil {
		return dots.PointSet{}, err
	}
	if equalize {
		return g.equalizer(rng).EqualizeGroups(ps)
	}
	return ps, nil
}

// Preview builds and renders one layout without touching the output
// directory. t.Rep selects the seed stream, so equal tasks give equal images.
func (g *Generator) Preview(ctx context.Context, t plan.Task) (*image.NRGBA, dots.PointSet, error) {
	if t.N1 < 0 || t.N2 < 0 || t.N1+t.N2 == 0 {
		return nil, dots.PointSet{}, fmt.Errorf("preview needs at least one dot, got %d and %d", t.N1, t.N2)
	}
	if g.cfg.OneColour {
		t.N2 = 0
	}
	equalize := t.Equalize && !g.cfg.OneColour && t.N1 > 0 && t.N2 > 0

	var set dots.PointSet
	_, err := g.attempt(ctx, "preview", t.Rep, "preview", func(rng *rand.Rand) error {
		ps, err := g.buildANS(rng, t, equalize)
		set = ps
		return err
	})
	if err != nil {
		return nil, dots.PointSet{}, err
	}
	return g.renderer.Render(set), set, nil
}
