package generate

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"path/filepath"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/plan"
	"github.com/cwbudde/cogstim/internal/store"
)

// MTS generates match-to-sample pairs: a sample image <base>_s and a match
// image <base>_m under <out>/<phase>/, both drawn in the primary colour.
//
// Unequal pairs that cannot be equalized within ImageAttempts layouts are
// skipped and recorded as such. Equal-count pairs are saved either way.
func (g *Generator) MTS(ctx context.Context) (*store.Run, error) {
	ratios, err := plan.ResolveRatios(g.cfg.Ratios, plan.MTSEasy, plan.MTSHard)
	if err != nil {
		return nil, err
	}

	tasksFor := func(repeats int) []plan.Task {
		return plan.MTSPlan(ratios, g.cfg.MinPoints, g.cfg.MaxPoints, repeats)
	}
	return g.run(ctx, store.KindMTS, tasksFor, g.mtsTask)
}

func (g *Generator) mtsTask(ctx context.Context, phase string, index int, t plan.Task) (outcome, error) {
	base := g.baseName(t)

	var sample, match dots.PointSet
	equalized := false
	retries, err := g.attempt(ctx, phase, index, base, func(rng *rand.Rand) error {
		eng := g.engine(rng)
		s, err := eng.PlaceCircles(eng.Empty(), t.N1, dots.Primary, g.cfg.Radii)
		if err != nil {
			return err
		}
		m, err := eng.PlaceCircles(eng.Empty(), t.N2, dots.Primary, g.cfg.Radii)
		if err != nil {
			return err
		}

		equalized = false
		if t.Equalize {
			es, em, err := g.equalizer(rng).EqualizePair(s, m)
			switch {
			case err == nil:
				s, m, equalized = es, em, true
			case t.N1 == t.N2 && errors.Is(err, dots.ErrEqualizationInfeasible):
				slog.Debug("Keeping unequalized equal pair", "pair", base, "error", err)
			default:
				return err
			}
		}
		sample, match = s, m
		return nil
	})

	if errors.Is(err, ErrTerminal) && errors.Is(err, dots.ErrEqualizationInfeasible) {
		slog.Warn("Skipping pair", "pair", base, "error", err)
		rec := store.NewRecord(phase, t.N1, t.N2, 0, 0, t.Equalize)
		rec.Skipped = true
		return outcome{record: rec, retries: retries}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	sEntry, err := g.save(sample, filepath.Join(phase, base+"_s"+g.ext))
	if err != nil {
		return outcome{}, err
	}
	mEntry, err := g.save(match, filepath.Join(phase, base+"_m"+g.ext))
	if err != nil {
		return outcome{}, err
	}

	rec := store.NewRecord(phase, t.N1, t.N2, sample.TotalArea(), match.TotalArea(), equalized, sEntry.Image, mEntry.Image)
	return outcome{
		record:  rec,
		layouts: []store.LayoutEntry{sEntry, mEntry},
		retries: retries,
	}, nil
}
