package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/opt"
	"github.com/cwbudde/cogstim/internal/plan"
	"github.com/cwbudde/cogstim/internal/render"
	"github.com/cwbudde/cogstim/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Progress is reported after every finished task.
type Progress struct {
	RunID   string `json:"runId"`
	Kind    string `json:"kind"`
	Phase   string `json:"phase"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Skipped int    `json:"skipped"`
	Image   string `json:"image,omitempty"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithProgress installs a progress callback. Calls are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(g *Generator) { g.progress = fn }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(g *Generator) { g.runID = id }
}

// Generator renders datasets described by a Config.
type Generator struct {
	cfg      Config
	renderer *render.Renderer
	ext      string
	runID    string
	progress func(Progress)
	mu       sync.Mutex
}

// New validates cfg and prepares the renderer.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	palette, err := render.NewPalette(cfg.Background, cfg.Primary, cfg.Secondary)
	if err != nil {
		return nil, fmt.Errorf("invalid colours: %w", err)
	}
	ext, err := render.Extension(cfg.Format)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:      cfg,
		renderer: render.NewRenderer(palette, cfg.OneColour),
		ext:      ext,
		runID:    uuid.NewString(),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// RunID returns the ID stamped on the produced run.
func (g *Generator) RunID() string {
	return g.runID
}

// outcome is the result of one task.
type outcome struct {
	record  store.Record
	layouts []store.LayoutEntry
	retries int
}

type taskFunc func(ctx context.Context, phase string, index int, t plan.Task) (outcome, error)

// run executes every phase in order and assembles the run record. On error
// the partial run is returned together with the error.
func (g *Generator) run(ctx context.Context, kind string, tasksFor func(repeats int) []plan.Task, do taskFunc) (*store.Run, error) {
	start := time.Now()
	run := &store.Run{
		ID:        g.runID,
		Kind:      kind,
		Config:    g.cfg.RunConfig(),
		Records:   []store.Record{},
		CreatedAt: start.UTC(),
	}
	fail := func(err error) (*store.Run, error) {
		run.Error = err.Error()
		run.Duration = time.Since(start)
		return run, err
	}

	var lw *store.LayoutWriter
	if g.cfg.Layouts {
		var err error
		if lw, err = store.NewLayoutWriter(g.cfg.OutputDir, false); err != nil {
			return fail(err)
		}
		defer lw.Close()
	}

	for _, p := range g.cfg.phases() {
		tasks := tasksFor(p.repeats)
		slog.Info("Generating images",
			"kind", kind,
			"phase", p.name,
			"tasks", len(tasks),
			"dir", filepath.Join(g.cfg.OutputDir, p.name),
		)

		outcomes, err := g.runPhase(ctx, kind, p.name, tasks, do)
		if err != nil {
			return fail(err)
		}

		records := make([]store.Record, 0, len(outcomes))
		for _, o := range outcomes {
			records = append(records, o.record)
			run.Stats.Retries += o.retries
			if o.record.Skipped {
				run.Stats.Skipped++
			} else {
				run.Stats.Images += len(o.record.Files)
			}
			if lw == nil {
				continue
			}
			for _, e := range o.layouts {
				if err := lw.Write(e); err != nil {
					return fail(err)
				}
			}
		}
		run.Records = append(run.Records, records...)

		if g.cfg.Summary {
			path, err := WriteSummary(filepath.Join(g.cfg.OutputDir, p.name), records)
			if err != nil {
				return fail(err)
			}
			if path != "" {
				slog.Info("Summary written", "path", path)
			}
		}
	}

	if lw != nil {
		if err := lw.Flush(); err != nil {
			return fail(err)
		}
	}

	run.Duration = time.Since(start)
	slog.Info("Run finished",
		"run_id", run.ID,
		"kind", kind,
		"images", run.Stats.Images,
		"skipped", run.Stats.Skipped,
		"retries", run.Stats.Retries,
		"elapsed", run.Duration,
	)
	return run, nil
}

// runPhase fans the tasks out over the worker pool. Outcomes keep task order.
func (g *Generator) runPhase(ctx context.Context, kind, phase string, tasks []plan.Task, do taskFunc) ([]outcome, error) {
	outcomes := make([]outcome, len(tasks))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers())

	var mu sync.Mutex
	done, skipped := 0, 0

	for i, t := range tasks {
		if gctx.Err() != nil {
			break
		}
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := do(gctx, phase, i, t)
			if err != nil {
				return err
			}
			outcomes[i] = o

			mu.Lock()
			done++
			if o.record.Skipped {
				skipped++
			}
			p := Progress{RunID: g.runID, Kind: kind, Phase: phase, Done: done, Total: len(tasks), Skipped: skipped}
			mu.Unlock()

			if len(o.record.Files) > 0 {
				p.Image = o.record.Files[0]
			}
			g.report(p)
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	// a cancellation that raced the last Go call leaves no task error behind
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (g *Generator) workers() int {
	if g.cfg.Workers > 0 {
		return g.cfg.Workers
	}
	return runtime.NumCPU()
}

func (g *Generator) report(p Progress) {
	if g.progress == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.progress(p)
}

// attempt runs build with a fresh per-attempt generator until it succeeds.
// Layout errors trigger a retry; anything else is returned as is. After
// ImageAttempts failures a *TerminalError wrapping the last layout error is
// returned. The first return value counts the retries.
func (g *Generator) attempt(ctx context.Context, phase string, index int, name string, build func(rng *rand.Rand) error) (int, error) {
	var last error
	for a := 0; a < g.cfg.ImageAttempts; a++ {
		if err := ctx.Err(); err != nil {
			return a, err
		}

		err := build(dots.NewRand(imageSeed(g.cfg.Seed, phase, index, a)))
		if err == nil {
			return a, nil
		}
		var layoutErr *dots.LayoutError
		if !errors.As(err, &layoutErr) {
			return a, err
		}

		slog.Debug("Retrying image", "image", name, "attempt", a+1, "error", err)
		last = err
	}
	return g.cfg.ImageAttempts, &TerminalError{Image: name, Attempts: g.cfg.ImageAttempts, Err: last}
}

func (g *Generator) engine(rng *rand.Rand) *dots.Engine {
	return dots.NewEngine(dots.EngineConfig{
		Canvas:        g.cfg.Canvas,
		AttemptsLimit: g.cfg.AttemptsLimit,
		IntegerPixels: g.cfg.IntegerPixels,
	}, rng)
}

// equalizer builds the per-image equalizer; the search optimizer is seeded
// from rng so search results stay reproducible.
func (g *Generator) equalizer(rng *rand.Rand) *dots.Equalizer {
	cfg := dots.EqualizerConfig{
		Tolerance:  g.cfg.Tolerance,
		Radii:      g.cfg.Radii,
		StepPx:     1,
		RoundRadii: g.cfg.IntegerPixels,
		Strategy:   g.cfg.Growth,
	}
	if g.cfg.Growth == dots.GrowSearch {
		cfg.Optimizer = opt.NewMayfly(g.cfg.SearchIters, opt.MinPopulation, rng.Int63())
	}
	return dots.NewEqualizer(cfg)
}

// baseName is img_<n1>_<n2>_<rep>[_equalized][_<tag>] without extension.
func (g *Generator) baseName(t plan.Task) string {
	name := fmt.Sprintf("img_%d_%d_%d", t.N1, t.N2, t.Rep)
	if t.Equalize {
		name += "_equalized"
	}
	if g.cfg.VersionTag != "" {
		name += "_" + g.cfg.VersionTag
	}
	return name
}

// save renders set to <OutputDir>/<rel> and returns its layout entry.
func (g *Generator) save(set dots.PointSet, rel string) (store.LayoutEntry, error) {
	img := g.renderer.Render(set)
	if err := render.Save(img, filepath.Join(g.cfg.OutputDir, rel)); err != nil {
		return store.LayoutEntry{}, err
	}
	return store.NewLayoutEntry(filepath.ToSlash(rel), set), nil
}
