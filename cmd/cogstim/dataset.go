package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/store"
	"github.com/spf13/cobra"
)

// datasetFlags are the generation settings shared by ans, one-colour and
// mts. Only flags set on the command line override the loaded config.
type datasetFlags struct {
	out, format, tag, ratios, growth string
	background, primary, secondary  string
	shape                           string
	train, test                     int
	minPoints, maxPoints            int
	size, attempts, imageAttempts   int
	searchIters, workers            int
	minRadius, maxRadius            float64
	boundary, pointSep              float64
	relTol, absTol                  float64
	seed                            int64
	easy, integer, noSummary        bool
	noLayouts, noRecord             bool
}

func (f *datasetFlags) register(cmd *cobra.Command, def generate.Config) {
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "output-dir", "o", def.OutputDir, "Root output directory")
	fl.StringVar(&f.format, "format", def.Format, "Image format (png, jpg, gif)")
	fl.StringVar(&f.tag, "version-tag", def.VersionTag, "Tag appended to every file name")
	fl.StringVar(&f.ratios, "ratios", def.Ratios, "Ratio set: easy, hard or all")
	fl.BoolVar(&f.easy, "easy", false, "Shortcut for --ratios easy")
	fl.StringVar(&f.growth, "growth", def.Growth.String(), "Growth strategy when scaling fails: step, bisect or search")
	fl.IntVar(&f.searchIters, "search-iters", def.SearchIters, "Optimizer iterations for --growth search")

	fl.StringVar(&f.background, "background", def.Background, "Background colour (name or #hex)")
	fl.StringVar(&f.primary, "primary", def.Primary, "Primary dot colour")
	fl.StringVar(&f.secondary, "secondary", def.Secondary, "Secondary dot colour")

	fl.IntVar(&f.train, "train", def.Train, "Repeats for the train phase")
	fl.IntVar(&f.test, "test", def.Test, "Repeats for the test phase")
	fl.IntVar(&f.minPoints, "min-points", def.MinPoints, "Minimum dots per group")
	fl.IntVar(&f.maxPoints, "max-points", def.MaxPoints, "Maximum dots per group")

	fl.IntVar(&f.size, "size", def.Canvas.Size, "Canvas size in pixels")
	fl.StringVar(&f.shape, "shape", def.Canvas.Shape.String(), "Placement region: circle or square")
	fl.Float64Var(&f.boundary, "boundary", def.Canvas.BoundaryWidth, "Margin between dots and the canvas edge")
	fl.Float64Var(&f.pointSep, "point-sep", def.Canvas.PointSep, "Minimum gap between dots")
	fl.Float64Var(&f.minRadius, "min-radius", def.Radii.Min, "Minimum dot radius")
	fl.Float64Var(&f.maxRadius, "max-radius", def.Radii.Max, "Maximum dot radius")
	fl.BoolVar(&f.integer, "integer-pixels", def.IntegerPixels, "Snap centres and radii to whole pixels")
	fl.IntVar(&f.attempts, "attempts", def.AttemptsLimit, "Placement attempts per dot")
	fl.IntVar(&f.imageAttempts, "image-attempts", def.ImageAttempts, "Layout attempts per image before giving up")

	fl.Float64Var(&f.relTol, "rel-tol", def.Tolerance.Relative, "Relative area tolerance")
	fl.Float64Var(&f.absTol, "abs-tol", def.Tolerance.Absolute, "Absolute area tolerance in pixels")

	fl.Int64Var(&f.seed, "seed", def.Seed, "Base random seed")
	fl.IntVar(&f.workers, "workers", def.Workers, "Parallel workers (0 = one per CPU)")
	fl.BoolVar(&f.noSummary, "no-summary", false, "Skip summary.csv")
	fl.BoolVar(&f.noLayouts, "no-layouts", false, "Skip layouts.jsonl")
	fl.BoolVar(&f.noRecord, "no-record", false, "Do not save the run to the run store")
}

// apply copies every changed flag onto cfg.
func (f *datasetFlags) apply(cmd *cobra.Command, cfg *generate.Config) error {
	changed := cmd.Flags().Changed

	if changed("output-dir") {
		cfg.OutputDir = f.out
	}
	if changed("format") {
		cfg.Format = f.format
	}
	if changed("version-tag") {
		cfg.VersionTag = f.tag
	}
	if changed("ratios") {
		cfg.Ratios = f.ratios
	}
	if f.easy {
		cfg.Ratios = "easy"
	}
	if changed("growth") {
		g, err := dots.ParseGrowthStrategy(f.growth)
		if err != nil {
			return err
		}
		cfg.Growth = g
	}
	if changed("search-iters") {
		cfg.SearchIters = f.searchIters
	}
	if changed("background") {
		cfg.Background = f.background
	}
	if changed("primary") {
		cfg.Primary = f.primary
	}
	if changed("secondary") {
		cfg.Secondary = f.secondary
	}
	if changed("train") {
		cfg.Train = f.train
	}
	if changed("test") {
		cfg.Test = f.test
	}
	if changed("min-points") {
		cfg.MinPoints = f.minPoints
	}
	if changed("max-points") {
		cfg.MaxPoints = f.maxPoints
	}
	if changed("size") {
		cfg.Canvas.Size = f.size
	}
	if changed("shape") {
		s, err := dots.ParseShape(f.shape)
		if err != nil {
			return err
		}
		cfg.Canvas.Shape = s
	}
	if changed("boundary") {
		cfg.Canvas.BoundaryWidth = f.boundary
	}
	if changed("point-sep") {
		cfg.Canvas.PointSep = f.pointSep
	}
	if changed("min-radius") {
		cfg.Radii.Min = f.minRadius
	}
	if changed("max-radius") {
		cfg.Radii.Max = f.maxRadius
	}
	if changed("integer-pixels") {
		cfg.IntegerPixels = f.integer
	}
	if changed("attempts") {
		cfg.AttemptsLimit = f.attempts
	}
	if changed("image-attempts") {
		cfg.ImageAttempts = f.imageAttempts
	}
	if changed("rel-tol") {
		cfg.Tolerance.Relative = f.relTol
	}
	if changed("abs-tol") {
		cfg.Tolerance.Absolute = f.absTol
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if f.noSummary {
		cfg.Summary = false
	}
	if f.noLayouts {
		cfg.Layouts = false
	}
	return nil
}

// runDataset generates one dataset, records it in the configured store and
// prints a summary. Interrupts cancel the run; the partial run is still
// recorded.
func runDataset(cmd *cobra.Command, kind string, cfg generate.Config, record bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := generate.New(cfg, generate.WithProgress(func(p generate.Progress) {
		slog.Debug("Progress", "phase", p.Phase, "done", p.Done, "total", p.Total, "image", p.Image)
	}))
	if err != nil {
		return err
	}

	var run *store.Run
	if kind == store.KindMTS {
		run, err = gen.MTS(ctx)
	} else {
		run, err = gen.ANS(ctx)
	}

	if run != nil {
		if record {
			if serr := recordRun(run); serr != nil {
				slog.Warn("Failed to record run", "run_id", run.ID, "error", serr)
			}
		}
		printRunSummary(cmd.OutOrStdout(), run)
	}
	if err != nil {
		return fmt.Errorf("%s generation failed: %w", kind, err)
	}
	printSuccess("Wrote %d images to %s", run.Stats.Images, cfg.OutputDir)
	return nil
}

func recordRun(run *store.Run) error {
	st, closeStore, err := appConfig.Store.OpenStore(context.Background())
	if err != nil {
		return err
	}
	defer closeStore()
	return st.SaveRun(context.Background(), run)
}

// newDatasetCmd builds one generation command on top of the config section
// returned by section.
func newDatasetCmd(use, short, long, kind string, def generate.Config, section func() generate.Config) *cobra.Command {
	var flags datasetFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := section()
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return runDataset(cmd, kind, cfg, !flags.noRecord)
		},
	}
	flags.register(cmd, def)
	return cmd
}
