// Package generate produces ANS and match-to-sample dot stimulus datasets.
package generate

import (
	"fmt"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/render"
	"github.com/cwbudde/cogstim/internal/store"
)

// Config controls a dataset run. Zero values are not defaulted here; use
// internal/config for the stock settings.
type Config struct {
	OutputDir string `json:"outputDir" toml:"output_dir"`
	Format    string `json:"format" toml:"format"`
	// VersionTag is appended to every file name when set.
	VersionTag string `json:"versionTag" toml:"version_tag"`

	Canvas        dots.Canvas      `json:"canvas" toml:"canvas"`
	Radii         dots.RadiusRange `json:"radii" toml:"radii"`
	AttemptsLimit int              `json:"attemptsLimit" toml:"attempts_limit"`
	// ImageAttempts bounds how often a whole image is regenerated after a
	// layout error before the run fails.
	ImageAttempts int  `json:"imageAttempts" toml:"image_attempts"`
	IntegerPixels bool `json:"integerPixels" toml:"integer_pixels"`

	Tolerance   dots.Tolerance      `json:"tolerance" toml:"tolerance"`
	Growth      dots.GrowthStrategy `json:"growth" toml:"growth"`
	SearchIters int                 `json:"searchIters" toml:"search_iters"`

	Background string `json:"background" toml:"background"`
	Primary    string `json:"primary" toml:"primary"`
	Secondary  string `json:"secondary" toml:"secondary"`
	OneColour  bool   `json:"oneColour" toml:"one_colour"`

	Train     int    `json:"train" toml:"train"`
	Test      int    `json:"test" toml:"test"`
	Ratios    string `json:"ratios" toml:"ratios"`
	MinPoints int    `json:"minPoints" toml:"min_points"`
	MaxPoints int    `json:"maxPoints" toml:"max_points"`

	Seed    int64 `json:"seed" toml:"seed"`
	Workers int   `json:"workers" toml:"workers"`
	Summary bool  `json:"summary" toml:"summary"`
	Layouts bool  `json:"layouts" toml:"layouts"`
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("output directory is required")
	case c.Canvas.Size <= 0:
		return fmt.Errorf("canvas size must be positive, got %d", c.Canvas.Size)
	case c.Radii.Min <= 0 || c.Radii.Min > c.Radii.Max:
		return fmt.Errorf("invalid radius range [%g, %g]", c.Radii.Min, c.Radii.Max)
	case c.AttemptsLimit <= 0:
		return fmt.Errorf("attempts limit must be positive, got %d", c.AttemptsLimit)
	case c.ImageAttempts <= 0:
		return fmt.Errorf("image attempts must be positive, got %d", c.ImageAttempts)
	case c.MinPoints < 1 || c.MinPoints > c.MaxPoints:
		return fmt.Errorf("invalid point range [%d, %d]", c.MinPoints, c.MaxPoints)
	case c.Train < 0 || c.Test < 0:
		return fmt.Errorf("image counts cannot be negative")
	case c.Growth == dots.GrowSearch && c.SearchIters <= 0:
		return fmt.Errorf("search growth needs a positive iteration count")
	}
	if _, err := render.Extension(c.Format); err != nil {
		return err
	}
	return nil
}

// phases returns the phase names with their repeat counts, skipping empty ones.
func (c Config) phases() []phase {
	var out []phase
	for _, p := range []phase{{"train", c.Train}, {"test", c.Test}} {
		if p.repeats > 0 {
			out = append(out, p)
		}
	}
	return out
}

type phase struct {
	name    string
	repeats int
}

// RunConfig is the persisted view of the config.
func (c Config) RunConfig() store.RunConfig {
	return store.RunConfig{
		OutputDir:   c.OutputDir,
		Ratios:      c.Ratios,
		MinPoints:   c.MinPoints,
		MaxPoints:   c.MaxPoints,
		Train:       c.Train,
		Test:        c.Test,
		MinRadius:   c.Radii.Min,
		MaxRadius:   c.Radii.Max,
		Seed:        c.Seed,
		Format:      c.Format,
		VersionTag:  c.VersionTag,
		Growth:      c.Growth.String(),
		RelTol:      c.Tolerance.Relative,
		AbsTol:      c.Tolerance.Absolute,
		CanvasShape: c.Canvas.Shape.String(),
	}
}
