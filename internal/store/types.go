package store

import (
	"math"
	"sort"
	"time"
)

// Run kinds.
const (
	KindANS       = "ans"
	KindOneColour = "one-colour"
	KindMTS       = "mts"
)

// RunConfig is the persisted copy of a generation config.
// It avoids an import cycle with the generate package.
type RunConfig struct {
	OutputDir   string  `json:"outputDir"`
	Ratios      string  `json:"ratios"`
	MinPoints   int     `json:"minPoints"`
	MaxPoints   int     `json:"maxPoints"`
	Train       int     `json:"train"`
	Test        int     `json:"test"`
	MinRadius   float64 `json:"minRadius"`
	MaxRadius   float64 `json:"maxRadius"`
	Seed        int64   `json:"seed"`
	Format      string  `json:"format"`
	VersionTag  string  `json:"versionTag,omitempty"`
	Growth      string  `json:"growth"`
	RelTol      float64 `json:"relTolerance"`
	AbsTol      float64 `json:"absTolerance"`
	CanvasShape string  `json:"canvasShape"`
}

// Record describes one generated image or image pair and its measured areas.
type Record struct {
	Phase     string   `json:"phase"`
	N1        int      `json:"n1"`
	N2        int      `json:"n2"`
	Area1     float64  `json:"area1"`
	Area2     float64  `json:"area2"`
	Ratio     float64  `json:"ratio"`
	AbsDiff   float64  `json:"absDiff"`
	RelDiff   float64  `json:"relDiff"`
	Equalized bool     `json:"equalized"`
	Skipped   bool     `json:"skipped,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// NewRecord fills the derived ratio and difference fields.
// Ratio is n1/n2, or 0 when n2 is 0; RelDiff is relative to max(a1, a2, 1).
func NewRecord(phase string, n1, n2 int, area1, area2 float64, equalized bool, files ...string) Record {
	ratio := 0.0
	if n2 != 0 {
		ratio = float64(n1) / float64(n2)
	}
	abs := math.Abs(area1 - area2)
	return Record{
		Phase:     phase,
		N1:        n1,
		N2:        n2,
		Area1:     area1,
		Area2:     area2,
		Ratio:     ratio,
		AbsDiff:   abs,
		RelDiff:   abs / math.Max(math.Max(area1, area2), 1),
		Equalized: equalized,
		Files:     files,
	}
}

// Stats counts the outcome of a run.
type Stats struct {
	Images  int `json:"images"`
	Skipped int `json:"skipped"`
	Retries int `json:"retries"`
}

// Run is a finished (or cancelled) generation run.
type Run struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Config    RunConfig     `json:"config"`
	Records   []Record      `json:"records"`
	Stats     Stats         `json:"stats"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// RunInfo contains metadata about a run without its records.
type RunInfo struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"duration"`
	Images    int           `json:"images"`
	Skipped   int           `json:"skipped"`
	OutputDir string        `json:"outputDir"`
	Failed    bool          `json:"failed"`
}

// ToInfo converts a full Run to RunInfo.
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Kind:      r.Kind,
		CreatedAt: r.CreatedAt,
		Duration:  r.Duration,
		Images:    r.Stats.Images,
		Skipped:   r.Stats.Skipped,
		OutputDir: r.Config.OutputDir,
		Failed:    r.Error != "",
	}
}

// Validate checks that the run carries the fields every backend relies on.
func (r *Run) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	switch r.Kind {
	case KindANS, KindOneColour, KindMTS:
	default:
		return &ValidationError{Field: "Kind", Reason: "must be ans, one-colour or mts"}
	}
	if r.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	if r.Stats.Images < 0 || r.Stats.Skipped < 0 || r.Stats.Retries < 0 {
		return &ValidationError{Field: "Stats", Reason: "cannot be negative"}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func sortInfos(infos []RunInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
}
