// Package audit measures rendered match-to-sample pairs and checks how well
// their dot areas were equalized.
package audit

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/render"
)

// pairName matches img_<n1>_<n2>_<rep>[_equalized][_<tag>]_<s|m>.<ext>.
var pairName = regexp.MustCompile(`^(img_(\d+)_(\d+)_\d+(_equalized)?(?:_.+)?)_([sm])\.(?:png|jpe?g|gif)$`)

// PairArea is the measured foreground of one sample/match pair.
type PairArea struct {
	Base       string `json:"base"`
	N1         int    `json:"n1"`
	N2         int    `json:"n2"`
	Equalized  bool   `json:"equalized"`
	SampleArea int    `json:"sampleArea"`
	MatchArea  int    `json:"matchArea"`
	SampleFile string `json:"sampleFile"`
	MatchFile  string `json:"matchFile"`
}

// AbsDiff is |sample - match| in pixels.
func (p PairArea) AbsDiff() int {
	d := p.SampleArea - p.MatchArea
	if d < 0 {
		return -d
	}
	return d
}

// RelDiff is AbsDiff relative to max(sample, match, 1).
func (p PairArea) RelDiff() float64 {
	return float64(p.AbsDiff()) / math.Max(float64(max(p.SampleArea, p.MatchArea)), 1)
}

// ForegroundArea counts the pixels that differ from background.
func ForegroundArea(img image.Image, background color.Color) int {
	br, bg, bb, _ := background.RGBA()
	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r>>8 != br>>8 || g>>8 != bg>>8 || bl>>8 != bb>>8 {
				n++
			}
		}
	}
	return n
}

// ScanPairs measures every complete _s/_m pair in dir, sorted by base name.
// Files with unrecognised names and incomplete pairs are ignored.
func ScanPairs(dir string, background color.Color) ([]PairArea, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	type half struct{ s, m string }
	pairs := make(map[string]*half)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := pairName.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		h := pairs[match[1]]
		if h == nil {
			h = &half{}
			pairs[match[1]] = h
		}
		if match[5] == "s" {
			h.s = e.Name()
		} else {
			h.m = e.Name()
		}
	}

	bases := make([]string, 0, len(pairs))
	for base, h := range pairs {
		if h.s != "" && h.m != "" {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)

	rows := make([]PairArea, 0, len(bases))
	for _, base := range bases {
		h := pairs[base]
		match := pairName.FindStringSubmatch(h.s)
		n1, _ := strconv.Atoi(match[2])
		n2, _ := strconv.Atoi(match[3])

		sArea, err := measure(filepath.Join(dir, h.s), background)
		if err != nil {
			return nil, err
		}
		mArea, err := measure(filepath.Join(dir, h.m), background)
		if err != nil {
			return nil, err
		}

		rows = append(rows, PairArea{
			Base:       base,
			N1:         n1,
			N2:         n2,
			Equalized:  match[4] != "",
			SampleArea: sArea,
			MatchArea:  mArea,
			SampleFile: h.s,
			MatchFile:  h.m,
		})
	}
	return rows, nil
}

func measure(path string, background color.Color) (int, error) {
	img, err := render.Load(path)
	if err != nil {
		return 0, err
	}
	return ForegroundArea(img, background), nil
}

// Mismatch is an equalized pair outside tolerance.
type Mismatch struct {
	Pair    PairArea `json:"pair"`
	AbsDiff int      `json:"absDiff"`
	RelDiff float64  `json:"relDiff"`
}

// Summary aggregates the equalized pairs of a scan.
type Summary struct {
	Total        int        `json:"total"`
	Equalized    int        `json:"equalized"`
	NonEqualized int        `json:"nonEqualized"`
	MeanAbs      float64    `json:"meanAbs"`
	MeanRel      float64    `json:"meanRel"`
	MaxAbs       int        `json:"maxAbs"`
	MaxRel       float64    `json:"maxRel"`
	Within       int        `json:"within"`
	Worst        []Mismatch `json:"worst"`
}

// Summarize computes statistics over the equalized rows and keeps up to
// show mismatches, worst first (by absolute then relative difference).
func Summarize(rows []PairArea, tol dots.Tolerance, show int) Summary {
	s := Summary{Total: len(rows)}
	var mismatches []Mismatch
	for _, r := range rows {
		if !r.Equalized {
			s.NonEqualized++
			continue
		}
		s.Equalized++
		abs, rel := r.AbsDiff(), r.RelDiff()
		s.MeanAbs += float64(abs)
		s.MeanRel += rel
		s.MaxAbs = max(s.MaxAbs, abs)
		s.MaxRel = math.Max(s.MaxRel, rel)
		if tol.Within(float64(r.SampleArea), float64(r.MatchArea)) {
			s.Within++
		} else {
			mismatches = append(mismatches, Mismatch{Pair: r, AbsDiff: abs, RelDiff: rel})
		}
	}
	if s.Equalized > 0 {
		s.MeanAbs /= float64(s.Equalized)
		s.MeanRel /= float64(s.Equalized)
	}

	sort.SliceStable(mismatches, func(i, j int) bool {
		if mismatches[i].AbsDiff != mismatches[j].AbsDiff {
			return mismatches[i].AbsDiff > mismatches[j].AbsDiff
		}
		return mismatches[i].RelDiff > mismatches[j].RelDiff
	})
	if show >= 0 && len(mismatches) > show {
		mismatches = mismatches[:show]
	}
	s.Worst = mismatches
	return s
}

// OverRelative returns the equalized pairs whose relative difference
// exceeds threshold.
func OverRelative(rows []PairArea, threshold float64) []PairArea {
	var out []PairArea
	for _, r := range rows {
		if r.Equalized && r.RelDiff() > threshold {
			out = append(out, r)
		}
	}
	return out
}

// RemovePairs deletes both files of every pair from dir and returns how many
// files were removed.
func RemovePairs(dir string, pairs []PairArea) (int, error) {
	removed := 0
	for _, p := range pairs {
		for _, f := range []string{p.SampleFile, p.MatchFile} {
			err := os.Remove(filepath.Join(dir, f))
			if err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", f, err)
			}
			if err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

var csvHeader = []string{"base", "n", "m", "equalized", "s_area_px", "m_area_px", "s_file", "m_file"}

// WriteCSV writes the rows in the area report format.
func WriteCSV(w io.Writer, rows []PairArea) error {
	cw := csv.NewWriter(w)
	cw.Write(csvHeader)
	for _, r := range rows {
		eq := "0"
		if r.Equalized {
			eq = "1"
		}
		cw.Write([]string{
			r.Base,
			strconv.Itoa(r.N1),
			strconv.Itoa(r.N2),
			eq,
			strconv.Itoa(r.SampleArea),
			strconv.Itoa(r.MatchArea),
			r.SampleFile,
			r.MatchFile,
		})
	}
	cw.Flush()
	return cw.Error()
}
