// Package plan computes which dot counts a dataset contains.
package plan

import "fmt"

// Ratio is a numerosity ratio smaller/larger expressed as a fraction.
type Ratio struct {
	Num, Den int
}

// Value returns Num/Den.
func (r Ratio) Value() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Ratio sets used by the ANS and match-to-sample tasks.
var (
	ANSEasy = []Ratio{{1, 5}, {1, 4}, {1, 3}, {2, 5}, {1, 2}, {3, 5}, {2, 3}, {3, 4}}
	ANSHard = []Ratio{{4, 5}, {5, 6}, {6, 7}, {7, 8}, {8, 9}, {9, 10}, {10, 11}, {11, 12}}
	MTSEasy = []Ratio{{2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 7}}
	MTSHard = []Ratio{{7, 8}, {8, 9}, {9, 10}, {10, 11}, {11, 12}}
)

// ResolveRatios selects easy, hard or all (easy followed by hard).
func ResolveRatios(mode string, easy, hard []Ratio) ([]Ratio, error) {
	switch mode {
	case "easy":
		return append([]Ratio(nil), easy...), nil
	case "hard":
		return append([]Ratio(nil), hard...), nil
	case "all":
		out := make([]Ratio, 0, len(easy)+len(hard))
		out = append(out, easy...)
		return append(out, hard...), nil
	default:
		return nil, fmt.Errorf("invalid ratio mode: %s", mode)
	}
}

// partner returns b = a/ratio when it is an integer.
func partner(a int, r Ratio) (int, bool) {
	if r.Num <= 0 || r.Den <= 0 {
		return 0, false
	}
	// a·Den/Num is exact in integers; avoids float equality on a/ratio
	if (a*r.Den)%r.Num != 0 {
		return 0, false
	}
	return a * r.Den / r.Num, true
}

// Pair is an ordered combination of two dot counts.
type Pair struct {
	A, B int
}

// ANSPositions returns (a, b) with b = a/ratio an integer no larger than max,
// for a in [min, max). In one-colour mode it returns (a, 0) for a in [min, max].
func ANSPositions(min, max int, ratios []Ratio, oneColour bool) []Pair {
	var out []Pair
	if oneColour {
		for a := min; a <= max; a++ {
			out = append(out, Pair{a, 0})
		}
		return out
	}
	for a := min; a < max; a++ {
		for _, r := range ratios {
			if b, ok := partner(a, r); ok && b <= max {
				out = append(out, Pair{a, b})
			}
		}
	}
	return out
}
