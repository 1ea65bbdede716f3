package plan

import "sort"

// Task is one image (ANS) or image pair (MTS) to generate.
type Task struct {
	N1       int  `json:"n1"`
	N2       int  `json:"n2"`
	Rep      int  `json:"rep"`
	Equalize bool `json:"equalize"`
}

// MTSPositions returns the sorted unique unordered pairs (n, m), n < m, both
// in [min, max], whose ratio is in ratios.
func MTSPositions(ratios []Ratio, min, max int) []Pair {
	seen := make(map[Pair]bool)
	for a := min; a <= max; a++ {
		for _, r := range ratios {
			b, ok := partner(a, r)
			if !ok || b < min || b > max || b == a {
				continue
			}
			p := Pair{a, b}
			if p.A > p.B {
				p = Pair{b, a}
			}
			seen[p] = true
		}
	}

	out := make([]Pair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// MTSPlan expands every position into six tasks per repeat: both orders
// random, both orders equalized, and the two equal-count controls.
func MTSPlan(ratios []Ratio, min, max, repeats int) []Task {
	positions := MTSPositions(ratios, min, max)
	tasks := make([]Task, 0, repeats*len(positions)*6)
	for rep := 0; rep < repeats; rep++ {
		for _, p := range positions {
			n, m := p.A, p.B
			tasks = append(tasks,
				Task{N1: n, N2: m, Rep: rep},
				Task{N1: m, N2: n, Rep: rep},
				Task{N1: n, N2: m, Rep: rep, Equalize: true},
				Task{N1: m, N2: n, Rep: rep, Equalize: true},
				Task{N1: n, N2: n, Rep: rep, Equalize: true},
				Task{N1: m, N2: m, Rep: rep},
			)
		}
	}
	return tasks
}

// ANSPlan expands every position into the four ANS variants per repeat:
// both orders random then both orders equalized. One-colour positions yield
// a single random task.
func ANSPlan(positions []Pair, repeats int, oneColour bool) []Task {
	var tasks []Task
	for rep := 0; rep < repeats; rep++ {
		for _, p := range positions {
			if oneColour {
				tasks = append(tasks, Task{N1: p.A, N2: 0, Rep: rep})
				continue
			}
			tasks = append(tasks,
				Task{N1: p.A, N2: p.B, Rep: rep},
				Task{N1: p.B, N2: p.A, Rep: rep},
				Task{N1: p.A, N2: p.B, Rep: rep, Equalize: true},
				Task{N1: p.B, N2: p.A, Rep: rep, Equalize: true},
			)
		}
	}
	return tasks
}
