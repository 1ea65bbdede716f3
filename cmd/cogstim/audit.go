package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/cogstim/internal/audit"
	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/cwbudde/cogstim/internal/render"
	"github.com/spf13/cobra"
)

var (
	auditBackground string
	auditRelTol     float64
	auditAbsTol     float64
	auditShow       int
	auditCSV        string
	auditOverRel    float64
	auditDelete     bool
)

var auditCmd = &cobra.Command{
	Use:   "audit <dir>",
	Short: "Measure rendered match-to-sample pairs",
	Long: `Measures the foreground area of every <base>_s / <base>_m image pair in dir
and reports how closely the equalized pairs match. With --remove-over-rel the
pairs above the threshold are listed, and deleted when --delete is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditBackground, "background", "", "Background colour (defaults to the mts config)")
	auditCmd.Flags().Float64Var(&auditRelTol, "rel-tol", 1e-6, "Relative tolerance")
	auditCmd.Flags().Float64Var(&auditAbsTol, "abs-tol", 2, "Absolute tolerance in pixels")
	auditCmd.Flags().IntVar(&auditShow, "show", 20, "Show up to N worst mismatches")
	auditCmd.Flags().StringVar(&auditCSV, "csv", "", "Write the per-pair areas to this CSV file")
	auditCmd.Flags().Float64Var(&auditOverRel, "remove-over-rel", 0, "Flag equalized pairs with a relative difference above this")
	auditCmd.Flags().BoolVar(&auditDelete, "delete", false, "Delete the flagged pairs")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	dir := args[0]
	bgName := auditBackground
	if bgName == "" {
		bgName = appConfig.MTS.Background
	}
	bg, err := render.ParseColour(bgName)
	if err != nil {
		return err
	}

	rows, err := audit.ScanPairs(dir, bg)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printWarning("No image pairs found in %s", dir)
		return nil
	}

	if auditCSV != "" {
		f, err := os.Create(auditCSV)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", auditCSV, err)
		}
		if err := audit.WriteCSV(f, rows); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		printInfo("Wrote %d rows to %s", len(rows), auditCSV)
	}

	s := audit.Summarize(rows, dots.Tolerance{Relative: auditRelTol, Absolute: auditAbsTol}, auditShow)
	fmt.Fprintln(cmd.OutOrStdout(), auditSummary(s))

	if auditOverRel <= 0 {
		return nil
	}
	flagged := audit.OverRelative(rows, auditOverRel)
	if len(flagged) == 0 {
		printSuccess("No equalized pairs above rel diff %g", auditOverRel)
		return nil
	}
	printWarning("%d pair(s) above rel diff %g", len(flagged), auditOverRel)
	for _, p := range flagged {
		fmt.Println("  " + styleDim.Render(p.SampleFile) + "  " + styleDim.Render(p.MatchFile))
	}
	if !auditDelete {
		printInfo("Dry run; pass --delete to remove them")
		return nil
	}
	n, err := audit.RemovePairs(dir, flagged)
	if err != nil {
		return err
	}
	printSuccess("Removed %d file(s)", n)
	return nil
}

func auditSummary(s audit.Summary) string {
	lines := []string{
		styleTitle.Render("Equalization audit"),
		field("pairs", s.Total),
		field("equalized", s.Equalized),
		field("random", s.NonEqualized),
	}
	if s.Equalized > 0 {
		within := fmt.Sprintf("%d/%d", s.Within, s.Equalized)
		if s.Within == s.Equalized {
			within = styleSuccess.Render(within)
		} else {
			within = styleWarning.Render(within)
		}
		lines = append(lines,
			field("within tol", within),
			field("mean abs", fmt.Sprintf("%.2f px", s.MeanAbs)),
			field("mean rel", fmt.Sprintf("%.6f", s.MeanRel)),
			field("max abs", fmt.Sprintf("%d px", s.MaxAbs)),
			field("max rel", fmt.Sprintf("%.6f", s.MaxRel)),
		)
	}
	if len(s.Worst) > 0 {
		lines = append(lines, "", styleTitle.Render("Worst mismatches"))
		for _, m := range s.Worst {
			lines = append(lines, fmt.Sprintf("%s  s=%d m=%d  abs=%d rel=%.6f",
				m.Pair.Base, m.Pair.SampleArea, m.Pair.MatchArea, m.AbsDiff, m.RelDiff))
		}
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}
