package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cwbudde/cogstim/internal/store"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim).Width(14)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleBox     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

func printSuccess(format string, args ...any) {
	fmt.Println(styleSuccess.Render("✓") + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleWarning.Render("!") + " " + styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleError.Render("✗")+" "+fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleDim.Render("›") + " " + fmt.Sprintf(format, args...))
}

// field renders one "label value" line.
func field(label string, value any) string {
	return styleLabel.Render(label) + " " + fmt.Sprint(value)
}

// runSummary renders a boxed overview of a finished run.
func runSummary(run *store.Run) string {
	lines := []string{
		styleTitle.Render(strings.ToUpper(run.Kind) + " run"),
		field("id", run.ID),
		field("output", run.Config.OutputDir),
		field("images", styleNumber.Render(fmt.Sprint(run.Stats.Images))),
		field("retries", run.Stats.Retries),
		field("elapsed", run.Duration.Round(time.Millisecond)),
	}
	if run.Stats.Skipped > 0 {
		lines = append(lines, field("skipped", styleWarning.Render(fmt.Sprint(run.Stats.Skipped))))
	}
	if run.Error != "" {
		lines = append(lines, field("error", styleError.Render(run.Error)))
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}

func printRunSummary(w io.Writer, run *store.Run) {
	fmt.Fprintln(w, runSummary(run))
}
