package main

import (
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/render"
	"github.com/spf13/cobra"
)

var (
	renderFormat     string
	renderBackground string
	renderPrimary    string
	renderSecondary  string
	renderOneColour  bool
)

var renderCmd = &cobra.Command{
	Use:   "render <src> <dst>",
	Short: "Redraw a dataset from its layouts.jsonl",
	Long: `Reads the layout trace written next to a dataset and renders every image
again into dst, optionally with other colours or another image format.
The dot positions are unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def := appConfig.ANS
		bg, primary, secondary := def.Background, def.Primary, def.Secondary
		if cmd.Flags().Changed("background") {
			bg = renderBackground
		}
		if cmd.Flags().Changed("primary") {
			primary = renderPrimary
		}
		if cmd.Flags().Changed("secondary") {
			secondary = renderSecondary
		}

		palette, err := render.NewPalette(bg, primary, secondary)
		if err != nil {
			return err
		}
		n, err := generate.Rerender(cmd.Context(), args[0], args[1], render.NewRenderer(palette, renderOneColour), renderFormat)
		if err != nil {
			return err
		}
		printSuccess("Rendered %d images into %s", n, args[1])
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderFormat, "format", "png", "Image format (png, jpg, gif)")
	renderCmd.Flags().StringVar(&renderBackground, "background", "", "Background colour")
	renderCmd.Flags().StringVar(&renderPrimary, "primary", "", "Primary dot colour")
	renderCmd.Flags().StringVar(&renderSecondary, "secondary", "", "Secondary dot colour")
	renderCmd.Flags().BoolVar(&renderOneColour, "one-colour", false, "Draw every dot in the primary colour")
	rootCmd.AddCommand(renderCmd)
}
