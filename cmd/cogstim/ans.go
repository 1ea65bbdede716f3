package main

import (
	"github.com/cwbudde/cogstim/internal/config"
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/store"
)

func init() {
	rootCmd.AddCommand(newDatasetCmd(
		"ans",
		"Generate two-colour ANS images",
		`Generates approximate number system images: every ratio position is drawn
in both colour orders, once with random dot sizes and once with the two
colour areas equalized. Images land in <output>/<phase>/<majority colour>/.`,
		store.KindANS,
		config.ANSDefaults(),
		func() generate.Config { return appConfig.ANS },
	))

	rootCmd.AddCommand(newDatasetCmd(
		"one-colour",
		"Generate single-colour counting images",
		`Generates images with one group of dots in the primary colour, one image
per count from --min-points to --max-points and repeat.`,
		store.KindOneColour,
		config.OneColourDefaults(),
		func() generate.Config { return appConfig.OneColour },
	))
}
