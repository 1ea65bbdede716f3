package main

import (
	"github.com/cwbudde/cogstim/internal/config"
	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/store"
)

func init() {
	rootCmd.AddCommand(newDatasetCmd(
		"mts",
		"Generate match-to-sample image pairs",
		`Generates sample/match image pairs. Equalized pairs have their total dot
areas matched within tolerance; pairs that cannot be equalized after every
attempt are skipped and reported. Files are <base>_s.<ext> and <base>_m.<ext>.`,
		store.KindMTS,
		config.MTSDefaults(),
		func() generate.Config { return appConfig.MTS },
	))
}
