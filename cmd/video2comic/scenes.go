package main

import (
	"github.com/spf13/cobra"

	"github.com/ivlev/video2comic/internal/director"
	"github.com/ivlev/video2comic/internal/engine"
	"github.com/ivlev/video2comic/internal/storage"
	"github.com/ivlev/video2comic/internal/stylize"
	"github.com/ivlev/video2comic/internal/system"
)

func newScenesCommand(ctx *commandContext) *cobra.Command {
	var out string
	var threshold, fps float64

	cmd := &cobra.Command{
		Use:   "scenes <video>",
		Short: "List the scene changes that would become panels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("threshold") {
				cfg.Scene.Threshold = threshold
			}
			if cmd.Flags().Changed("fps") {
				cfg.Sampler.ProbeFPS = fps
			}
			cfg.Stylizer.Backend = "none"
			if err := cfg.Validate(); err != nil {
				return err
			}
			if needsFFmpeg(args[0], cfg) {
				if err := system.CheckFFmpeg(); err != nil {
					return err
				}
			}

			pipeline, err := engine.NewPipeline(cfg, engine.Deps{
				Stylizer: stylize.Identity,
				Sink:     storage.NewMemory(),
			}, log)
			if err != nil {
				return err
			}
			report, err := pipeline.Scenes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return director.WriteSceneReport(report, out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Scene-change threshold in [0,1]")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Probe frames per second")
	return cmd
}
