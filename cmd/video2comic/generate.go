package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/engine"
	"github.com/ivlev/video2comic/internal/jobs"
	"github.com/ivlev/video2comic/internal/metrics"
	"github.com/ivlev/video2comic/internal/storage"
	"github.com/ivlev/video2comic/internal/system"
)

type generateOptions struct {
	output      string
	template    string
	threshold   float64
	fps         float64
	subtitles   string
	stylizer    string
	workers     int
	metricsAddr string
	fromBucket  bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <video>",
		Short: "Convert a video (or a directory of frames) into comic pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := applyGenerateFlags(cmd, &cfg, opts); err != nil {
				return err
			}
			return runGenerate(cmd, cfg, log, args[0], opts.fromBucket)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory for the local storage backend")
	flags.StringVarP(&opts.template, "template", "t", "", "Page template: grid-2x2, grid-3x1, splash")
	flags.Float64Var(&opts.threshold, "threshold", 0, "Scene-change threshold in [0,1]")
	flags.Float64Var(&opts.fps, "fps", 0, "Probe frames per second")
	flags.StringVar(&opts.subtitles, "subtitles", "", "SRT or WebVTT file with the dialogue")
	flags.StringVar(&opts.stylizer, "stylizer", "", "Stylizer backend: filter, ffmpeg, remote, none")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Concurrent segment workers (0 = sized from the host)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address, e.g. :9090")
	flags.BoolVar(&opts.fromBucket, "from-bucket", false, "Treat <video> as an object key in the MinIO upload bucket")

	return cmd
}

// applyGenerateFlags overrides configuration values with the flags the user
// actually set.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config, opts generateOptions) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Storage.OutputDir = opts.output
	}
	if flags.Changed("template") {
		cfg.Layout.Template = opts.template
	}
	if flags.Changed("threshold") {
		cfg.Scene.Threshold = opts.threshold
	}
	if flags.Changed("fps") {
		cfg.Sampler.ProbeFPS = opts.fps
	}
	if flags.Changed("subtitles") {
		cfg.Transcript.Backend = "subtitles"
		cfg.Transcript.SubtitlePath = opts.subtitles
	}
	if flags.Changed("stylizer") {
		cfg.Stylizer.Backend = opts.stylizer
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	return cfg.Validate()
}

func runGenerate(cmd *cobra.Command, cfg config.Config, log *zap.Logger, input string, fromBucket bool) error {
	runCtx := cmd.Context()
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits(log)

	sink, err := storage.New(runCtx, cfg.Storage)
	if err != nil {
		return err
	}

	// Видео лежит в бакете: скачиваем во временную директорию
	if fromBucket {
		store, ok := sink.(*storage.MinIO)
		if !ok {
			return fmt.Errorf("--from-bucket needs the minio storage backend, got %q", cfg.Storage.Backend)
		}
		tmpDir, err := os.MkdirTemp("", "video2comic_")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		input, err = store.Fetch(runCtx, input, tmpDir)
		if err != nil {
			return err
		}
		log.Info("video fetched", zap.String("path", input))
	}

	if needsFFmpeg(input, cfg) {
		if err := system.CheckFFmpeg(); err != nil {
			return err
		}
	}

	if cfg.Metrics.Addr != "" {
		metrics.StartMetricsServer(runCtx, cfg.Metrics.Addr, log)
	}

	pipeline, err := engine.NewPipeline(cfg, engine.Deps{Sink: sink}, log)
	if err != nil {
		return err
	}

	registry := jobs.NewRegistry(cfg.Jobs.Retention)
	job := registry.Create(input)
	job.AddSink(metrics.NewSink())

	// Логируем каждую смену статуса задачи
	events := job.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range events {
			log.Info("job status",
				zap.String("job_id", evt.JobID.String()),
				zap.String("status", string(evt.Status)),
				zap.String("reason", evt.Reason),
			)
		}
	}()

	res, err := pipeline.Run(runCtx, job)
	<-done
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	names := make([]string, 0, len(res.Outputs))
	for name := range res.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s\t%s\n", name, res.Outputs[name])
	}
	if issues := res.Storyboard.Issues(); len(issues) > 0 {
		fmt.Fprintf(out, "%d issue(s) to review, see `video2comic inspect`\n", len(issues))
	}
	return nil
}

// needsFFmpeg проверяет, понадобится ли ffmpeg для декодирования или стилизации
func needsFFmpeg(input string, cfg config.Config) bool {
	if cfg.Stylizer.Backend == "ffmpeg" {
		return true
	}
	fi, err := os.Stat(input)
	return err != nil || !fi.IsDir()
}
