package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/analyzer"
	"github.com/ivlev/video2comic/internal/bubble"
	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/director"
	"github.com/ivlev/video2comic/internal/export"
	"github.com/ivlev/video2comic/internal/metrics"
	"github.com/ivlev/video2comic/internal/renderer"
	"github.com/ivlev/video2comic/internal/scene"
	"github.com/ivlev/video2comic/internal/source"
	"github.com/ivlev/video2comic/internal/storage"
	"github.com/ivlev/video2comic/internal/stylize"
	"github.com/ivlev/video2comic/internal/system"
	"github.com/ivlev/video2comic/internal/transcript"
)

// Deps are the pluggable parts of a pipeline. Nil fields are built from
// the configuration.
type Deps struct {
	Opener      source.Opener
	Stylizer    stylize.Stylizer
	Transcripts func(videoPath string) (transcript.Provider, error)
	Detector    analyzer.Detector
	Sink        storage.Sink
}

// Pipeline converts one video per Run into a comic. A Pipeline may run
// several jobs concurrently; all per-job state lives in Run.
type Pipeline struct {
	cfg     config.Config
	deps    Deps
	workers int

	director *director.Director
	placer   *bubble.Placer
	renderer *renderer.Renderer
	packager *export.Packager
	log      *zap.Logger
}

// Result is what a finished job produced.
type Result struct {
	Segments   []comic.SceneSegment
	Pages      []comic.Page
	Storyboard *director.Storyboard
	Outputs    map[string]string // artifact name -> storage location
}

func NewPipeline(cfg config.Config, deps Deps, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Opener == nil {
		deps.Opener = source.DefaultOpener{Config: cfg.Sampler, Log: log}
	}
	if deps.Stylizer == nil {
		s, err := stylize.New(cfg.Stylizer, log)
		if err != nil {
			return nil, err
		}
		deps.Stylizer = s
	}
	if deps.Transcripts == nil {
		tc := cfg.Transcript
		deps.Transcripts = func(videoPath string) (transcript.Provider, error) {
			return transcript.New(tc, videoPath, log)
		}
	}
	if deps.Detector == nil {
		d, err := analyzer.NewDetector(cfg.Bubble.Detector)
		if err != nil {
			return nil, err
		}
		deps.Detector = d
	}
	if deps.Sink == nil {
		deps.Sink = storage.NewLocal(cfg.Storage.OutputDir)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = system.DefaultWorkers()
	}

	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		workers:  workers,
		director: director.NewDirector(cfg.Layout, cfg.Scene.DramaticThreshold),
		placer:   bubble.NewPlacer(cfg.Bubble),
		renderer: renderer.New(cfg.Layout.PageWidth, cfg.Layout.PageHeight),
		packager: export.NewPackager(cfg.Export, log),
		log:      log,
	}, nil
}

// Run drives job through every stage. On any fatal error the job is failed
// with a single reason and the error is returned; partial results are dropped.
func (p *Pipeline) Run(ctx context.Context, job *comic.ComicJob) (*Result, error) {
	startTime := time.Now()
	log := p.log.With(zap.String("job_id", job.ID.String()), zap.String("source", job.Source))
	log.Info("job started", zap.Int("workers", p.workers))

	// 1. Frames and scenes
	if err := p.advance(ctx, job, comic.StatusExtracting); err != nil {
		return nil, err
	}
	segments, duration, err := p.extract(ctx, job, log)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	// 2. Styling and dialogue, fanned out per segment
	if err := p.advance(ctx, job, comic.StatusStyling); err != nil {
		return nil, err
	}
	provider, err := p.deps.Transcripts(job.Source)
	if err != nil {
		log.Warn("transcript unavailable", zap.Error(err))
		job.Annotate(comic.AnnotationTranscriptUnavailable, err.Error())
		provider = transcript.None
	}
	assets, err := p.fanOut(ctx, segments, duration, provider, log)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	// 3. Pages, panels and bubbles
	if err := p.advance(ctx, job, comic.StatusLayingOut); err != nil {
		return nil, err
	}
	pages, err := p.layout(ctx, segments, assets, log)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	// 4. Pixels and export
	if err := p.advance(ctx, job, comic.StatusRendering); err != nil {
		return nil, err
	}
	images, err := p.render(ctx, pages, assets)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	sb := director.NewStoryboard(job.ID, job.Source, p.cfg.Layout.PageWidth, p.cfg.Layout.PageHeight, pages, segments)
	outputs, err := p.export(ctx, job, sb, images)
	if err != nil {
		return nil, p.fail(ctx, job, err)
	}

	if err := job.Complete(pages); err != nil {
		return nil, err
	}

	degraded := 0
	for _, page := range pages {
		if page.Degraded {
			degraded++
		}
	}
	log.Info("job done",
		zap.Int("segments", len(segments)),
		zap.Int("pages", len(pages)),
		zap.Int("degraded_pages", degraded),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return &Result{Segments: segments, Pages: pages, Storyboard: sb, Outputs: outputs}, nil
}

// Scenes runs only the extraction stage and reports what was selected.
func (p *Pipeline) Scenes(ctx context.Context, path string) (*director.SceneReport, error) {
	sampler, err := p.deps.Opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer sampler.Close()

	segments, err := scene.NewSelector(p.cfg.Scene, p.log).Select(ctx, sampler)
	if err != nil {
		return nil, err
	}
	return director.NewSceneReport(path, sampler.Duration(), len(sampler.Skipped()), segments, p.cfg.Scene.DramaticThreshold), nil
}

func (p *Pipeline) extract(ctx context.Context, job *comic.ComicJob, log *zap.Logger) ([]comic.SceneSegment, time.Duration, error) {
	stageStart := time.Now()
	sampler, err := p.deps.Opener.Open(ctx, job.Source)
	if err != nil {
		return nil, 0, err
	}
	defer sampler.Close()

	segments, err := scene.NewSelector(p.cfg.Scene, log).Select(ctx, sampler)
	for _, skip := range sampler.Skipped() {
		job.Annotate(comic.AnnotationFrameDecodeSkipped, skip.Error())
	}
	metrics.FramesSkippedTotal.Add(float64(len(sampler.Skipped())))
	if err != nil {
		return nil, 0, err
	}
	metrics.SegmentsSelectedTotal.Add(float64(len(segments)))

	log.Info("scenes selected",
		zap.Int("segments", len(segments)),
		zap.Int("skipped_frames", len(sampler.Skipped())),
		zap.Duration("video", sampler.Duration()),
		zap.Duration("elapsed", time.Since(stageStart)),
	)
	return segments, sampler.Duration(), nil
}

func (p *Pipeline) export(ctx context.Context, job *comic.ComicJob, sb *director.Storyboard, images [][]byte) (map[string]string, error) {
	doc, err := director.MarshalStoryboard(sb)
	if err != nil {
		return nil, err
	}
	artifacts, err := p.packager.Package(ctx, job.ID, images, doc)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		name := job.ID.String() + "/" + a.Name
		loc, err := p.deps.Sink.Put(ctx, name, bytes.NewReader(a.Data), int64(len(a.Data)), a.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", a.Name, err)
		}
		outputs[a.Name] = loc
	}
	return outputs, nil
}

func (p *Pipeline) advance(ctx context.Context, job *comic.ComicJob, next comic.Status) error {
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, job, err)
	}
	if err := job.Advance(next); err != nil {
		return p.fail(ctx, job, err)
	}
	return nil
}

// fail records a single reason on the job and returns the error to the
// caller. Any failure after the context is done counts as cancellation.
func (p *Pipeline) fail(ctx context.Context, job *comic.ComicJob, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		job.Fail(comic.ErrCancelled.Error())
		p.log.Warn("job cancelled", zap.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %v", comic.ErrCancelled, err)
	}
	job.Fail(err.Error())
	p.log.Error("job failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	return err
}
