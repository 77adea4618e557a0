package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/metrics"
	"github.com/ivlev/video2comic/internal/transcript"
)

type taskKind int

const (
	taskStylize taskKind = iota
	taskTranscript
)

// taskResult carries one capability's answer for one segment back to the
// barrier.
type taskResult struct {
	segment int
	kind    taskKind
	image   image.Image
	lines   []comic.DialogueLine
	err     error
}

// segmentAssets is everything layout and rendering need per segment.
// Missing entries mean the task failed or did not finish before the barrier.
type segmentAssets struct {
	styled        map[int]image.Image
	dialogue      map[int][]comic.DialogueLine
	styleErr      map[int]string
	transcriptErr map[int]string
}

func newSegmentAssets(n int) *segmentAssets {
	return &segmentAssets{
		styled:        make(map[int]image.Image, n),
		dialogue:      make(map[int][]comic.DialogueLine, n),
		styleErr:      make(map[int]string),
		transcriptErr: make(map[int]string),
	}
}

// Resolve returns the styled image of a segment, nil when it has none.
func (a *segmentAssets) Resolve(segment int) image.Image {
	return a.styled[segment]
}

// Window returns the transcript window of segment i: from its timestamp up
// to the next segment, or to the end of the video for the last one.
func Window(segments []comic.SceneSegment, i int, duration, minSpan time.Duration) comic.TimeRange {
	start := segments[i].Timestamp()
	end := duration
	if i+1 < len(segments) {
		end = segments[i+1].Timestamp()
	}
	if end < start+minSpan {
		end = start + minSpan
	}
	return comic.TimeRange{Start: start, End: end}
}

// fanOut runs one stylize and one transcript task per segment on a bounded
// pool and waits for them at a barrier. Providers that load the whole
// transcript up front are loaded once beside the pool instead. Tasks still running when the barrier
// times out are abandoned: their segments count as unstyled or silent.
func (p *Pipeline) fanOut(ctx context.Context, segments []comic.SceneSegment, duration time.Duration, provider transcript.Provider, log *zap.Logger) (*segmentAssets, error) {
	stageStart := time.Now()
	total := 2 * len(segments)
	results := make(chan taskResult, total)

	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()

	loader, preload := provider.(transcript.Loader)
	if preload {
		go p.loadTranscript(taskCtx, loader, provider, segments, duration, results)
	}

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	go func() {
		for i, seg := range segments {
			g.Go(func() error {
				results <- p.stylizeSegment(taskCtx, seg)
				return nil
			})
			if preload {
				continue
			}
			window := Window(segments, i, duration, p.cfg.Sampler.Interval())
			g.Go(func() error {
				results <- p.transcribeSegment(taskCtx, provider, seg.Index, window)
				return nil
			})
		}
	}()

	assets := newSegmentAssets(len(segments))
	barrier := time.NewTimer(p.cfg.Pipeline.BarrierTimeout)
	defer barrier.Stop()

	received := 0
collect:
	for received < total {
		select {
		case r := <-results:
			received++
			assets.apply(r)
		case <-barrier.C:
			log.Warn("barrier timeout, continuing with partial results",
				zap.Int("received", received),
				zap.Int("expected", total),
			)
			break collect
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for _, seg := range segments {
		if _, ok := assets.styled[seg.Index]; ok {
			continue
		}
		if _, ok := assets.styleErr[seg.Index]; !ok {
			assets.styleErr[seg.Index] = "stylization did not finish before the barrier"
		}
		metrics.StylizeFailuresTotal.Inc()
		log.Warn("segment left unstyled",
			zap.Int("segment", seg.Index),
			zap.String("reason", assets.styleErr[seg.Index]),
		)
	}

	log.Info("segments styled",
		zap.Int("styled", len(assets.styled)),
		zap.Int("segments", len(segments)),
		zap.Duration("elapsed", time.Since(stageStart)),
	)
	return assets, nil
}

func (a *segmentAssets) apply(r taskResult) {
	switch r.kind {
	case taskStylize:
		if r.err != nil || r.image == nil {
			a.styleErr[r.segment] = errText(r.err, "stylizer returned no image")
			return
		}
		a.styled[r.segment] = r.image
	case taskTranscript:
		if r.err != nil {
			a.transcriptErr[r.segment] = r.err.Error()
			return
		}
		a.dialogue[r.segment] = r.lines
	}
}

func errText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}

func (p *Pipeline) stylizeSegment(ctx context.Context, seg comic.SceneSegment) taskResult {
	res := taskResult{segment: seg.Index, kind: taskStylize}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	if seg.Frame.Image == nil {
		res.err = fmt.Errorf("%w: segment %d has no frame", comic.ErrStylizationFailed, seg.Index)
		return res
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.Pipeline.SegmentTimeout)
	defer cancel()

	img, err := p.deps.Stylizer.Stylize(taskCtx, seg.Frame.Image, p.cfg.Stylizer.Seed+int64(seg.Index))
	if err != nil {
		res.err = fmt.Errorf("%w: segment %d: %v", comic.ErrStylizationFailed, seg.Index, err)
		return res
	}
	res.image = img
	return res
}

// loadTranscript reads the whole transcript once, outside the worker pool
// and without a per-segment deadline, then answers every segment from it.
func (p *Pipeline) loadTranscript(ctx context.Context, loader transcript.Loader, provider transcript.Provider, segments []comic.SceneSegment, duration time.Duration, results chan<- taskResult) {
	err := loader.Load(ctx)
	for i, seg := range segments {
		if err != nil {
			results <- taskResult{
				segment: seg.Index,
				kind:    taskTranscript,
				err:     fmt.Errorf("%w: segment %d: %v", comic.ErrTranscriptUnavailable, seg.Index, err),
			}
			continue
		}
		window := Window(segments, i, duration, p.cfg.Sampler.Interval())
		results <- p.transcribeSegment(ctx, provider, seg.Index, window)
	}
}

func (p *Pipeline) transcribeSegment(ctx context.Context, provider transcript.Provider, segment int, window comic.TimeRange) taskResult {
	res := taskResult{segment: segment, kind: taskTranscript}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.Pipeline.SegmentTimeout)
	defer cancel()

	lines, err := provider.Lines(taskCtx, window)
	if err != nil {
		res.err = fmt.Errorf("%w: segment %d: %v", comic.ErrTranscriptUnavailable, segment, err)
		return res
	}
	res.lines = lines
	return res
}
