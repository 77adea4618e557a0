package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/video2comic/internal/analyzer"
	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/metrics"
)

func (p *Pipeline) layout(ctx context.Context, segments []comic.SceneSegment, assets *segmentAssets, log *zap.Logger) ([]comic.Page, error) {
	stageStart := time.Now()
	pages, err := p.director.Paginate(segments)
	if err != nil {
		return nil, err
	}

	bySegment := make(map[int]int, len(segments))
	for i, s := range segments {
		bySegment[s.Index] = i
	}

	lowConfidence := 0
	for pi := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for ci := range pages[pi].Panels {
			panel := &pages[pi].Panels[ci]
			idx := panel.SegmentIndex

			if reason, failed := assets.styleErr[idx]; failed {
				panel.Placeholder = true
				panel.Annotate(comic.AnnotationStylizationFailed, reason)
			}
			if reason, failed := assets.transcriptErr[idx]; failed {
				panel.Annotate(comic.AnnotationTranscriptUnavailable, reason)
			}

			frame := &segments[bySegment[idx]].Frame
			salient, err := analyzer.Salient(p.deps.Detector, frame.Image)
			if err != nil {
				log.Debug("salient detection failed", zap.Int("segment", idx), zap.Error(err))
				salient = nil
			}
			frame.Salient = salient
			region := panelRegion(salient, frame.Size(), artworkSize(assets.Resolve(idx), frame.Size()), panel.Size())

			panel.Bubbles = p.placer.Place(panel.Size(), region, assets.dialogue[idx])
			flagged := 0
			for _, b := range panel.Bubbles {
				if b.LowConfidence {
					flagged++
				}
			}
			if flagged > 0 {
				lowConfidence += flagged
				panel.Annotate(comic.AnnotationBubbleLowConfidence,
					fmt.Sprintf("%v: %d of %d bubbles overlap the subject", comic.ErrBubbleLowConfidence, flagged, len(panel.Bubbles)))
			}
		}
	}
	metrics.LowConfidenceBubblesTotal.Add(float64(lowConfidence))

	log.Info("pages laid out",
		zap.Int("pages", len(pages)),
		zap.Int("low_confidence_bubbles", lowConfidence),
		zap.Duration("elapsed", time.Since(stageStart)),
	)
	return pages, nil
}

func artworkSize(img image.Image, fallback image.Point) image.Point {
	if img == nil {
		return fallback
	}
	return img.Bounds().Size()
}

// panelRegion maps a salient rectangle found on the raw frame into panel
// coordinates: first onto the artwork (stylizers may resize), then through
// the same cover fit the renderer uses. nil when nothing stays visible.
func panelRegion(salient *image.Rectangle, frame, artwork, cell image.Point) *image.Rectangle {
	if salient == nil || frame.X <= 0 || frame.Y <= 0 {
		return nil
	}
	r := *salient
	if artwork != frame {
		r = image.Rect(
			r.Min.X*artwork.X/frame.X, r.Min.Y*artwork.Y/frame.Y,
			r.Max.X*artwork.X/frame.X, r.Max.Y*artwork.Y/frame.Y,
		)
	}
	mapped, ok := comic.Cover(artwork, cell).Rect(r)
	if !ok {
		return nil
	}
	return &mapped
}

// render draws every page in parallel and returns the PNGs in page order.
func (p *Pipeline) render(ctx context.Context, pages []comic.Page, assets *segmentAssets) ([][]byte, error) {
	images := make([][]byte, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, degraded, err := p.renderer.RenderPNG(pages[i], assets.Resolve)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			if degraded {
				placeholders := 0
				for _, panel := range pages[i].Panels {
					if panel.Placeholder || assets.Resolve(panel.SegmentIndex) == nil {
						placeholders++
					}
				}
				pages[i].Degraded = true
				pages[i].Annotate(comic.AnnotationRenderDegraded,
					fmt.Sprintf("%v: %d of %d panels are placeholders", comic.ErrRenderDegraded, placeholders, len(pages[i].Panels)))
				metrics.DegradedPanelsTotal.Add(float64(placeholders))
			}
			images[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}
