package scene

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/source"
)

// Selector keeps one representative frame per scene. It compares each
// candidate with the last emitted frame, so slow pans still emit once the
// drift exceeds the threshold.
type Selector struct {
	threshold float64
	maxGap    time.Duration
	log       *zap.Logger

	last     *signature
	lastTime time.Duration
	emitted  int
}

func NewSelector(cfg config.SceneConfig, log *zap.Logger) *Selector {
	return &Selector{
		threshold: cfg.Threshold,
		maxGap:    cfg.MaxGap,
		log:       log,
	}
}

// Offer considers the next frame in timestamp order and reports whether it
// starts a new segment. The first frame always does, with score 0.
func (s *Selector) Offer(frame comic.Frame) (comic.SceneSegment, bool) {
	sig := signatureOf(frame.Image)

	if s.last == nil {
		return s.emit(frame, sig, 0), true
	}
	if frame.Timestamp <= s.lastTime {
		s.log.Debug("out-of-order frame ignored", zap.Int("probe", frame.Index), zap.Duration("at", frame.Timestamp))
		return comic.SceneSegment{}, false
	}

	score := distance(*s.last, sig)
	if score > s.threshold || (s.maxGap > 0 && frame.Timestamp-s.lastTime >= s.maxGap) {
		return s.emit(frame, sig, score), true
	}
	return comic.SceneSegment{}, false
}

func (s *Selector) emit(frame comic.Frame, sig signature, score float64) comic.SceneSegment {
	seg := comic.SceneSegment{
		Index:           s.emitted,
		StartFrame:      frame.Index,
		Frame:           frame,
		DifferenceScore: score,
	}
	s.last = &sig
	s.lastTime = frame.Timestamp
	s.emitted++
	return seg
}

// Select drains the sampler in a single pass.
func (s *Selector) Select(ctx context.Context, sampler source.Sampler) ([]comic.SceneSegment, error) {
	var segments []comic.SceneSegment
	for {
		frame, err := sampler.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sample frames: %w", err)
		}
		if seg, ok := s.Offer(frame); ok {
			s.log.Debug("scene selected",
				zap.Int("segment", seg.Index),
				zap.Duration("at", seg.Timestamp()),
				zap.Float64("score", seg.DifferenceScore),
			)
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no frames", comic.ErrMediaUnreadable)
	}
	return segments, nil
}
