package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/system"
)

type grabFunc func(ctx context.Context, path string, at time.Duration, w, h int) ([]byte, error)

// FFmpegSampler decodes one frame per probe point with a separate ffmpeg
// seek, so a corrupt region costs one probe, not the rest of the video.
type FFmpegSampler struct {
	path     string
	width    int
	height   int
	duration time.Duration
	points   []time.Duration
	next     int
	decoded  int
	skipped  []Skip
	grab     grabFunc
	log      *zap.Logger
}

func NewFFmpegSampler(ctx context.Context, path string, cfg config.SamplerConfig, log *zap.Logger) (*FFmpegSampler, error) {
	info, err := system.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrMediaUnreadable, err)
	}
	return newFFmpegSampler(path, info.Duration, cfg, grabFrame, log), nil
}

func newFFmpegSampler(path string, duration time.Duration, cfg config.SamplerConfig, grab grabFunc, log *zap.Logger) *FFmpegSampler {
	return &FFmpegSampler{
		path:     path,
		width:    cfg.Width,
		height:   cfg.Height,
		duration: duration,
		points:   ProbePoints(duration, cfg.Interval()),
		grab:     grab,
		log:      log,
	}
}

func (s *FFmpegSampler) Next(ctx context.Context) (comic.Frame, error) {
	for s.next < len(s.points) {
		if err := ctx.Err(); err != nil {
			return comic.Frame{}, err
		}
		idx, at := s.next, s.points[s.next]
		s.next++

		buf, err := s.grab(ctx, s.path, at, s.width, s.height)
		var img *image.RGBA
		if err == nil {
			img, err = rawToRGBA(buf, s.width, s.height)
		}
		if err != nil {
			if ctx.Err() != nil {
				return comic.Frame{}, ctx.Err()
			}
			s.skip(idx, at, err)
			continue
		}
		s.decoded++
		return comic.Frame{Index: idx, Timestamp: at, Image: img}, nil
	}
	if s.decoded == 0 {
		return comic.Frame{}, fmt.Errorf("%w: no decodable frames in %s", comic.ErrMediaUnreadable, s.path)
	}
	return comic.Frame{}, io.EOF
}

func (s *FFmpegSampler) skip(idx int, at time.Duration, err error) {
	sk := Skip{Index: idx, Timestamp: at, Err: err}
	s.skipped = append(s.skipped, sk)
	s.log.Warn("frame decode skipped",
		zap.String("video", s.path),
		zap.Int("probe", idx),
		zap.Duration("at", at),
		zap.Error(err),
	)
}

func (s *FFmpegSampler) Duration() time.Duration { return s.duration }

func (s *FFmpegSampler) Skipped() []Skip { return s.skipped }

func (s *FFmpegSampler) Close() error { return nil }

func grabFrame(ctx context.Context, path string, at time.Duration, w, h int) ([]byte, error) {
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, w, h)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", vf,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w, output: %s", err, stderr.String())
	}
	return out, nil
}
