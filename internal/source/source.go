package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

// Sampler yields frames of one video in timestamp order. Next returns io.EOF
// after the last frame. A sampler is consumed once.
type Sampler interface {
	Next(ctx context.Context) (comic.Frame, error)
	Duration() time.Duration
	Skipped() []Skip
	Close() error
}

// Opener creates a sampler for a video path.
type Opener interface {
	Open(ctx context.Context, path string) (Sampler, error)
}

// Skip records a probe point that could not be decoded.
type Skip struct {
	Index     int
	Timestamp time.Duration
	Err       error
}

func (s Skip) Error() string {
	return fmt.Sprintf("probe %d at %s: %v", s.Index, s.Timestamp, s.Err)
}

func (s Skip) Unwrap() []error {
	return []error{comic.ErrFrameDecodeSkipped, s.Err}
}

// DefaultOpener picks the image-sequence sampler for directories and the
// ffmpeg sampler for everything else.
type DefaultOpener struct {
	Config config.SamplerConfig
	Log    *zap.Logger
}

func (o DefaultOpener) Open(ctx context.Context, path string) (Sampler, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrMediaUnreadable, err)
	}
	if fi.IsDir() {
		return NewImageSequenceSampler(path, o.Config, o.Log)
	}
	return NewFFmpegSampler(ctx, path, o.Config, o.Log)
}

// ProbePoints lists 0, interval, 2*interval, ... strictly below duration.
// A video shorter than one interval still gets the point at 0.
func ProbePoints(duration, interval time.Duration) []time.Duration {
	if interval <= 0 {
		interval = time.Second
	}
	points := []time.Duration{0}
	for t := interval; t < duration; t += interval {
		points = append(points, t)
	}
	return points
}

// Normalize letterboxes img into a w x h canvas, keeping the aspect ratio.
func Normalize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return dst
	}
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	scale := min(float64(w)/float64(src.Dx()), float64(h)/float64(src.Dy()))
	fw := int(float64(src.Dx())*scale + 0.5)
	fh := int(float64(src.Dy())*scale + 0.5)
	x0 := (w - fw) / 2
	y0 := (h - fh) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+fw, y0+fh), img, src, draw.Src, nil)
	return dst
}

func rawToRGBA(buf []byte, w, h int) (*image.RGBA, error) {
	if len(buf) != w*h*4 {
		return nil, fmt.Errorf("short frame: got %d bytes, want %d: %w", len(buf), w*h*4, io.ErrUnexpectedEOF)
	}
	return &image.RGBA{Pix: buf, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}
