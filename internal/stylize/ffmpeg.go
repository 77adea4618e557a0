package stylize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
)

// FilterParams drive the generated ffmpeg filter chain.
type FilterParams struct {
	Width  int
	Height int
	Levels int
	Seed   int64
	Custom string // Replaces the generated chain when set
}

// GenerateFilter builds a cel-shading chain: contrast/saturation boost,
// per-channel posterize, edge sharpening and seeded grain.
func GenerateFilter(p FilterParams) string {
	if p.Custom != "" {
		return p.Custom + ",format=rgba"
	}
	levels := p.Levels
	if levels < 2 {
		levels = 5
	}
	step := 256 / levels
	posterize := fmt.Sprintf("trunc(val/%d)*%d", step, step)

	return strings.Join([]string{
		"eq=contrast=1.25:saturation=1.4",
		fmt.Sprintf("lutrgb=r='%s':g='%s':b='%s'", posterize, posterize, posterize),
		"unsharp=5:5:1.2:5:5:0.0",
		fmt.Sprintf("noise=alls=4:all_seed=%d", uint32(p.Seed)),
		fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"format=rgba",
	}, ",")
}

// FFmpegStylizer pipes the frame through ffmpeg as raw RGBA in both directions.
type FFmpegStylizer struct {
	params FilterParams
	log    *zap.Logger
}

func NewFFmpegStylizer(params FilterParams, log *zap.Logger) *FFmpegStylizer {
	return &FFmpegStylizer{params: params, log: log}
}

func (s *FFmpegStylizer) Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	p := s.params
	p.Width, p.Height, p.Seed = w, h, seed

	cmd := exec.CommandContext(ctx, "ffmpeg", buildArgs(w, h, GenerateFilter(p))...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", comic.ErrStylizationFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg start: %v", comic.ErrStylizationFailed, err)
	}

	if err := writeRawRGBA(stdin, img); err != nil {
		stdin.Close()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: write raw: %v", comic.ErrStylizationFailed, err)
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		s.log.Debug("ffmpeg stylize failed", zap.String("stderr", stderr.String()))
		return nil, fmt.Errorf("%w: ffmpeg: %v", comic.ErrStylizationFailed, err)
	}

	if stdout.Len() != w*h*4 {
		return nil, fmt.Errorf("%w: ffmpeg returned %d bytes, want %d", comic.ErrStylizationFailed, stdout.Len(), w*h*4)
	}
	return &image.RGBA{Pix: stdout.Bytes(), Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func buildArgs(w, h int, filter string) []string {
	return []string{
		"-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-i", "-",
		"-vf", filter,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
