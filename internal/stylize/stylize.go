package stylize

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

// Stylizer turns a frame into comic artwork. Output must depend only on the
// input image and the seed.
type Stylizer interface {
	Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error)
}

// Func adapts a function to Stylizer.
type Func func(ctx context.Context, img image.Image, seed int64) (image.Image, error)

func (f Func) Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
	return f(ctx, img, seed)
}

// Identity returns frames unchanged.
var Identity = Func(func(_ context.Context, img image.Image, _ int64) (image.Image, error) {
	return img, nil
})

// New builds the stylizer selected by cfg.Backend.
func New(cfg config.StylizerConfig, log *zap.Logger) (Stylizer, error) {
	var s Stylizer
	switch cfg.Backend {
	case "filter", "":
		s = NewComicFilter(cfg.Levels, cfg.EdgeStrength)
	case "ffmpeg":
		s = NewFFmpegStylizer(FilterParams{Levels: cfg.Levels, Custom: cfg.FFmpegFilter}, log)
	case "remote":
		s = NewRemote(cfg.RemoteURL, cfg.Retries, log)
	case "none":
		s = Identity
	default:
		return nil, fmt.Errorf("unknown stylizer backend: %s", cfg.Backend)
	}
	if cfg.RateInterval > 0 {
		s = Throttle(s, cfg.RateInterval, cfg.RateBurst)
	}
	return s, nil
}

type throttled struct {
	next    Stylizer
	limiter *rate.Limiter
}

// Throttle limits calls to one per interval with the given burst.
func Throttle(s Stylizer, interval time.Duration, burst int) Stylizer {
	if burst < 1 {
		burst = 1
	}
	return &throttled{next: s, limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (t *throttled) Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", comic.ErrStylizationFailed, err)
	}
	return t.next.Stylize(ctx, img, seed)
}
