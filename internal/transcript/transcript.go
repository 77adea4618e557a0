package transcript

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

// Provider returns the dialogue lines overlapping a time range, ordered by
// start time. An empty result is not an error.
type Provider interface {
	Lines(ctx context.Context, r comic.TimeRange) ([]comic.DialogueLine, error)
}

// Loader is implemented by providers that read the whole transcript up
// front. Once Load succeeds, Lines only filters the loaded result.
type Loader interface {
	Load(ctx context.Context) error
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, r comic.TimeRange) ([]comic.DialogueLine, error)

func (f Func) Lines(ctx context.Context, r comic.TimeRange) ([]comic.DialogueLine, error) {
	return f(ctx, r)
}

// None is the provider for videos without dialogue.
var None = Func(func(context.Context, comic.TimeRange) ([]comic.DialogueLine, error) {
	return nil, nil
})

// Static serves a fixed transcript.
type Static []comic.DialogueLine

func (s Static) Lines(_ context.Context, r comic.TimeRange) ([]comic.DialogueLine, error) {
	return overlapping(s, r), nil
}

func overlapping(lines []comic.DialogueLine, r comic.TimeRange) []comic.DialogueLine {
	var out []comic.DialogueLine
	for _, l := range lines {
		if l.Range.Overlaps(r) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// New builds the provider selected by cfg.Backend for the given video.
func New(cfg config.TranscriptConfig, videoPath string, log *zap.Logger) (Provider, error) {
	switch cfg.Backend {
	case "none", "":
		return None, nil
	case "subtitles":
		return NewSubtitles(cfg.SubtitlePath), nil
	case "whisper":
		return NewWhisper(cfg.WhisperBinary, cfg.WhisperModel, videoPath, log), nil
	default:
		return nil, fmt.Errorf("unknown transcript backend: %s", cfg.Backend)
	}
}
