package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/source"
	"github.com/ivlev/video2comic/internal/storage"
	"github.com/ivlev/video2comic/internal/stylize"
	"github.com/ivlev/video2comic/internal/transcript"
)

func grayFrame(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 36))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// fourScenes yields one probe per second; every probe differs enough from
// the previous one to start a scene, but none is dramatic.
func fourScenes() source.Opener {
	return source.OpenerFunc(func(context.Context, string) (source.Sampler, error) {
		var frames []comic.Frame
		for i, v := range []uint8{20, 60, 100, 140} {
			frames = append(frames, comic.Frame{Index: i, Timestamp: time.Duration(i) * time.Second, Image: grayFrame(v)})
		}
		return source.NewMemorySampler(4*time.Second, frames...), nil
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.Layout.PageWidth = 400
	cfg.Layout.PageHeight = 566
	cfg.Layout.Gutter = 10
	cfg.Stylizer.Backend = "none"
	cfg.Bubble.Detector = "none"
	return cfg
}

func noTranscript(string) (transcript.Provider, error) { return transcript.None, nil }

func newTestPipeline(t *testing.T, cfg config.Config, deps Deps) (*Pipeline, *storage.Memory) {
	t.Helper()
	sink := storage.NewMemory()
	if deps.Opener == nil {
		deps.Opener = fourScenes()
	}
	if deps.Transcripts == nil {
		deps.Transcripts = noTranscript
	}
	deps.Sink = sink
	p, err := NewPipeline(cfg, deps, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p, sink
}

func TestRunProducesComic(t *testing.T) {
	p, sink := newTestPipeline(t, testConfig(), Deps{})
	job := comic.NewComicJob("clip.mp4")
	events := job.Subscribe()

	res, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, comic.StatusDone, job.Status())
	require.Len(t, res.Segments, 4)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, comic.TemplateGrid2x2, res.Pages[0].Template)
	assert.False(t, res.Pages[0].Degraded)
	assert.Len(t, job.Pages(), 1)

	var seen []comic.Status
	for evt := range events {
		seen = append(seen, evt.Status)
	}
	assert.Equal(t, []comic.Status{
		comic.StatusExtracting, comic.StatusStyling, comic.StatusLayingOut, comic.StatusRendering, comic.StatusDone,
	}, seen)

	prefix := job.ID.String() + "/"
	for _, name := range []string{"page-001.png", "storyboard.yaml", "comic.pdf", "comic.zip"} {
		_, ok := sink.Get(prefix + name)
		assert.True(t, ok, "missing %s", name)
		assert.Contains(t, res.Outputs, name)
	}
}

func TestRunOneStylizationFails(t *testing.T) {
	cfg := testConfig()
	broken := cfg.Stylizer.Seed + 2
	styler := stylize.Func(func(_ context.Context, img image.Image, seed int64) (image.Image, error) {
		if seed == broken {
			return nil, errors.New("model exploded")
		}
		return img, nil
	})
	p, _ := newTestPipeline(t, cfg, Deps{Stylizer: styler})
	job := comic.NewComicJob("clip.mp4")

	res, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, comic.StatusDone, job.Status())

	require.Len(t, res.Pages, 1)
	page := res.Pages[0]
	assert.True(t, page.Degraded)
	require.Len(t, page.Annotations, 1)
	assert.Equal(t, comic.AnnotationRenderDegraded, page.Annotations[0].Kind)

	placeholders := 0
	for _, panel := range page.Panels {
		if panel.Placeholder {
			placeholders++
			assert.Equal(t, 2, panel.SegmentIndex)
			require.NotEmpty(t, panel.Annotations)
			assert.Equal(t, comic.AnnotationStylizationFailed, panel.Annotations[0].Kind)
			assert.Contains(t, panel.Annotations[0].Detail, "model exploded")
		}
	}
	assert.Equal(t, 1, placeholders)

	issues := res.Storyboard.Issues()
	assert.NotEmpty(t, issues)
}

func TestRunDialogue(t *testing.T) {
	lines := transcript.Static{
		{Text: "Where were you?", Range: comic.TimeRange{Start: 1100 * time.Millisecond, End: 1800 * time.Millisecond}},
	}
	deps := Deps{Transcripts: func(string) (transcript.Provider, error) { return lines, nil }}
	p, _ := newTestPipeline(t, testConfig(), deps)

	res, err := p.Run(context.Background(), comic.NewComicJob("clip.mp4"))
	require.NoError(t, err)

	for _, panel := range res.Pages[0].Panels {
		if panel.SegmentIndex != 1 {
			assert.Empty(t, panel.Bubbles, "segment %d", panel.SegmentIndex)
			continue
		}
		require.Len(t, panel.Bubbles, 1)
		b := panel.Bubbles[0]
		assert.Equal(t, "Where were you?", b.Text)
		assert.Equal(t, comic.BubbleCaption, b.Style, "no salient region without a detector")
		assert.True(t, b.Rect.In(image.Rectangle{Max: panel.Size()}))
	}
}

func TestRunTranscriptUnavailable(t *testing.T) {
	failing := transcript.Func(func(context.Context, comic.TimeRange) ([]comic.DialogueLine, error) {
		return nil, errors.New("no audio track")
	})
	deps := Deps{Transcripts: func(string) (transcript.Provider, error) { return failing, nil }}
	p, _ := newTestPipeline(t, testConfig(), deps)

	res, err := p.Run(context.Background(), comic.NewComicJob("clip.mp4"))
	require.NoError(t, err)
	for _, panel := range res.Pages[0].Panels {
		assert.Empty(t, panel.Bubbles)
		require.Len(t, panel.Annotations, 1)
		assert.Equal(t, comic.AnnotationTranscriptUnavailable, panel.Annotations[0].Kind)
	}
}

func TestRunSlowWhisperTranscribesOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	binary := filepath.Join(dir, "whisper")
	counter := filepath.Join(dir, "runs")
	script := fmt.Sprintf(`#!/bin/sh
echo run >> %q
sleep 1
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output_dir" ]; then out="$2"; fi
  shift
done
printf '1\n00:00:00,000 --> 00:00:04,000\nHello there.\n' > "$out/clip.srt"
`, counter)
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))

	cfg := testConfig()
	cfg.Pipeline.SegmentTimeout = 300 * time.Millisecond
	deps := Deps{Transcripts: func(video string) (transcript.Provider, error) {
		return transcript.NewWhisper(binary, "", video, zaptest.NewLogger(t)), nil
	}}
	p, _ := newTestPipeline(t, cfg, deps)

	res, err := p.Run(context.Background(), comic.NewComicJob("/videos/clip.mp4"))
	require.NoError(t, err)

	runs, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(runs), "run"))

	require.Len(t, res.Pages, 1)
	for _, panel := range res.Pages[0].Panels {
		assert.Empty(t, panel.Annotations, "segment %d", panel.SegmentIndex)
		require.Len(t, panel.Bubbles, 1, "segment %d", panel.SegmentIndex)
		assert.Equal(t, "Hello there.", panel.Bubbles[0].Text)
	}
}

func TestRunBarrierTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.BarrierTimeout = 100 * time.Millisecond
	stuck := cfg.Stylizer.Seed
	styler := stylize.Func(func(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
		if seed == stuck {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return img, nil
	})
	p, _ := newTestPipeline(t, cfg, Deps{Stylizer: styler})
	job := comic.NewComicJob("clip.mp4")

	res, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, comic.StatusDone, job.Status())
	assert.True(t, res.Pages[0].Degraded)
	assert.True(t, res.Pages[0].Panels[0].Placeholder)
}

func TestRunCancelled(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig(), Deps{})
	job := comic.NewComicJob("clip.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, job)
	assert.ErrorIs(t, err, comic.ErrCancelled)
	assert.Equal(t, comic.StatusFailed, job.Status())
	assert.Equal(t, "cancelled", job.Reason())
	assert.Empty(t, job.Pages())
}

func TestRunCancelledWhileStyling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	styler := stylize.Func(func(ctx context.Context, img image.Image, _ int64) (image.Image, error) {
		cancel()
		return nil, ctx.Err()
	})
	p, sink := newTestPipeline(t, testConfig(), Deps{Stylizer: styler})
	job := comic.NewComicJob("clip.mp4")

	_, err := p.Run(ctx, job)
	assert.ErrorIs(t, err, comic.ErrCancelled)
	assert.Equal(t, "cancelled", job.Reason())
	assert.Empty(t, sink.Names())
}

func TestRunUnreadableMedia(t *testing.T) {
	empty := source.OpenerFunc(func(context.Context, string) (source.Sampler, error) {
		return source.NewMemorySampler(time.Second), nil
	})
	p, _ := newTestPipeline(t, testConfig(), Deps{Opener: empty})
	job := comic.NewComicJob("broken.mp4")

	_, err := p.Run(context.Background(), job)
	assert.ErrorIs(t, err, comic.ErrMediaUnreadable)
	assert.Equal(t, comic.StatusFailed, job.Status())
	assert.True(t, strings.Contains(job.Reason(), comic.ErrMediaUnreadable.Error()))
}

func TestScenes(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig(), Deps{})
	report, err := p.Scenes(context.Background(), "clip.mp4")
	require.NoError(t, err)
	require.Len(t, report.Scenes, 4)
	assert.Equal(t, 0.0, report.Scenes[0].Score)
	for _, s := range report.Scenes {
		assert.False(t, s.Dramatic)
	}
}

func TestWindow(t *testing.T) {
	segs := []comic.SceneSegment{
		{Index: 0, Frame: comic.Frame{Timestamp: 0}},
		{Index: 1, Frame: comic.Frame{Timestamp: 5 * time.Second}},
	}
	tests := []struct {
		name     string
		i        int
		duration time.Duration
		want     comic.TimeRange
	}{
		{"until next segment", 0, 10 * time.Second, comic.TimeRange{Start: 0, End: 5 * time.Second}},
		{"last runs to the end", 1, 10 * time.Second, comic.TimeRange{Start: 5 * time.Second, End: 10 * time.Second}},
		{"unknown duration", 1, 0, comic.TimeRange{Start: 5 * time.Second, End: 6 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(segs, tt.i, tt.duration, time.Second))
		})
	}
}

func TestPanelRegion(t *testing.T) {
	rect := func(x0, y0, x1, y1 int) *image.Rectangle {
		r := image.Rect(x0, y0, x1, y1)
		return &r
	}

	assert.Nil(t, panelRegion(nil, image.Pt(100, 100), image.Pt(100, 100), image.Pt(50, 100)))
	assert.Nil(t, panelRegion(rect(0, 0, 20, 20), image.Pt(100, 100), image.Pt(100, 100), image.Pt(50, 100)), "cropped away")
	assert.Equal(t, rect(5, 10, 35, 40), panelRegion(rect(30, 10, 60, 40), image.Pt(100, 100), image.Pt(100, 100), image.Pt(50, 100)))
	assert.Equal(t, rect(20, 20, 40, 40), panelRegion(rect(10, 10, 20, 20), image.Pt(100, 50), image.Pt(200, 100), image.Pt(200, 100)))
}
