package scene

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/source"
)

func solid(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 160, 90))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func gradient(shift int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 160, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + shift) % 256)})
		}
	}
	return img
}

func framesAt1FPS(images ...image.Image) []comic.Frame {
	frames := make([]comic.Frame, len(images))
	for i, img := range images {
		frames[i] = comic.Frame{Index: i, Timestamp: time.Duration(i) * time.Second, Image: img}
	}
	return frames
}

func defaultScene() config.SceneConfig {
	return config.SceneConfig{Threshold: 0.30, DramaticThreshold: 0.65, MaxGap: 10 * time.Second}
}

func selectAll(t *testing.T, cfg config.SceneConfig, frames []comic.Frame) []comic.SceneSegment {
	t.Helper()
	sel := NewSelector(cfg, zaptest.NewLogger(t))
	sampler := source.NewMemorySampler(time.Duration(len(frames))*time.Second, frames...)
	segments, err := sel.Select(context.Background(), sampler)
	require.NoError(t, err)
	return segments
}

func TestSelectHardCut(t *testing.T) {
	var images []image.Image
	for i := 0; i < 10; i++ {
		if i < 5 {
			images = append(images, solid(10))
		} else {
			images = append(images, solid(240))
		}
	}

	for _, gap := range []time.Duration{5 * time.Second, 10 * time.Second} {
		cfg := defaultScene()
		cfg.MaxGap = gap
		segments := selectAll(t, cfg, framesAt1FPS(images...))

		require.Len(t, segments, 2, "max gap %s", gap)
		assert.Equal(t, 0, segments[0].StartFrame)
		assert.Zero(t, segments[0].DifferenceScore)
		assert.Equal(t, 5, segments[1].StartFrame)
		assert.Equal(t, 5*time.Second, segments[1].Timestamp())
		assert.Greater(t, segments[1].DifferenceScore, 0.65)
	}
}

func TestSelectSingleFrame(t *testing.T) {
	segments := selectAll(t, defaultScene(), framesAt1FPS(solid(100)))
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].Index)
}

func TestSelectMaxGap(t *testing.T) {
	var images []image.Image
	for i := 0; i < 25; i++ {
		images = append(images, solid(100))
	}
	segments := selectAll(t, defaultScene(), framesAt1FPS(images...))

	var starts []int
	for _, s := range segments {
		starts = append(starts, s.StartFrame)
	}
	assert.Equal(t, []int{0, 10, 20}, starts)
}

func TestSelectDeterministic(t *testing.T) {
	var images []image.Image
	for i := 0; i < 12; i++ {
		images = append(images, gradient(i*23))
	}
	frames := framesAt1FPS(images...)

	first := selectAll(t, defaultScene(), frames)
	second := selectAll(t, defaultScene(), frames)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].StartFrame, second[i].StartFrame)
		assert.Equal(t, first[i].DifferenceScore, second[i].DifferenceScore)
	}
	for i := 1; i < len(first); i++ {
		assert.Greater(t, first[i].Timestamp(), first[i-1].Timestamp())
		assert.Equal(t, i, first[i].Index)
	}
}

func TestSelectEmpty(t *testing.T) {
	sel := NewSelector(defaultScene(), zaptest.NewLogger(t))
	_, err := sel.Select(context.Background(), source.NewMemorySampler(0))
	assert.ErrorIs(t, err, comic.ErrMediaUnreadable)
}

func TestDifferenceBounds(t *testing.T) {
	assert.Zero(t, Difference(solid(50), solid(50)))
	assert.InDelta(t, 1.0, Difference(solid(0), solid(255)), 0.01)
	d := Difference(gradient(0), gradient(64))
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 1.0)
}
