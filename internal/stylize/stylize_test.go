package stylize

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 7), B: 90, A: 0xff})
		}
	}
	// a hard-edged subject so ink lines appear
	for y := 10; y < 26; y++ {
		for x := 20; x < 44; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 0xff})
		}
	}
	return img
}

func TestComicFilterDeterministic(t *testing.T) {
	f := NewComicFilter(4, 0.6)
	a, err := f.Stylize(context.Background(), testFrame(), 7)
	require.NoError(t, err)
	b, err := f.Stylize(context.Background(), testFrame(), 7)
	require.NoError(t, err)

	assert.Equal(t, testFrame().Bounds(), a.Bounds())
	assert.Equal(t, a.(*image.RGBA).Pix, b.(*image.RGBA).Pix)

	// posterized to 4 levels per channel
	r, _, _, _ := a.At(2, 2).RGBA()
	assert.Contains(t, []uint32{0, 85, 170, 255}, r>>8)
}

func TestComicFilterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewComicFilter(4, 0.6).Stylize(ctx, testFrame(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateFilter(t *testing.T) {
	chain := GenerateFilter(FilterParams{Width: 640, Height: 360, Levels: 4, Seed: 42})
	assert.Contains(t, chain, "lutrgb=r='trunc(val/64)*64'")
	assert.Contains(t, chain, "all_seed=42")
	assert.True(t, strings.HasSuffix(chain, "scale=640:360,format=rgba"))

	custom := GenerateFilter(FilterParams{Custom: "edgedetect=mode=colormix"})
	assert.Equal(t, "edgedetect=mode=colormix,format=rgba", custom)
}

func TestWriteRawRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, src))
	assert.Equal(t, 2*1*4, buf.Len())
	assert.Equal(t, []byte{1, 2, 3, 255}, buf.Bytes()[:4])
}

func TestRemote(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "11", r.Header.Get(SeedHeader))
		in, err := png.Decode(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, in)
	}))
	defer srv.Close()

	remote := newRemote(srv.URL, 2, time.Millisecond, zaptest.NewLogger(t))

	out, err := remote.Stylize(context.Background(), testFrame(), 11)
	require.NoError(t, err)
	assert.Equal(t, testFrame().Bounds(), out.Bounds())
	assert.EqualValues(t, 2, calls.Load())
}

func TestRemoteClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad frame", http.StatusBadRequest)
	}))
	defer srv.Close()

	remote := newRemote(srv.URL, 3, time.Millisecond, zaptest.NewLogger(t))

	_, err := remote.Stylize(context.Background(), testFrame(), 1)
	assert.ErrorIs(t, err, comic.ErrStylizationFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRemoteWithoutRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	remote := newRemote(srv.URL, 0, time.Millisecond, zaptest.NewLogger(t))

	_, err := remote.Stylize(context.Background(), testFrame(), 1)
	assert.ErrorIs(t, err, comic.ErrStylizationFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRemoteGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	remote := newRemote(srv.URL, 2, time.Millisecond, zaptest.NewLogger(t))

	_, err := remote.Stylize(context.Background(), testFrame(), 1)
	assert.ErrorIs(t, err, comic.ErrStylizationFailed)
	assert.EqualValues(t, 3, calls.Load())
}

func TestThrottle(t *testing.T) {
	var calls int
	inner := Func(func(_ context.Context, img image.Image, _ int64) (image.Image, error) {
		calls++
		return img, nil
	})
	s := Throttle(inner, time.Hour, 1)

	_, err := s.Stylize(context.Background(), testFrame(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Stylize(ctx, testFrame(), 0)
	assert.ErrorIs(t, err, comic.ErrStylizationFailed)
	assert.Equal(t, 1, calls)
}

func TestNew(t *testing.T) {
	log := zaptest.NewLogger(t)
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"filter", false},
		{"ffmpeg", false},
		{"remote", false},
		{"none", false},
		{"gan", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default().Stylizer
			cfg.Backend = tt.backend
			cfg.RemoteURL = "http://localhost:0"
			s, err := New(cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}

	out, err := Identity.Stylize(context.Background(), testFrame(), 0)
	require.NoError(t, err)
	assert.Equal(t, testFrame().Pix, out.(*image.RGBA).Pix)
}
