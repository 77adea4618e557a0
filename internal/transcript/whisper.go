package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/video2comic/internal/comic"
)

// Whisper transcribes the whole video with the whisper CLI once and answers
// every window query from the cached result.
type Whisper struct {
	binary string
	model  string
	video  string
	log    *zap.Logger

	group singleflight.Group

	mu     sync.Mutex
	loaded bool
	lines  []comic.DialogueLine
	err    error
}

func NewWhisper(binary, model, video string, log *zap.Logger) *Whisper {
	return &Whisper{binary: binary, model: model, video: video, log: log}
}

// Load runs whisper unless a finished result is cached. Concurrent callers
// share one run, bounded by the context of the caller that started it; a
// caller whose own context ends stops waiting without killing the run. A run
// cut short by its context is not cached.
func (w *Whisper) Load(ctx context.Context) error {
	if _, ok, err := w.cached(); ok {
		return err
	}
	ch := w.group.DoChan(w.video, func() (any, error) {
		if lines, ok, err := w.cached(); ok {
			return lines, err
		}
		lines, err := w.transcribe(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		w.mu.Lock()
		w.loaded, w.lines, w.err = true, lines, err
		w.mu.Unlock()
		return lines, err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for whisper: %v", comic.ErrTranscriptUnavailable, ctx.Err())
	}
}

func (w *Whisper) Lines(ctx context.Context, r comic.TimeRange) ([]comic.DialogueLine, error) {
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	lines, _, _ := w.cached()
	return overlapping(lines, r), nil
}

func (w *Whisper) cached() ([]comic.DialogueLine, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines, w.loaded, w.err
}

func (w *Whisper) transcribe(ctx context.Context) ([]comic.DialogueLine, error) {
	dir, err := os.MkdirTemp("", "video2comic-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrTranscriptUnavailable, err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, w.binary, whisperArgs(w.video, w.model, dir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	w.log.Info("transcribing", zap.String("video", w.video), zap.String("model", w.model))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: whisper: %v, output: %s", comic.ErrTranscriptUnavailable, err, lastLine(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(w.video), filepath.Ext(w.video))
	f, err := os.Open(filepath.Join(dir, base+".srt"))
	if err != nil {
		return nil, fmt.Errorf("%w: whisper produced no subtitles: %v", comic.ErrTranscriptUnavailable, err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrTranscriptUnavailable, err)
	}
	w.log.Info("transcript ready", zap.Int("lines", len(lines)))
	return lines, nil
}

func whisperArgs(video, model, outDir string) []string {
	args := []string{video, "--output_format", "srt", "--output_dir", outDir, "--verbose", "False"}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
