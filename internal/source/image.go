package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
	"github.com/ivlev/video2comic/internal/config"
)

// ImageSequenceSampler replays a directory of extracted frames. File i is
// treated as the probe at i/fps.
type ImageSequenceSampler struct {
	paths    []string
	interval time.Duration
	width    int
	height   int
	next     int
	decoded  int
	skipped  []Skip
	log      *zap.Logger
}

func NewImageSequenceSampler(dir string, cfg config.SamplerConfig, log *zap.Logger) (*ImageSequenceSampler, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrMediaUnreadable, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", comic.ErrMediaUnreadable, dir)
	}

	return &ImageSequenceSampler{
		paths:    paths,
		interval: cfg.Interval(),
		width:    cfg.Width,
		height:   cfg.Height,
		log:      log,
	}, nil
}

func (s *ImageSequenceSampler) Next(ctx context.Context) (comic.Frame, error) {
	for s.next < len(s.paths) {
		if err := ctx.Err(); err != nil {
			return comic.Frame{}, err
		}
		idx := s.next
		s.next++
		at := time.Duration(idx) * s.interval

		img, err := decodeFile(s.paths[idx])
		if err != nil {
			s.skipped = append(s.skipped, Skip{Index: idx, Timestamp: at, Err: err})
			s.log.Warn("frame decode skipped", zap.String("file", s.paths[idx]), zap.Error(err))
			continue
		}
		s.decoded++
		return comic.Frame{Index: idx, Timestamp: at, Image: Normalize(img, s.width, s.height)}, nil
	}
	if s.decoded == 0 {
		return comic.Frame{}, fmt.Errorf("%w: no decodable frames", comic.ErrMediaUnreadable)
	}
	return comic.Frame{}, io.EOF
}

func (s *ImageSequenceSampler) Duration() time.Duration {
	return time.Duration(len(s.paths)) * s.interval
}

func (s *ImageSequenceSampler) Skipped() []Skip { return s.skipped }

func (s *ImageSequenceSampler) Close() error { return nil }

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
