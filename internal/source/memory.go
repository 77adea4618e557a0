package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ivlev/video2comic/internal/comic"
)

// MemorySampler serves frames that are already decoded.
type MemorySampler struct {
	frames   []comic.Frame
	duration time.Duration
	next     int
}

// NewMemorySampler returns a sampler over frames, which must be in
// timestamp order.
func NewMemorySampler(duration time.Duration, frames ...comic.Frame) *MemorySampler {
	return &MemorySampler{frames: frames, duration: duration}
}

func (s *MemorySampler) Next(ctx context.Context) (comic.Frame, error) {
	if err := ctx.Err(); err != nil {
		return comic.Frame{}, err
	}
	if len(s.frames) == 0 {
		return comic.Frame{}, fmt.Errorf("%w: empty frame set", comic.ErrMediaUnreadable)
	}
	if s.next >= len(s.frames) {
		return comic.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *MemorySampler) Duration() time.Duration { return s.duration }

func (s *MemorySampler) Skipped() []Skip { return nil }

func (s *MemorySampler) Close() error { return nil }

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Sampler, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Sampler, error) {
	return f(ctx, path)
}
