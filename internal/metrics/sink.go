package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/video2comic/internal/comic"
)

type stageMark struct {
	status comic.Status
	at     time.Time
}

// Sink turns job status transitions into stage timings, the active-job
// gauge and terminal counts. One Sink may serve many jobs.
type Sink struct {
	mu     sync.Mutex
	stages map[uuid.UUID]stageMark
}

func NewSink() *Sink {
	return &Sink{stages: make(map[uuid.UUID]stageMark)}
}

func (s *Sink) Publish(evt comic.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, running := s.stages[evt.JobID]
	if running {
		StageDuration.WithLabelValues(string(prev.status)).Observe(evt.At.Sub(prev.at).Seconds())
	}

	if evt.Status.Terminal() {
		if running {
			ActiveJobs.Dec()
			delete(s.stages, evt.JobID)
		}
		JobsTotal.WithLabelValues(string(evt.Status)).Inc()
		return
	}

	if !running {
		ActiveJobs.Inc()
	}
	s.stages[evt.JobID] = stageMark{status: evt.Status, at: evt.At}
}
