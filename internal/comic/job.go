package comic

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusStyling    Status = "styling"
	StatusLayingOut  Status = "laying-out"
	StatusRendering  Status = "rendering"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusExtracting: 1,
	StatusStyling:    2,
	StatusLayingOut:  3,
	StatusRendering:  4,
	StatusDone:       5,
	StatusFailed:     5,
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// StatusEvent is published on every status transition.
type StatusEvent struct {
	JobID  uuid.UUID
	Status Status
	Reason string
	At     time.Time
}

// StatusSink receives status transitions. Implementations must not block.
type StatusSink interface {
	Publish(evt StatusEvent)
}

// ComicJob tracks one video-to-comic conversion. Status is written by the
// pipeline goroutine only; any goroutine may read it.
type ComicJob struct {
	ID        uuid.UUID
	Source    string
	CreatedAt time.Time

	mu          sync.RWMutex
	status      Status
	reason      string
	updatedAt   time.Time
	pages       []Page
	annotations []Annotation
	subscribers []chan StatusEvent
	sinks       []StatusSink
}

func NewComicJob(source string) *ComicJob {
	now := time.Now().UTC()
	return &ComicJob{
		ID:        uuid.New(),
		Source:    source,
		CreatedAt: now,
		status:    StatusPending,
		updatedAt: now,
	}
}

func (j *ComicJob) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Reason is set when the job failed.
func (j *ComicJob) Reason() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.reason
}

func (j *ComicJob) UpdatedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.updatedAt
}

// Advance moves the job to the next in-progress stage. Stages may be
// skipped but never revisited.
func (j *ComicJob) Advance(next Status) error {
	if next.Terminal() {
		return fmt.Errorf("advance to terminal status %q: use Complete or Fail", next)
	}
	j.mu.Lock()
	if j.status.Terminal() || statusOrder[next] <= statusOrder[j.status] {
		cur := j.status
		j.mu.Unlock()
		return fmt.Errorf("invalid status transition %s -> %s", cur, next)
	}
	evt := j.setLocked(next, "")
	j.mu.Unlock()
	j.publish(evt)
	return nil
}

// Complete stores the finished pages and marks the job done.
func (j *ComicJob) Complete(pages []Page) error {
	j.mu.Lock()
	if j.status.Terminal() {
		cur := j.status
		j.mu.Unlock()
		return fmt.Errorf("complete job in terminal status %s", cur)
	}
	j.pages = pages
	evt := j.setLocked(StatusDone, "")
	j.mu.Unlock()
	j.publish(evt)
	return nil
}

// Fail marks the job failed with a single reason. Failing a terminal job is a no-op.
func (j *ComicJob) Fail(reason string) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.pages = nil
	evt := j.setLocked(StatusFailed, reason)
	j.mu.Unlock()
	j.publish(evt)
}

func (j *ComicJob) setLocked(s Status, reason string) StatusEvent {
	j.status = s
	j.reason = reason
	j.updatedAt = time.Now().UTC()
	return StatusEvent{JobID: j.ID, Status: s, Reason: reason, At: j.updatedAt}
}

func (j *ComicJob) publish(evt StatusEvent) {
	j.mu.Lock()
	subs := j.subscribers
	sinks := j.sinks
	if evt.Status.Terminal() {
		j.subscribers = nil
	}
	j.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
		if evt.Status.Terminal() {
			close(ch)
		}
	}
	for _, s := range sinks {
		s.Publish(evt)
	}
}

// Subscribe returns a channel of status transitions, closed after the
// terminal one. Slow readers may miss intermediate stages.
func (j *ComicJob) Subscribe() <-chan StatusEvent {
	ch := make(chan StatusEvent, len(statusOrder)+1)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		ch <- StatusEvent{JobID: j.ID, Status: j.status, Reason: j.reason, At: j.updatedAt}
		close(ch)
		return ch
	}
	j.subscribers = append(j.subscribers, ch)
	return ch
}

// AddSink registers a sink for subsequent transitions.
func (j *ComicJob) AddSink(s StatusSink) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sinks = append(j.sinks, s)
}

// Pages returns the finished pages, nil until the job is done.
func (j *ComicJob) Pages() []Page {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Page, len(j.pages))
	copy(out, j.pages)
	return out
}

func (j *ComicJob) Annotate(kind AnnotationKind, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.annotations = append(j.annotations, Annotation{Kind: kind, Detail: detail})
}

func (j *ComicJob) Annotations() []Annotation {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Annotation, len(j.annotations))
	copy(out, j.annotations)
	return out
}
