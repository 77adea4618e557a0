package jobs

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ivlev/video2comic/internal/comic"
)

// Registry is the process-wide table of jobs. Running jobs never expire;
// a job is dropped Retention after it reaches a terminal status.
type Registry struct {
	cache     *cache.Cache
	retention time.Duration
}

func NewRegistry(retention time.Duration) *Registry {
	cleanup := retention / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &Registry{
		cache:     cache.New(cache.NoExpiration, cleanup),
		retention: retention,
	}
}

// Create registers a new pending job for source.
func (r *Registry) Create(source string) *comic.ComicJob {
	job := comic.NewComicJob(source)
	r.Add(job)
	return job
}

// Add registers an existing job and starts tracking its status.
func (r *Registry) Add(job *comic.ComicJob) {
	r.cache.Set(job.ID.String(), job, cache.NoExpiration)
	job.AddSink(r)
	if job.Status().Terminal() {
		r.expire(job)
	}
}

func (r *Registry) Get(id uuid.UUID) (*comic.ComicJob, bool) {
	v, ok := r.cache.Get(id.String())
	if !ok {
		return nil, false
	}
	return v.(*comic.ComicJob), true
}

// List returns live jobs, oldest first.
func (r *Registry) List() []*comic.ComicJob {
	items := r.cache.Items()
	out := make([]*comic.ComicJob, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*comic.ComicJob))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Publish implements comic.StatusSink.
func (r *Registry) Publish(evt comic.StatusEvent) {
	if !evt.Status.Terminal() {
		return
	}
	if job, ok := r.Get(evt.JobID); ok {
		r.expire(job)
	}
}

func (r *Registry) expire(job *comic.ComicJob) {
	ttl := r.retention
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	r.cache.Set(job.ID.String(), job, ttl)
}
