package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/video2comic/internal/comic"
)

func TestSinkTracksJobs(t *testing.T) {
	sink := NewSink()
	id := uuid.New()
	start := time.Now()

	active := testutil.ToFloat64(ActiveJobs)
	done := testutil.ToFloat64(JobsTotal.WithLabelValues(string(comic.StatusDone)))

	sink.Publish(comic.StatusEvent{JobID: id, Status: comic.StatusExtracting, At: start})
	assert.Equal(t, active+1, testutil.ToFloat64(ActiveJobs))

	sink.Publish(comic.StatusEvent{JobID: id, Status: comic.StatusStyling, At: start.Add(time.Second)})
	assert.Equal(t, active+1, testutil.ToFloat64(ActiveJobs))

	sink.Publish(comic.StatusEvent{JobID: id, Status: comic.StatusDone, At: start.Add(2 * time.Second)})
	assert.Equal(t, active, testutil.ToFloat64(ActiveJobs))
	assert.Equal(t, done+1, testutil.ToFloat64(JobsTotal.WithLabelValues(string(comic.StatusDone))))
	assert.Empty(t, sink.stages)
}

func TestSinkFailBeforeStart(t *testing.T) {
	sink := NewSink()
	active := testutil.ToFloat64(ActiveJobs)
	failed := testutil.ToFloat64(JobsTotal.WithLabelValues(string(comic.StatusFailed)))

	sink.Publish(comic.StatusEvent{JobID: uuid.New(), Status: comic.StatusFailed, Reason: "cancelled", At: time.Now()})

	assert.Equal(t, active, testutil.ToFloat64(ActiveJobs))
	assert.Equal(t, failed+1, testutil.ToFloat64(JobsTotal.WithLabelValues(string(comic.StatusFailed))))
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	SegmentsSelectedTotal.Add(0)
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "video2comic_segments_selected_total"))
}
