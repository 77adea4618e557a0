package stylize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/comic"
)

// SeedHeader carries the seed to remote stylizers.
const SeedHeader = "X-Style-Seed"

// remoteTimeout bounds one HTTP attempt; the segment deadline bounds the whole call.
const remoteTimeout = 5 * time.Minute

// Remote posts the frame as PNG to an HTTP endpoint that answers with a
// styled PNG of any size.
type Remote struct {
	url     string
	retries int
	client  httpkit.HTTPClient
	log     *zap.Logger
}

func NewRemote(url string, retries int, log *zap.Logger) *Remote {
	return newRemote(url, retries, time.Second, log)
}

// newRemote builds the client with exponential backoff starting at backoff.
// The endpoint is operator configured and usually on a private network, so
// the SSRF guard of httpkit is off.
func newRemote(url string, retries int, backoff time.Duration, log *zap.Logger) *Remote {
	retries = max(0, retries)
	opts := []httpkit.ClientOption{
		httpkit.WithSkipNetworkValidation(true),
		httpkit.WithInitialInterval(backoff),
		httpkit.WithMaxInterval(30 * backoff),
	}
	if retries > 0 {
		opts = append(opts, httpkit.WithMaxRetries(uint64(retries)))
	}
	return &Remote{
		url:     url,
		retries: retries,
		client:  httpkit.New(remoteTimeout, opts...),
		log:     log,
	}
}

func (r *Remote) Stylize(ctx context.Context, img image.Image, seed int64) (image.Image, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", comic.ErrStylizationFailed, err)
	}
	payload := body.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comic.ErrStylizationFailed, err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "image/png")
	req.Header.Set(SeedHeader, strconv.FormatInt(seed, 10))

	data, err := r.send(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn("remote stylizer failed", zap.String("url", r.url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", comic.ErrStylizationFailed, err)
	}

	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", comic.ErrStylizationFailed, err)
	}
	return out, nil
}

// send retries 5xx and network failures with backoff. With retries disabled
// it makes exactly one attempt, since httpkit treats zero as its default.
func (r *Remote) send(req *http.Request) ([]byte, error) {
	if r.retries > 0 {
		return r.client.DoRequest(req)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	return httpkit.HandleResponse(resp)
}
