package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/salesops-cli/internal/resilience"
)

// maxRetryAfter caps how long a Retry-After header may hold downloads.
const maxRetryAfter = 2 * time.Minute

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Retry covers each request. 429, 5xx and transport errors retry.
	Retry resilience.Policy
	// Throttle paces requests to the workbook host. Default: 5 per second.
	Throttle *Throttle
}

// StatusError is a workbook response other than 200.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether the host may answer differently on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Throttle paces workbook downloads. A 429 halves the rate, down to an
// eighth of the base, and holds every request until Retry-After passes. A
// successful download restores the base rate.
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	base    rate.Limit
	floor   rate.Limit
	until   time.Time
	now     func() time.Time
}

// NewThrottle allows perSec requests per second with a burst of one.
func NewThrottle(perSec rate.Limit) *Throttle {
	return &Throttle{
		limiter: rate.NewLimiter(perSec, 1),
		base:    perSec,
		floor:   perSec / 8,
		now:     time.Now,
	}
}

// Wait blocks until any Retry-After hold has passed and the limiter admits
// a request.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	hold := t.until.Sub(t.now())
	t.mu.Unlock()

	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Slow records a 429 answer.
func (t *Throttle) Slow(retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := max(t.limiter.Limit()/2, t.floor)
	t.limiter.SetLimit(next)
	if retryAfter > 0 {
		if until := t.now().Add(min(retryAfter, maxRetryAfter)); until.After(t.until) {
			t.until = until
		}
	}
	zap.L().Warn("source: workbook host is rate limiting",
		zap.Float64("rate_per_sec", float64(next)),
		zap.Duration("retry_after", retryAfter),
	)
}

// Restore returns to the base rate.
func (t *Throttle) Restore() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiter.SetLimit(t.base)
}

// Limit returns the current rate.
func (t *Throttle) Limit() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limiter.Limit()
}

// HoldUntil returns the end of the current Retry-After hold.
func (t *Throttle) HoldUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.until
}

// parseRetryAfter reads a Retry-After value as seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// retryableHTTP retries temporary statuses and transport failures.
func retryableHTTP(err error) bool {
	switch e := err.(type) {
	case *StatusError:
		return e.Temporary()
	case *url.Error:
		return true
	default:
		return resilience.IsTransient(err)
	}
}

// HTTPFetcher downloads workbooks over HTTP.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "salesops-cli/1.0"
	}
	if opts.Throttle == nil {
		opts.Throttle = NewThrottle(5)
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = retryableHTTP
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetry("http download")
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	body, err := resilience.Retry(ctx, f.opts.Retry, func(ctx context.Context) (io.ReadCloser, error) {
		return f.get(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return body, nil
}

// get performs one throttled request.
func (f *HTTPFetcher) get(ctx context.Context, req *http.Request) (io.ReadCloser, error) {
	if err := f.opts.Throttle.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "throttle wait")
	}

	resp, err := f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		f.opts.Throttle.Restore()
		return resp.Body, nil
	}
	_ = resp.Body.Close()

	se := &StatusError{
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
	if se.StatusCode == http.StatusTooManyRequests {
		f.opts.Throttle.Slow(se.RetryAfter)
	}
	return nil, se
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeFile(path, body)
}

func writeFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
