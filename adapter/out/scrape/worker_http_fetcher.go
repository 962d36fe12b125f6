package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"calndr/core/port/out"
	"calndr/pkg/httputil"
	"calndr/pkg/ratelimit"
)

const maxBodyBytes = 2 << 20 // 2MB, generous for a school/daycare calendar page

// HTTPFetcher is the C6 HTMLFetcher adapter: a pooled HTTP client with
// a circuit breaker per host, so one provider's flaky calendar page
// can't exhaust request budget meant for the rest of the batch.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[*out.FetchResult]
	protector *ratelimit.APIProtector
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:   httputil.NewOptimizedClient(httputil.ProviderScrapeConfig()),
		timeout:  timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*out.FetchResult]),
	}
}

// WithProtector attaches a shared concurrency/rate guard keyed by host, so
// a batch sync sweeping many providers never opens more than a handful of
// requests against any single school or daycare site at once.
func (f *HTTPFetcher) WithProtector(p *ratelimit.APIProtector) *HTTPFetcher {
	f.protector = p
	return f
}

func (f *HTTPFetcher) breakerFor(host string) *gobreaker.CircuitBreaker[*out.FetchResult] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[*out.FetchResult](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	f.breakers[host] = cb
	return cb
}

func (f *HTTPFetcher) Head(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build HEAD request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) (*out.FetchResult, error) {
	host := requestHost(url)

	if f.protector != nil {
		result, release := f.protector.Acquire(ctx, host)
		if !result.Allowed {
			return nil, fmt.Errorf("fetch %s: %s", url, result.Reason)
		}
		defer release()
	}

	cb := f.breakerFor(host)
	return cb.Execute(func() (*out.FetchResult, error) {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build GET request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", url, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body %s: %w", url, err)
		}
		return &out.FetchResult{StatusCode: resp.StatusCode, Body: body}, nil
	})
}

func requestHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
