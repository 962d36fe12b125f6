package out

import "context"

// FetchResult is a retrieved page, kept minimal so the discovery and
// parsing stages of C6 can share one HTTP round trip abstraction.
type FetchResult struct {
	StatusCode int
	Body       []byte
}

// HTMLFetcher performs the bounded-timeout HEAD/GET calls C6's
// discovery and parsing stages need. Implementations are expected to
// wrap a pooled *http.Client and a per-host circuit breaker.
type HTMLFetcher interface {
	Head(ctx context.Context, url string) (statusCode int, err error)
	Get(ctx context.Context, url string) (*FetchResult, error)
}
