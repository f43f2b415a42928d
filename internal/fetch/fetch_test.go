package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pricescope/marketworker/pkg/errors"
	"pricescope/marketworker/services/cache"
)

// recordingSleeper captures backoff delays instead of sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestFetcher(t *testing.T, opts Options) (*Fetcher, *httpmock.MockTransport, *recordingSleeper) {
	t.Helper()
	f := New(opts, cache.NewMemoryService(), nil)
	transport := httpmock.NewMockTransport()
	f.client.Transport = transport
	sleeper := &recordingSleeper{}
	f.sleep = sleeper.sleep
	return f, transport, sleeper
}

func TestPageSuccess(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{MaxAttempts: 5})
	transport.RegisterResponder("GET", "https://example.com/search?q=laptop&page=1",
		httpmock.NewStringResponder(200, "<html><body>listings</body></html>"))

	body, err := f.Page(context.Background(), "TestSite", "https://example.com/search?q=laptop&page=1", false)
	require.NoError(t, err)
	assert.Contains(t, string(body), "listings")
}

func TestPageSetsBrowserHeaders(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{})
	transport.RegisterResponder("GET", "https://example.com/page",
		func(req *http.Request) (*http.Response, error) {
			assert.NotEmpty(t, req.Header.Get("User-Agent"))
			assert.NotEmpty(t, req.Header.Get("Accept-Language"))
			assert.NotEmpty(t, req.Header.Get("Referer"))
			return httpmock.NewStringResponse(200, "<html></html>"), nil
		})

	_, err := f.Page(context.Background(), "TestSite", "https://example.com/page", false)
	assert.NoError(t, err)
}

func TestPageRetriesThenSucceeds(t *testing.T) {
	base := 10 * time.Millisecond
	f, transport, sleeper := newTestFetcher(t, Options{MaxAttempts: 5, BackoffBase: base})

	calls := 0
	transport.RegisterResponder("GET", "https://example.com/flaky",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 5 {
				return httpmock.NewStringResponse(500, "boom"), nil
			}
			return httpmock.NewStringResponse(200, "<html>finally</html>"), nil
		})

	body, err := f.Page(context.Background(), "TestSite", "https://example.com/flaky", false)
	require.NoError(t, err)
	assert.Contains(t, string(body), "finally")
	assert.Equal(t, 5, calls)

	// Delay before attempt k is base * 2^k, strictly increasing
	require.Len(t, sleeper.delays, 4)
	assert.Equal(t, base*4, sleeper.delays[0])
	assert.Equal(t, base*8, sleeper.delays[1])
	assert.Equal(t, base*16, sleeper.delays[2])
	assert.Equal(t, base*32, sleeper.delays[3])
}

func TestPageExhaustsRetries(t *testing.T) {
	f, transport, sleeper := newTestFetcher(t, Options{MaxAttempts: 5, BackoffBase: time.Millisecond})

	calls := 0
	transport.RegisterResponder("GET", "https://example.com/dead",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(503, "unavailable"), nil
		})

	_, err := f.Page(context.Background(), "TestSite", "https://example.com/dead", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeFetchStatus, apperrors.TypeOf(err))
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, apperrors.AttemptsOf(err))
	assert.Len(t, sleeper.delays, 4)
}

func TestPageRateLimitSetsCooldown(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{MaxAttempts: 5, CooldownTime: time.Minute})

	calls := 0
	transport.RegisterResponder("GET", "https://example.com/limited",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(429, "slow down"), nil
		})

	_, err := f.Page(context.Background(), "TestSite", "https://example.com/limited", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeRateLimit, apperrors.TypeOf(err))
	// Rate limiting is not a retry dimension
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, apperrors.AttemptsOf(err))

	// Next fetch short-circuits on the cooldown without touching the network
	_, err = f.Page(context.Background(), "TestSite", "https://example.com/limited", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeRateLimit, apperrors.TypeOf(err))
	assert.Equal(t, 1, calls)
}

func TestPageViaProxyCarriesRenderFlag(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{
		ProxyURL:    "http://proxy.example.com",
		ProxyAPIKey: "secret",
	})

	transport.RegisterResponder("GET", `=~^http://proxy\.example\.com`,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "secret", q.Get("api_key"))
			assert.Equal(t, "https://target.example.com/search?page=2", q.Get("url"))
			assert.Equal(t, "true", q.Get("render"))
			return httpmock.NewStringResponse(200, "<html>rendered</html>"), nil
		})

	body, err := f.Page(context.Background(), "TestSite", "https://target.example.com/search?page=2", true)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rendered")
}

func TestPageViaRenderer(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{RendererAddr: "http://renderer.example.com"})

	transport.RegisterResponder("POST", "http://renderer.example.com/content",
		httpmock.NewStringResponder(200, "<html><body>dom</body></html>"))

	body, err := f.Page(context.Background(), "TestSite", "https://target.example.com/x", true)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dom")
}

func TestPageViaRendererRejectsNonHTML(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{MaxAttempts: 2, RendererAddr: "http://renderer.example.com"})

	transport.RegisterResponder("POST", "http://renderer.example.com/content",
		httpmock.NewStringResponder(200, `{"error":"no browser available"}`))

	_, err := f.Page(context.Background(), "TestSite", "https://target.example.com/x", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeFetchNetwork, apperrors.TypeOf(err))
}

func TestPageRenderFalseSkipsRenderer(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{RendererAddr: "http://renderer.example.com"})

	transport.RegisterResponder("GET", "https://target.example.com/plain",
		httpmock.NewStringResponder(200, "<html>static</html>"))

	body, err := f.Page(context.Background(), "TestSite", "https://target.example.com/plain", false)
	require.NoError(t, err)
	assert.Contains(t, string(body), "static")
}

func TestPageRenderWithoutCapabilityFallsBackToDirect(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{})

	transport.RegisterResponder("GET", "https://target.example.com/js-heavy",
		httpmock.NewStringResponder(200, "<html>partial</html>"))

	// No proxy and no renderer configured: the render request degrades to a
	// plain GET instead of failing outright.
	body, err := f.Page(context.Background(), "TestSite", "https://target.example.com/js-heavy", true)
	require.NoError(t, err)
	assert.Contains(t, string(body), "partial")
}

func TestPageNetworkError(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{MaxAttempts: 2, BackoffBase: time.Millisecond})

	transport.RegisterResponder("GET", "https://example.com/refused",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := f.Page(context.Background(), "TestSite", "https://example.com/refused", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeFetchNetwork, apperrors.TypeOf(err))
}

func TestPageCancelledContext(t *testing.T) {
	f, transport, _ := newTestFetcher(t, Options{MaxAttempts: 5, BackoffBase: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	transport.RegisterResponder("GET", "https://example.com/slow",
		func(req *http.Request) (*http.Response, error) {
			cancel()
			return httpmock.NewStringResponse(500, "boom"), nil
		})

	_, err := f.Page(ctx, "TestSite", "https://example.com/slow", false)
	assert.Error(t, err)
}
