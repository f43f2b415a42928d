package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pricescope/marketworker/helpers"
	"pricescope/marketworker/internal/metrics"
	"pricescope/marketworker/logger"
	apperrors "pricescope/marketworker/pkg/errors"
	"pricescope/marketworker/services/cache"
)

// Options configures a Fetcher.
type Options struct {
	// MaxAttempts is the number of tries per page before giving up.
	MaxAttempts int
	// BackoffBase is the unit of exponential backoff between attempts.
	BackoffBase time.Duration
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// MinInterval is the minimum spacing between outbound request starts.
	MinInterval time.Duration
	// CooldownTime is how long a site is blocked after it rate-limits us.
	CooldownTime time.Duration
	// ProxyURL, when set, routes every fetch through a rendering-capable
	// proxy service with a per-request render flag.
	ProxyURL    string
	ProxyAPIKey string
	// RendererAddr, when set, serves render-required pages when no proxy
	// is configured.
	RendererAddr string
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Fetcher retrieves raw page content with retry, backoff, rate limiting and
// per-site cooldowns. Render mode and proxy routing are selected per call;
// neither changes across retries of the same page.
type Fetcher struct {
	client          *http.Client
	opts            Options
	limiter         *Limiter
	cooldowns       cache.CacheService
	metrics         *metrics.Metrics
	log             *logger.Logger
	sleep           func(ctx context.Context, d time.Duration) error
	renderFallbacks sync.Map
}

// New creates a Fetcher. cooldowns may be nil to disable site cooldowns and
// m may be nil to disable metrics.
func New(opts Options, cooldowns cache.CacheService, m *metrics.Metrics) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		opts:      opts,
		limiter:   NewLimiter(opts.MinInterval),
		cooldowns: cooldowns,
		metrics:   m,
		log:       logger.ForFetcher(),
		sleep:     sleepCtx,
	}
}

// Page fetches one page for a site, retrying transient failures. It returns
// the page body converted to UTF-8, or the last error after exhausting
// attempts. Rate-limit responses abort immediately and set a cooldown.
func (f *Fetcher) Page(ctx context.Context, site, pageURL string, render bool) ([]byte, error) {
	if err := f.checkCooldown(site); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			f.metrics.IncRetry()
			if err := f.sleep(ctx, f.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := f.fetchOnce(ctx, site, pageURL, render)
		if err == nil {
			f.metrics.IncPageFetched(site)
			f.metrics.ObserveFetchDuration(time.Since(start))
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, err
		}

		var se *apperrors.ScrapeError
		if errors.As(err, &se) && !se.IsRetryable() {
			if se.Type == apperrors.ErrorTypeRateLimit {
				f.setCooldown(site)
			}
			se.Attempts = attempt
			f.metrics.IncFetchFailure(string(se.Type))
			return nil, err
		}

		f.log.Warn().
			Str("site", site).
			Str("url", pageURL).
			Int("attempt", attempt).
			Err(err).
			Msg("Page fetch failed")
		lastErr = err
	}

	var se *apperrors.ScrapeError
	if errors.As(lastErr, &se) {
		se.Attempts = f.opts.MaxAttempts
	}
	f.metrics.IncFetchFailure(string(apperrors.TypeOf(lastErr)))
	return nil, lastErr
}

// backoff returns the delay before the given attempt number.
func (f *Fetcher) backoff(attempt int) time.Duration {
	return f.opts.BackoffBase * (1 << attempt)
}

func (f *Fetcher) cooldownKey(site string) string {
	return strings.ToLower(strings.ReplaceAll(site, " ", "_")) + "_cooldown"
}

func (f *Fetcher) checkCooldown(site string) error {
	if f.cooldowns == nil {
		return nil
	}
	if _, err := f.cooldowns.Get(f.cooldownKey(site)); err == nil {
		return apperrors.NewRateLimit(site, f.opts.CooldownTime)
	}
	return nil
}

func (f *Fetcher) setCooldown(site string) {
	if f.cooldowns == nil || f.opts.CooldownTime <= 0 {
		return
	}
	value := []byte(fmt.Sprintf("%d", int(f.opts.CooldownTime.Seconds())))
	if err := f.cooldowns.Set(f.cooldownKey(site), value, f.opts.CooldownTime); err != nil {
		f.log.Warn().Str("site", site).Err(err).Msg("Failed to set cooldown")
	}
}

// fetchOnce performs a single fetch using the configured capability.
func (f *Fetcher) fetchOnce(ctx context.Context, site, pageURL string, render bool) ([]byte, error) {
	if f.opts.ProxyURL != "" {
		return f.fetchViaProxy(ctx, site, pageURL, render)
	}
	if render {
		if f.opts.RendererAddr != "" {
			return f.fetchViaRenderer(ctx, site, pageURL)
		}
		f.warnRenderFallback(site)
	}
	return f.fetchDirect(ctx, site, pageURL)
}

// warnRenderFallback logs once per site when a render-required page has to
// fall back to a plain GET because neither a proxy nor a renderer is
// configured. The fetch still runs; the content may be incomplete.
func (f *Fetcher) warnRenderFallback(site string) {
	if _, seen := f.renderFallbacks.LoadOrStore(site, struct{}{}); seen {
		return
	}
	f.log.Warn().
		Str("site", site).
		Msg("Site requires rendering but no proxy or renderer is configured, fetching without JavaScript")
}

// fetchDirect performs a plain GET with randomized browser headers.
func (f *Fetcher) fetchDirect(ctx context.Context, site, pageURL string) ([]byte, error) {
	req, err := helpers.NewBrowserRequest(ctx, pageURL)
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}
	return f.do(site, pageURL, req)
}

// fetchViaProxy routes the request through the rendering proxy service,
// passing the render flag along.
func (f *Fetcher) fetchViaProxy(ctx context.Context, site, pageURL string, render bool) ([]byte, error) {
	proxied := fmt.Sprintf("%s?api_key=%s&url=%s&render=%t",
		f.opts.ProxyURL, f.opts.ProxyAPIKey, url.QueryEscape(pageURL), render)

	req, err := helpers.NewBrowserRequest(ctx, proxied)
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}
	return f.do(site, pageURL, req)
}

// fetchViaRenderer asks the headless-browser renderer for the final DOM.
func (f *Fetcher) fetchViaRenderer(ctx context.Context, site, pageURL string) ([]byte, error) {
	payload := map[string]interface{}{
		"url": pageURL,
		"gotoOptions": map[string]interface{}{
			"waitUntil": "networkidle0",
			"timeout":   45000,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.RendererAddr+"/content", bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := f.do(site, pageURL, req)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(string(body))
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<!doctype") && !strings.Contains(lower, "<body") {
		return nil, apperrors.NewFetchNetwork(site, pageURL, fmt.Errorf("renderer response is not HTML (%d bytes)", len(body)))
	}
	return body, nil
}

// do executes a request and classifies failures into the fetch taxonomy.
func (f *Fetcher) do(site, pageURL string, req *http.Request) ([]byte, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(site, pageURL, err)
	}
	defer resp.Body.Close()

	// 430 is used by some targets as an off-spec rate-limit status
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		return nil, apperrors.NewRateLimit(site, f.opts.CooldownTime)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewFetchStatus(site, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}

	utf8Body, err := helpers.DecodeToUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperrors.NewFetchNetwork(site, pageURL, err)
	}
	return utf8Body, nil
}

func classifyTransportError(site, pageURL string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewFetchTimeout(site, pageURL, err)
	}
	return apperrors.NewFetchNetwork(site, pageURL, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
