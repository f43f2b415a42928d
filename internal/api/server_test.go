package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricescope/marketworker/internal/analyze"
	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/metrics"
	"pricescope/marketworker/internal/registry"
	apperrors "pricescope/marketworker/pkg/errors"
)

type stubScraper struct {
	run      *catalog.ScrapeRun
	err      error
	lastSite string
}

func (s *stubScraper) Run(ctx context.Context, siteName string) (*catalog.ScrapeRun, error) {
	s.lastSite = siteName
	if s.err != nil {
		return nil, s.err
	}
	return s.run, nil
}

type stubLister struct {
	products []catalog.Product
	err      error
}

func (l *stubLister) All(ctx context.Context) ([]catalog.Product, error) {
	return l.products, l.err
}

func newTestServer(scraper Scraper, lister ProductLister) http.Handler {
	return NewServer(scraper, lister, metrics.New()).Handler()
}

func TestScrapeEndpoint(t *testing.T) {
	scraper := &stubScraper{
		run: &catalog.ScrapeRun{
			Products: []catalog.Product{{Name: "Laptop", Price: 500, SourceSite: "walmart"}},
			Failures: []catalog.Failure{{Site: "walmart", Page: 3, Attempts: 5, Err: "status 503"}},
		},
	}
	handler := newTestServer(scraper, &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"site":"walmart"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "walmart", scraper.lastSite)

	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Laptop", resp.Products[0].Name)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 3, resp.Failures[0].Page)
}

func TestScrapeEndpointEmptyBodyMeansAllSites(t *testing.T) {
	scraper := &stubScraper{run: &catalog.ScrapeRun{}}
	handler := newTestServer(scraper, &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", scraper.lastSite)
}

func TestScrapeEndpointUnknownSite(t *testing.T) {
	scraper := &stubScraper{err: registry.ErrNotFound{Name: "nope"}}
	handler := newTestServer(scraper, &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"site":"nope"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScrapeEndpointStoreFailure(t *testing.T) {
	scraper := &stubScraper{err: apperrors.NewStore("every save in the run failed", nil)}
	handler := newTestServer(scraper, &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"site":"walmart"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScrapeEndpointBadJSON(t *testing.T) {
	handler := newTestServer(&stubScraper{run: &catalog.ScrapeRun{}}, &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"site":`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductsEndpoint(t *testing.T) {
	lister := &stubLister{products: []catalog.Product{
		{Name: "Laptop", Price: 500, SourceSite: "walmart"},
		{Name: "Phone", Price: 300, SourceSite: "amazon"},
	}}
	handler := newTestServer(&stubScraper{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var products []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestProductsEndpointEmptyCatalog(t *testing.T) {
	handler := newTestServer(&stubScraper{}, &stubLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCompareEndpoint(t *testing.T) {
	lister := &stubLister{products: []catalog.Product{
		{Name: "Laptop", Price: 500, SourceSite: "walmart"},
		{Name: "Laptop", Price: 520, SourceSite: "amazon"},
	}}
	handler := newTestServer(&stubScraper{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/api/products/compare", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var comparisons []analyze.PriceComparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comparisons))
	require.Len(t, comparisons, 1)
	assert.Equal(t, "Laptop", comparisons[0].Name)
	assert.Len(t, comparisons[0].Prices, 2)
}

func TestStatsEndpoint(t *testing.T) {
	lister := &stubLister{products: []catalog.Product{
		{Name: "A", Price: 10, Vendor: "TechCo"},
		{Name: "B", Price: 30, Vendor: "TechCo"},
	}}
	handler := newTestServer(&stubScraper{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/api/products/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats analyze.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.InDelta(t, 20.0, stats.AveragePrice, 0.0001)
	require.Len(t, stats.TopVendors, 1)
	assert.Equal(t, 2, stats.TopVendors[0].Count)
}

func TestListerFailure(t *testing.T) {
	lister := &stubLister{err: apperrors.NewStore("connection lost", nil)}
	handler := newTestServer(&stubScraper{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(&stubScraper{}, &stubLister{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncPageFetched("walmart")
	handler := NewServer(&stubScraper{}, &stubLister{}, m).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketworker_pages_fetched_total")
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestServer(&stubScraper{}, &stubLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/scrape", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
