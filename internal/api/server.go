package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricescope/marketworker/internal/analyze"
	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/metrics"
	"pricescope/marketworker/internal/registry"
	"pricescope/marketworker/logger"
	apperrors "pricescope/marketworker/pkg/errors"
)

// Scraper runs a scrape for one site or all of them.
type Scraper interface {
	Run(ctx context.Context, siteName string) (*catalog.ScrapeRun, error)
}

// ProductLister reads the persisted catalog.
type ProductLister interface {
	All(ctx context.Context) ([]catalog.Product, error)
}

// Server exposes scrape control and catalog queries over HTTP.
type Server struct {
	scraper Scraper
	lister  ProductLister
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewServer wires the HTTP surface. m may be nil to skip the metrics
// endpoint.
func NewServer(scraper Scraper, lister ProductLister, m *metrics.Metrics) *Server {
	return &Server{
		scraper: scraper,
		lister:  lister,
		metrics: m,
		log:     logger.ForServer(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("GET /api/products/compare", s.handleCompare)
	mux.HandleFunc("GET /api/products/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

type scrapeRequest struct {
	Site string `json:"site"`
}

type scrapeResponse struct {
	Products []catalog.Product `json:"products"`
	Failures []catalog.Failure `json:"failures"`
	Count    int               `json:"count"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	start := time.Now()
	run, err := s.scraper.Run(r.Context(), req.Site)
	if err != nil {
		var notFound registry.ErrNotFound
		switch {
		case errors.As(err, &notFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case apperrors.TypeOf(err) == apperrors.ErrorTypeConfig:
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error().Err(err).Str("site", req.Site).Msg("scrape failed")
			s.writeError(w, http.StatusInternalServerError, "scrape failed")
		}
		return
	}

	s.log.Info().
		Str("site", req.Site).
		Int("products", len(run.Products)).
		Int("failures", len(run.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("scrape finished")

	s.writeJSON(w, http.StatusOK, scrapeResponse{
		Products: run.Products,
		Failures: run.Failures,
		Count:    len(run.Products),
	})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.lister.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("product listing failed")
		s.writeError(w, http.StatusInternalServerError, "listing products failed")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	products, err := s.lister.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("product listing failed")
		s.writeError(w, http.StatusInternalServerError, "listing products failed")
		return
	}
	s.writeJSON(w, http.StatusOK, analyze.ComparePrices(products))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	products, err := s.lister.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("product listing failed")
		s.writeError(w, http.StatusInternalServerError, "listing products failed")
		return
	}
	s.writeJSON(w, http.StatusOK, analyze.Summarize(products))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
