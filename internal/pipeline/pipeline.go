package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pricescope/marketworker/internal/catalog"
	"pricescope/marketworker/internal/extract"
	"pricescope/marketworker/internal/normalize"
	"pricescope/marketworker/internal/registry"
	"pricescope/marketworker/internal/store"
	"pricescope/marketworker/logger"
	apperrors "pricescope/marketworker/pkg/errors"
)

// PageFetcher retrieves one page of a site's search results.
type PageFetcher interface {
	Page(ctx context.Context, site, pageURL string, render bool) ([]byte, error)
}

// ProductSaver persists a product and reports the dedup outcome.
type ProductSaver interface {
	Save(ctx context.Context, product catalog.Product) (store.SaveResult, error)
}

// Runner orchestrates a scrape: it resolves site configs, fetches and parses
// their result pages in parallel and hands products to the saver.
type Runner struct {
	registry    *registry.Registry
	fetcher     PageFetcher
	saver       ProductSaver
	pageLimit   int
	maxAttempts int
	log         *logger.Logger
}

// NewRunner creates a Runner. pageLimit is how many result pages to scrape
// per site and maxAttempts mirrors the fetcher's retry budget so failure
// records report how often a page was tried.
func NewRunner(reg *registry.Registry, fetcher PageFetcher, saver ProductSaver, pageLimit, maxAttempts int) *Runner {
	if pageLimit <= 0 {
		pageLimit = 5
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Runner{
		registry:    reg,
		fetcher:     fetcher,
		saver:       saver,
		pageLimit:   pageLimit,
		maxAttempts: maxAttempts,
		log:         logger.ForPipeline(),
	}
}

// Run scrapes the named site, or every registered site when siteName is
// empty or "all". Products include records that already existed in the
// store. A per-page failure is recorded and the run continues; Run returns
// an error only when no site resolves or every attempted save failed.
func (r *Runner) Run(ctx context.Context, siteName string) (*catalog.ScrapeRun, error) {
	configs, err := r.resolveSites(siteName)
	if err != nil {
		return nil, err
	}

	run := &catalog.ScrapeRun{}
	var (
		mu          sync.Mutex
		saveErrors  int
		saveResults int
		wg          sync.WaitGroup
	)

	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg registry.SiteConfig) {
			defer wg.Done()
			products, failures, failedSaves := r.scrapeSite(ctx, cfg)
			mu.Lock()
			run.Products = append(run.Products, products...)
			run.Failures = append(run.Failures, failures...)
			saveResults += len(products) + failedSaves
			saveErrors += failedSaves
			mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	if saveResults > 0 && saveErrors == saveResults {
		return run, apperrors.NewStore("every save in the run failed", nil)
	}
	return run, nil
}

func (r *Runner) resolveSites(siteName string) ([]registry.SiteConfig, error) {
	name := strings.TrimSpace(siteName)
	if name == "" || strings.EqualFold(name, "all") {
		configs := r.registry.All()
		if len(configs) == 0 {
			return nil, apperrors.NewConfig("", "no sites registered")
		}
		return configs, nil
	}
	cfg, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return []registry.SiteConfig{cfg}, nil
}

// scrapeSite walks the site's result pages in order. It returns the saved
// products, the failure records and how many saves errored out.
func (r *Runner) scrapeSite(ctx context.Context, cfg registry.SiteConfig) ([]catalog.Product, []catalog.Failure, int) {
	log := r.log.WithField("site", cfg.Name)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid site config")
		return nil, []catalog.Failure{{Site: cfg.Name, Page: 0, Attempts: 0, Err: err.Error()}}, 0
	}

	var (
		products   []catalog.Product
		failures   []catalog.Failure
		failedSave int
	)

	for page := 1; page <= r.pageLimit; page++ {
		if ctx.Err() != nil {
			break
		}

		body, err := r.fetcher.Page(ctx, cfg.Name, cfg.PageURL(page), cfg.Render)
		if err != nil {
			if isCancellation(err) {
				break
			}
			log.Warn().Err(err).Int("page", page).Msg("page failed, moving on")
			failures = append(failures, catalog.Failure{
				Site:     cfg.Name,
				Page:     page,
				Attempts: fetchAttempts(err, r.maxAttempts),
				Err:      err.Error(),
			})
			continue
		}

		listings, err := extract.Listings(body, cfg)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("page did not parse")
			failures = append(failures, catalog.Failure{
				Site:     cfg.Name,
				Page:     page,
				Attempts: 1,
				Err:      err.Error(),
			})
			continue
		}

		for _, raw := range listings {
			product := normalize.Product(raw, cfg)
			result, err := r.saver.Save(ctx, product)
			if err != nil {
				if isCancellation(err) {
					return products, failures, failedSave
				}
				log.Error().Err(err).Str("product", product.Name).Msg("save failed")
				failures = append(failures, catalog.Failure{
					Site:     cfg.Name,
					Page:     page,
					Attempts: 1,
					Err:      fmt.Sprintf("save of %q failed: %v", product.Name, err),
				})
				failedSave++
				continue
			}
			log.Debug().Str("product", product.Name).Stringer("result", result).Msg("saved")
			products = append(products, product)
		}
	}

	return products, failures, failedSave
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fetchAttempts reads the attempt count the fetcher recorded on the error,
// falling back to the full retry budget for errors that carry none.
func fetchAttempts(err error, maxAttempts int) int {
	if attempts := apperrors.AttemptsOf(err); attempts > 0 {
		return attempts
	}
	return maxAttempts
}
