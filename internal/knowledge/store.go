
// Package knowledge owns the scraped page store: it runs refresh passes,
// publishes each completed pass atomically, and ranks stored pages against
// free-text queries.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"support-chatbot/internal/crawler"
	"support-chatbot/internal/ioformats"
	"support-chatbot/internal/metrics"
	"support-chatbot/internal/models"
	"support-chatbot/pkg/logger"
)

// ErrRefreshFailed wraps any error that aborted a whole refresh pass. The
// previously published store is kept when it is returned.
var ErrRefreshFailed = errors.New("knowledge refresh failed")

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (models.RawPage, error)
}

type Extractor interface {
	Extract(page models.RawPage) models.PageRecord
}

// Sources yields the ordered list of URLs visited by one pass.
type Sources interface {
	URLs(ctx context.Context) ([]string, error)
}

type StaticSources []string

func (s StaticSources) URLs(context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// FileSources re-reads a CSV or NDJSON page list on every pass. Path-only
// entries are joined onto BaseURL.
type FileSources struct {
	Path    string
	BaseURL string
}

func (s FileSources) URLs(context.Context) ([]string, error) {
	entries, err := ioformats.ReadURLs(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read page list %s: %w", s.Path, err)
	}
	return crawler.PageURLs(s.BaseURL, entries), nil
}

// NewSources picks the page list file when one is configured, else the
// fixed path list.
func NewSources(baseURL string, paths []string, pagesFile string) Sources {
	if pagesFile != "" {
		return FileSources{Path: pagesFile, BaseURL: baseURL}
	}
	return StaticSources(crawler.PageURLs(baseURL, paths))
}

type snapshot struct {
	pages  []models.PageRecord
	counts *models.ProductCountSnapshot
}

type Store struct {
	sources   Sources
	fetcher   Fetcher
	extractor Extractor
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(sources Sources, f Fetcher, e Extractor, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		sources:   sources,
		fetcher:   f,
		extractor: e,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs one full pass and publishes it. Calls that arrive while a
// pass is running wait for it and share its result instead of starting a
// second one.
func (s *Store) Refresh(ctx context.Context) (*models.RefreshSummary, error) {
	v, err, shared := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if shared {
		s.log.Debug("joined in-flight refresh")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.RefreshSummary), nil
}

func (s *Store) refresh(ctx context.Context) (*models.RefreshSummary, error) {
	start := s.now()
	fail := func(err error) (*models.RefreshSummary, error) {
		s.log.Error("knowledge refresh failed, keeping previous store", logger.Error(err))
		s.metrics.ObserveRefresh(false, 0, 0, 0)
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	urls, err := s.sources.URLs(ctx)
	if err != nil {
		return fail(err)
	}

	summary := &models.RefreshSummary{StartedAt: start}
	pages := make([]models.PageRecord, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		raw, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			s.log.Warn("page fetch failed", logger.String("url", u), logger.Error(err))
			s.metrics.ObserveFetch(false)
			summary.Failed = append(summary.Failed, u)
			continue
		}
		s.metrics.ObserveFetch(true)

		rec := s.extractor.Extract(raw)
		rec.URL = u
		pages = append(pages, rec)
		s.log.Info("page scraped",
			logger.String("url", u),
			logger.Int("links", len(rec.Links)),
			logger.Int("products", len(rec.Products)),
			logger.Duration("fetch", raw.FetchDuration))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	counts := countProducts(pages, s.now())
	s.current.Store(&snapshot{pages: pages, counts: counts})

	summary.Pages = len(pages)
	summary.Products = counts.TotalProducts
	summary.Duration = s.now().Sub(start)
	s.metrics.ObserveRefresh(true, summary.Duration, summary.Pages, summary.Products)
	s.log.Info("knowledge refreshed",
		logger.Int("pages", summary.Pages),
		logger.Int("failed", len(summary.Failed)),
		logger.Int("products", summary.Products),
		logger.Duration("duration", summary.Duration))
	return summary, nil
}

func countProducts(pages []models.PageRecord, at time.Time) *models.ProductCountSnapshot {
	counts := &models.ProductCountSnapshot{
		ProductsByCategory: map[string]int{},
		Categories:         []string{},
		LastUpdated:        at,
	}
	for _, p := range pages {
		for _, prod := range p.Products {
			cat := prod.Category
			if cat == "" {
				cat = models.CategoryOther
			}
			if _, seen := counts.ProductsByCategory[cat]; !seen {
				counts.Categories = append(counts.Categories, cat)
			}
			counts.ProductsByCategory[cat]++
			counts.TotalProducts++
		}
	}
	return counts
}

// ProductCounts returns the snapshot of the last completed refresh, or false
// if none has completed yet.
func (s *Store) ProductCounts() (*models.ProductCountSnapshot, bool) {
	snap := s.current.Load()
	if snap == nil {
		return nil, false
	}
	return snap.counts, true
}

// Pages returns the records of the last completed refresh in fetch order.
func (s *Store) Pages() []models.PageRecord {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]models.PageRecord, len(snap.pages))
	copy(out, snap.pages)
	return out
}

func (s *Store) Ready() bool { return s.current.Load() != nil }
