
package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"support-chatbot/internal/crawler"
	"support-chatbot/internal/metrics"
	"support-chatbot/internal/models"
	"support-chatbot/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSite serves canned records; URLs listed in down fail to fetch.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]models.PageRecord
	down    map[string]bool
	fetches atomic.Int32
	gate    chan struct{}
}

func newFakeSite(pages ...models.PageRecord) *fakeSite {
	s := &fakeSite{pages: map[string]models.PageRecord{}, down: map[string]bool{}}
	for _, p := range pages {
		s.pages[p.URL] = p
	}
	return s
}

func (s *fakeSite) setDown(u string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[u] = down
}

func (s *fakeSite) Fetch(ctx context.Context, u string) (models.RawPage, error) {
	s.fetches.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[u]; !ok || s.down[u] {
		return models.RawPage{}, &crawler.FetchError{URL: u, StatusCode: 503}
	}
	return models.RawPage{URL: u, StatusCode: 200}, nil
}

func (s *fakeSite) Extract(raw models.RawPage) models.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[raw.URL]
}

type failingSources struct{}

func (failingSources) URLs(context.Context) ([]string, error) {
	return nil, errors.New("site config unreachable")
}

func page(u, text string, products ...models.ProductMention) models.PageRecord {
	return models.PageRecord{URL: u, Title: "T " + u, Text: text, Products: products}
}

func prod(name, cat string) models.ProductMention {
	return models.ProductMention{Name: name, Category: cat}
}

func newStore(t *testing.T, site *fakeSite, urls ...string) *Store {
	t.Helper()
	return New(StaticSources(urls), site, site, logger.NewNop(), WithMetrics(metrics.New()))
}

func TestRefreshPublishesSuccessfulPagesInOrder(t *testing.T) {
	site := newFakeSite(
		page("https://x.test/", "home"),
		page("https://x.test/help", "help"),
		page("https://x.test/about", "about"),
	)
	site.setDown("https://x.test/help", true)
	store := newStore(t, site, "https://x.test/", "https://x.test/help", "https://x.test/about", "https://x.test/missing")

	summary, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, []string{"https://x.test/help", "https://x.test/missing"}, summary.Failed)

	pages := store.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "https://x.test/", pages[0].URL)
	assert.Equal(t, "https://x.test/about", pages[1].URL)
}

func TestNothingPublishedBeforeFirstRefresh(t *testing.T) {
	store := newStore(t, newFakeSite())
	counts, ok := store.ProductCounts()
	assert.False(t, ok)
	assert.Nil(t, counts)
	assert.Nil(t, store.Search("anything", 3))
	assert.Nil(t, store.Pages())
	assert.False(t, store.Ready())
}

func TestProductCountsSumToTotal(t *testing.T) {
	site := newFakeSite(
		page("https://x.test/a", "a",
			prod("Nescafe", models.CategoryCoffee),
			prod("KitKat", models.CategoryChocolate),
			prod("Aero", models.CategoryChocolate)),
		page("https://x.test/b", "b",
			prod("Water", models.CategoryOther),
			prod("Unknown", ""),
			prod("Cookies", models.CategoryRecipe)),
	)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := New(StaticSources{"https://x.test/a", "https://x.test/b"}, site, site, logger.NewNop(), WithClock(func() time.Time { return now }))

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	counts, ok := store.ProductCounts()
	require.True(t, ok)
	sum := 0
	for _, n := range counts.ProductsByCategory {
		sum += n
	}
	assert.Equal(t, counts.TotalProducts, sum)
	assert.Equal(t, 6, counts.TotalProducts)
	assert.Equal(t, map[string]int{"coffee": 1, "chocolate": 2, "other": 2, "recipe": 1}, counts.ProductsByCategory)
	assert.Equal(t, []string{"coffee", "chocolate", "other", "recipe"}, counts.Categories)
	assert.Equal(t, now, counts.LastUpdated)
}

func TestFailedFetchDropsPriorRecord(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", "a"), page("https://x.test/b", "b"))
	store := newStore(t, site, "https://x.test/a", "https://x.test/b")

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, store.Pages(), 2)

	site.setDown("https://x.test/b", true)
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)

	pages := store.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "https://x.test/a", pages[0].URL)
}

func TestAllFetchesFailingPublishesEmptyStore(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", "a", prod("KitKat", models.CategoryChocolate)))
	store := newStore(t, site, "https://x.test/a")
	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	site.setDown("https://x.test/a", true)
	summary, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pages)
	assert.Empty(t, store.Pages())

	counts, ok := store.ProductCounts()
	require.True(t, ok)
	assert.Equal(t, 0, counts.TotalProducts)
}

func TestRefreshFailureKeepsPreviousStore(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", "coffee"))
	store := newStore(t, site, "https://x.test/a")
	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	store.sources = failingSources{}
	_, err = store.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.Contains(t, err.Error(), "site config unreachable")

	require.Len(t, store.Pages(), 1)
	assert.Len(t, store.Search("coffee", 3), 1)
}

func TestCancelledRefreshKeepsPreviousStore(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", "a"), page("https://x.test/b", "b"))
	store := newStore(t, site, "https://x.test/a")
	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	store.sources = StaticSources{"https://x.test/b"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Refresh(ctx)
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, context.Canceled)

	pages := store.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "https://x.test/a", pages[0].URL)
}

func TestRefreshIsIdempotent(t *testing.T) {
	site := newFakeSite(
		page("https://x.test/a", "a", prod("KitKat", models.CategoryChocolate), prod("Nescafe", models.CategoryCoffee)),
		page("https://x.test/b", "b", prod("Cookies", models.CategoryRecipe)),
	)
	store := newStore(t, site, "https://x.test/a", "https://x.test/b")

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)
	first, _ := store.ProductCounts()

	_, err = store.Refresh(context.Background())
	require.NoError(t, err)
	second, _ := store.ProductCounts()

	assert.Equal(t, first.TotalProducts, second.TotalProducts)
	assert.Equal(t, first.ProductsByCategory, second.ProductsByCategory)
}

func TestConcurrentRefreshesShareOnePass(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", "a"), page("https://x.test/b", "b"))
	site.gate = make(chan struct{})
	store := newStore(t, site, "https://x.test/a", "https://x.test/b")

	var wg sync.WaitGroup
	summaries := make([]*models.RefreshSummary, 3)
	for i := range summaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := store.Refresh(context.Background())
			assert.NoError(t, err)
			summaries[i] = s
		}()
	}

	// let every caller reach the in-flight pass before it proceeds
	time.Sleep(100 * time.Millisecond)
	close(site.gate)
	wg.Wait()

	assert.Equal(t, int32(2), site.fetches.Load())
	assert.Same(t, summaries[0], summaries[1])
	assert.Same(t, summaries[1], summaries[2])
	assert.Len(t, store.Pages(), 2)
}

func TestFileSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("/\n{\"path\":\"/help\"}\nhttps://other.test/x\n"), 0o600))

	urls, err := FileSources{Path: path, BaseURL: "https://x.test"}.URLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.test/", "https://x.test/help", "https://other.test/x"}, urls)

	_, err = FileSources{Path: path + ".missing"}.URLs(context.Background())
	assert.Error(t, err)
}

func TestNewSources(t *testing.T) {
	src := NewSources("https://x.test", []string{"/", "/about"}, "")
	urls, err := src.URLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.test/", "https://x.test/about"}, urls)

	_, isFile := NewSources("https://x.test", nil, "pages.csv").(FileSources)
	assert.True(t, isFile)
}

func TestSearchBeforeAndAfterSwap(t *testing.T) {
	site := newFakeSite(page("https://x.test/a", strings.Repeat("coffee ", 3)))
	store := newStore(t, site, "https://x.test/a")
	assert.Empty(t, store.Search("coffee", 3))
	_, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.Search("coffee", 3), 1)
}
