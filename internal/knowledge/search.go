
package knowledge

import (
	"sort"
	"strings"

	"support-chatbot/internal/models"
)

const (
	DefaultResultLimit = 3
	maxSnippetRunes    = 500
	maxResultLinks     = 3
)

// Search scores every stored page against the query and returns the best k
// (DefaultResultLimit when k <= 0). A page scores the number of times each
// query term occurs in its text as a plain substring, so "tea" also counts
// inside "steam". Pages scoring zero are dropped; ties keep fetch order.
func (s *Store) Search(query string, k int) []models.SearchResult {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	if k <= 0 {
		k = DefaultResultLimit
	}

	terms := strings.Fields(strings.ToLower(query))
	var results []models.SearchResult
	for _, p := range snap.pages {
		if p.Text == "" {
			continue
		}
		score := Score(terms, strings.ToLower(p.Text))
		if score == 0 {
			continue
		}
		results = append(results, models.SearchResult{
			URL:      p.URL,
			Title:    p.Title,
			Text:     truncate(p.Text, maxSnippetRunes),
			Score:    score,
			Links:    firstLinks(p.Links, maxResultLinks),
			Products: p.Products,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Score sums the non-overlapping occurrences of each term in text.
func Score(terms []string, text string) int {
	score := 0
	for _, t := range terms {
		score += strings.Count(text, t)
	}
	return score
}

func truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func firstLinks(links []models.Link, n int) []models.Link {
	if len(links) > n {
		links = links[:n]
	}
	out := make([]models.Link, len(links))
	copy(out, links)
	return out
}
