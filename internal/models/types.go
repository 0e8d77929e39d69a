
package models

import "time"

// Product categories, in the order the extractor tests them.
const (
	CategoryCoffee    = "coffee"
	CategoryChocolate = "chocolate"
	CategoryRecipe    = "recipe"
	CategoryOther     = "other"
)

type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type Image struct {
	Src   string `json:"src"`
	Alt   string `json:"alt"`
	Title string `json:"title"`
}

type ProductMention struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	URL      string `json:"url,omitempty"`
}

// PageRecord is what the extractor produces for one fetched URL.
type PageRecord struct {
	URL       string           `json:"url"`
	Title     string           `json:"title"`
	Text      string           `json:"text"`
	Links     []Link           `json:"links"`
	Images    []Image          `json:"images"`
	Products  []ProductMention `json:"products"`
	ScrapedAt time.Time        `json:"scraped_at"`
}

// RawPage is a successful fetch, before extraction.
type RawPage struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	ContentType   string        `json:"content_type"`
	StatusCode    int           `json:"status_code"`
	Body          []byte        `json:"-"`
	FetchDuration time.Duration `json:"fetch_duration"`
}

// ProductCountSnapshot aggregates product mentions across all stored pages.
// Categories lists the keys of ProductsByCategory in first-seen order.
type ProductCountSnapshot struct {
	TotalProducts      int            `json:"total_products"`
	ProductsByCategory map[string]int `json:"products_by_category"`
	Categories         []string       `json:"-"`
	LastUpdated        time.Time      `json:"last_updated"`
}

type SearchResult struct {
	URL      string           `json:"url"`
	Title    string           `json:"title"`
	Text     string           `json:"text"`
	Score    int              `json:"score"`
	Links    []Link           `json:"links"`
	Products []ProductMention `json:"products"`
}

type RefreshSummary struct {
	Pages     int           `json:"pages"`
	Failed    []string      `json:"failed,omitempty"`
	Products  int           `json:"products"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type CatalogEntry struct {
	Key            string   `json:"-"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AmazonURL      string   `json:"amazon_url"`
	Categories     []string `json:"categories"`
	AvailableSizes []string `json:"available_sizes"`
}

type Intent string

const (
	IntentLocation Intent = "location"
	IntentCount    Intent = "count"
	IntentPurchase Intent = "purchase"
	IntentGeneral  Intent = "general"
)

// Location is the browser geolocation the frontend attaches to a chat message.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// IsZero reports whether l carries nothing, as when a client posts "location": {}.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0 && l.Accuracy == 0 && l.Timestamp.IsZero()
}

type Reply struct {
	Text   string `json:"response"`
	Intent Intent `json:"query_type"`
}
