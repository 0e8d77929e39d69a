
// Package catalog holds the static product table used for purchase and
// location answers.
package catalog

import (
	"strings"

	"support-chatbot/internal/models"
)

var defaultEntries = []models.CatalogEntry{
	{
		Key:            "kitkat",
		Name:           "KitKat",
		Description:    "Crispy wafer bars covered in milk chocolate",
		AmazonURL:      "https://www.amazon.ca/Kit-Kat-Chunky-Bar-42g/dp/B0742K5P6K",
		Categories:     []string{"chocolate", "wafer", "snacks"},
		AvailableSizes: []string{"42g", "4-pack", "Halloween pack"},
	},
	{
		Key:            "smarties",
		Name:           "Smarties",
		Description:    "Colorful candy-coated chocolate pieces",
		AmazonURL:      "https://www.amazon.ca/Smarties-Milk-Chocolate-Pack-38g/dp/B078WTQXPZ",
		Categories:     []string{"chocolate", "candy", "colorful"},
		AvailableSizes: []string{"38g tube", "6-pack", "Party size"},
	},
	{
		Key:            "quality street",
		Name:           "Quality Street",
		Description:    "Premium assorted chocolates and toffees",
		AmazonURL:      "https://www.amazon.ca/Quality-Street-Assorted-Chocolates-Toffees/dp/B075ZXQR4S",
		Categories:     []string{"chocolate", "premium", "assorted", "gift"},
		AvailableSizes: []string{"240g", "480g", "720g tin"},
	},
	{
		Key:            "coffee crisp",
		Name:           "Coffee Crisp",
		Description:    "Light, airy wafer with coffee-flavored cream",
		AmazonURL:      "https://www.amazon.ca/Coffee-Crisp-Chocolate-Bar-50g/dp/B006GIQZXU",
		Categories:     []string{"chocolate", "coffee", "wafer"},
		AvailableSizes: []string{"50g", "4-pack", "Fun size pack"},
	},
	{
		Key:            "aero",
		Name:           "Aero",
		Description:    "Bubbly milk chocolate bar",
		AmazonURL:      "https://www.amazon.ca/Aero-Milk-Chocolate-Bar-42g/dp/B0742JQXJ8",
		Categories:     []string{"chocolate", "bubbly", "milk chocolate"},
		AvailableSizes: []string{"42g", "4-pack", "Mini bars"},
	},
}

// Catalog is immutable after construction. Entry order decides which product
// wins when an utterance names more than one.
type Catalog struct {
	entries []models.CatalogEntry
}

// Default returns the built-in product table.
func Default() *Catalog { return New(defaultEntries) }

func New(entries []models.CatalogEntry) *Catalog {
	c := &Catalog{entries: make([]models.CatalogEntry, len(entries))}
	copy(c.entries, entries)
	for i := range c.entries {
		c.entries[i].Key = strings.ToLower(c.entries[i].Key)
	}
	return c
}

// Match returns the first entry whose key or display name occurs in the
// utterance, case-insensitively.
func (c *Catalog) Match(utterance string) (models.CatalogEntry, bool) {
	lower := strings.ToLower(utterance)
	for _, e := range c.entries {
		if strings.Contains(lower, e.Key) || strings.Contains(lower, strings.ToLower(e.Name)) {
			return e, true
		}
	}
	return models.CatalogEntry{}, false
}

func (c *Catalog) Entries() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByKey is the catalog as served to the frontend, keyed by product key.
func (c *Catalog) ByKey() map[string]models.CatalogEntry {
	out := make(map[string]models.CatalogEntry, len(c.entries))
	for _, e := range c.entries {
		out[e.Key] = e
	}
	return out
}
