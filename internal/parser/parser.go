
package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"support-chatbot/internal/models"
)

// maxFallbackNameLen bounds a product name taken from a card's whole text.
const maxFallbackNameLen = 100

// productSelectors are the product card patterns, scanned in order.
var productSelectors = []string{
	".product-card", ".product-item", ".product-tile",
	"[data-product]", ".recipe-card", ".recipe-item",
}

// nameSelectors are tried inside a card; the first that matches names it.
var nameSelectors = []string{"h3", "h4", ".product-title", ".product-name", "[data-product-name]"}

type categoryRule struct {
	category string
	words    []string
}

var categoryRules = []categoryRule{
	{models.CategoryCoffee, []string{"coffee", "espresso", "nescafe"}},
	{models.CategoryChocolate, []string{"kitkat", "smarties", "aero", "quality"}},
	{models.CategoryRecipe, []string{"recipe", "baking", "cookie"}},
}

var multiSpaceRe = regexp.MustCompile(` {2,}`)

// Parser turns fetched HTML into a PageRecord. Relative links and images are
// resolved against the site base address.
type Parser struct {
	baseURL string
	base    *url.URL
	now     func() time.Time
}

func New(baseURL string) *Parser {
	baseURL = strings.TrimRight(baseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	return &Parser{baseURL: baseURL, base: base, now: time.Now}
}

// Extract never fails: unreadable or malformed markup yields a record with
// whatever fields could be recovered.
func (p *Parser) Extract(page models.RawPage) models.PageRecord {
	rec := models.PageRecord{
		URL:       page.URL,
		Links:     []models.Link{},
		Images:    []models.Image{},
		Products:  []models.ProductMention{},
		ScrapedAt: p.now(),
	}

	doc, err := p.parse(page.Body, page.ContentType)
	if err != nil {
		return rec
	}

	doc.Find("script,style").Remove()

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	rec.Text = FlattenText(doc.Text())
	rec.Products = p.products(doc)
	rec.Links = p.links(doc)
	rec.Images = p.images(doc)
	return rec
}

func (p *Parser) parse(data []byte, contentType string) (*goquery.Document, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		utf8data = data
	}
	// Scripting off so <noscript> bodies parse as markup rather than raw text.
	root, err := html.ParseWithOptions(bytes.NewReader(utf8data), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// FlattenText collapses document text to a single line: each line is trimmed,
// split on runs of two or more spaces, and the non-empty fragments are joined
// with one space.
func FlattenText(text string) string {
	var chunks []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		line = strings.TrimSpace(line)
		for _, phrase := range multiSpaceRe.Split(line, -1) {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, " ")
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

func (p *Parser) links(doc *goquery.Document) []models.Link {
	links := []models.Link{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := p.resolve(s.AttrOr("href", ""))
		if !strings.Contains(href, p.baseURL) {
			return
		}
		links = append(links, models.Link{URL: href, Text: StrippedText(s)})
	})
	return links
}

func (p *Parser) images(doc *goquery.Document) []models.Image {
	images := []models.Image{}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		images = append(images, models.Image{
			Src:   p.resolve(s.AttrOr("src", "")),
			Alt:   s.AttrOr("alt", ""),
			Title: s.AttrOr("title", ""),
		})
	})
	return images
}

func (p *Parser) products(doc *goquery.Document) []models.ProductMention {
	products := []models.ProductMention{}
	for _, sel := range productSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			name := productName(s)
			if name == "" {
				return
			}
			products = append(products, models.ProductMention{
				Name:     name,
				Category: Categorize(name),
				URL:      p.productURL(s),
			})
		})
	}
	return products
}

func productName(card *goquery.Selection) string {
	for _, sel := range nameSelectors {
		if el := card.Find(sel).First(); el.Length() > 0 {
			return StrippedText(el)
		}
	}
	text := StrippedText(card)
	if utf8.RuneCountInString(text) < maxFallbackNameLen {
		return text
	}
	return ""
}

func (p *Parser) productURL(card *goquery.Selection) string {
	a := card.Find("a[href]").First()
	if a.Length() == 0 {
		return ""
	}
	return p.resolve(a.AttrOr("href", ""))
}

// Categorize assigns a product name to the first category whose keywords it contains.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.category
			}
		}
	}
	return models.CategoryOther
}

func (p *Parser) resolve(ref string) string {
	if !strings.HasPrefix(ref, "/") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.base.ResolveReference(u).String()
}

// StrippedText concatenates the trimmed text nodes under s with no separator.
func StrippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}
