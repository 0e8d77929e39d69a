
// Package chat turns a user utterance into the reply text. Count, purchase
// and location questions are answered from local data; everything else goes
// to the completion service with the best matching page snippets attached.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"support-chatbot/internal/catalog"
	"support-chatbot/internal/classifier"
	"support-chatbot/internal/knowledge"
	"support-chatbot/internal/llm"
	"support-chatbot/internal/metrics"
	"support-chatbot/internal/models"
	"support-chatbot/pkg/logger"
)

const (
	UnavailableMessage = "I'm sorry, the AI service is currently unavailable. Please try again later or visit www.madewithnestle.ca for more information."
	TroubleMessage     = "I'm sorry, I'm having trouble processing your request right now. Please try again later or visit www.madewithnestle.ca for more information."
	NoCountsMessage    = "I don't have current product count information. Let me refresh my knowledge base and try again."

	systemPrompt = `You are SMARTIE, a helpful assistant for the Made with Nestlé Canada website.
You help users find information about Nestlé products, recipes, nutrition, sustainability practices, and general inquiries.

Always be friendly, helpful, and provide accurate information based on the context provided.
If you don't have specific information, suggest where users might find it on the website.
Keep responses conversational but informative.

When providing information, always try to include relevant links when available.

You can also help users find stores, purchase products online, and get product counts.`

	maxReplyLinks = 2
)

// Knowledge is the read side of the page store.
type Knowledge interface {
	Search(query string, k int) []models.SearchResult
	ProductCounts() (*models.ProductCountSnapshot, bool)
}

type Composer struct {
	classifier *classifier.Classifier
	kb         Knowledge
	catalog    *catalog.Catalog
	completer  llm.Completer
	metrics    *metrics.Metrics
	log        logger.Logger
	timeout    time.Duration
	maxTokens  int
	temp       float64
}

type Option func(*Composer)

func WithClassifier(c *classifier.Classifier) Option {
	return func(cp *Composer) { cp.classifier = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cp *Composer) { cp.metrics = m }
}

// WithCompletion sets the per-request bound and sampling settings for model calls.
func WithCompletion(timeout time.Duration, maxTokens int, temperature float64) Option {
	return func(cp *Composer) {
		cp.timeout = timeout
		cp.maxTokens = maxTokens
		cp.temp = temperature
	}
}

// New builds a composer. A nil completer means the completion service is not
// configured; general questions then get UnavailableMessage.
func New(kb Knowledge, cat *catalog.Catalog, completer llm.Completer, log logger.Logger, opts ...Option) *Composer {
	c := &Composer{
		classifier: classifier.New(),
		kb:         kb,
		catalog:    cat,
		completer:  completer,
		log:        log,
		timeout:    llm.DefaultTimeout,
		maxTokens:  llm.DefaultMaxTokens,
		temp:       llm.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Respond classifies the utterance and composes the reply for it.
func (c *Composer) Respond(ctx context.Context, utterance string, loc *models.Location) models.Reply {
	intent := c.classifier.Classify(utterance)
	c.metrics.ObserveChat(string(intent))
	c.log.Debug("utterance classified", logger.String("intent", string(intent)))
	return models.Reply{Text: c.Compose(ctx, utterance, intent, loc), Intent: intent}
}

// Compose answers for an already known intent. It never fails; every error
// path ends in a user-presentable message.
func (c *Composer) Compose(ctx context.Context, utterance string, intent models.Intent, loc *models.Location) string {
	switch intent {
	case models.IntentCount:
		return c.countReply(utterance)
	case models.IntentPurchase:
		return c.purchaseReply(utterance)
	case models.IntentLocation:
		if loc != nil && !loc.IsZero() {
			return c.locationReply(utterance)
		}
	}
	return c.generalReply(ctx, utterance)
}

func (c *Composer) countReply(utterance string) string {
	counts, ok := c.kb.ProductCounts()
	if !ok {
		return NoCountsMessage
	}

	lower := strings.ToLower(utterance)
	switch {
	case strings.Contains(lower, models.CategoryCoffee):
		return fmt.Sprintf("Based on my latest scan of the Made with Nestlé Canada website, I found %d coffee-related products listed.",
			counts.ProductsByCategory[models.CategoryCoffee])
	case strings.Contains(lower, models.CategoryChocolate):
		return fmt.Sprintf("I found %d chocolate products currently listed on the website.",
			counts.ProductsByCategory[models.CategoryChocolate])
	case strings.Contains(lower, models.CategoryRecipe):
		return fmt.Sprintf("There are %d recipes currently available on the Made with Nestlé Canada website.",
			counts.ProductsByCategory[models.CategoryRecipe])
	}

	title := cases.Title(language.English)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on my latest scan, I found %d total products/items on the Made with Nestlé Canada website.\n\n", counts.TotalProducts)
	sb.WriteString("Breakdown by category:\n")
	for _, cat := range counts.Categories {
		fmt.Fprintf(&sb, "• %s: %d items\n", title.String(cat), counts.ProductsByCategory[cat])
	}
	fmt.Fprintf(&sb, "\n*Last updated: %s*", counts.LastUpdated.Format(time.RFC3339))
	return sb.String()
}

func (c *Composer) purchaseReply(utterance string) string {
	p, ok := c.catalog.Match(utterance)
	if !ok {
		return "You can find Nestlé products online at various retailers:\n\n" +
			"🛒 **Amazon Canada**: Wide selection of Nestlé products\n" +
			"🏪 **Major grocery chains**: Loblaws, Metro, Walmart\n" +
			"🛍️ **Online grocery**: Instacart, PC Express\n\n" +
			"Would you like me to help you find a specific product?"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You can purchase %s online:\n\n", p.Name)
	fmt.Fprintf(&sb, "🛒 **Amazon Canada**: [%s](%s)\n\n", p.Name, p.AmazonURL)
	fmt.Fprintf(&sb, "📦 Available sizes: %s\n\n", strings.Join(p.AvailableSizes, ", "))
	sb.WriteString("💡 *Tip: Check for local availability and delivery options at checkout.*")
	return sb.String()
}

// locationReply leaves the actual store lookup to the caller's frontend.
func (c *Composer) locationReply(utterance string) string {
	p, ok := c.catalog.Match(utterance)
	if !ok {
		return "I can help you find nearby stores that carry Nestlé products! Make sure location services are enabled and I'll show you the closest options with directions and contact details."
	}
	return fmt.Sprintf("I can help you find stores near you that carry %s! ", p.Name) +
		"The location service will show you nearby stores with distances and contact information. " +
		fmt.Sprintf("You can also order online: [%s on Amazon](%s)", p.Name, p.AmazonURL)
}

func (c *Composer) generalReply(ctx context.Context, utterance string) string {
	if c.completer == nil {
		c.metrics.ObserveCompletion("unconfigured")
		return UnavailableMessage
	}

	results := c.kb.Search(utterance, knowledge.DefaultResultLimit)
	contextBlock, links := buildContext(results)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	answer, err := c.completer.Complete(ctx, llm.Prompt{
		System:      systemPrompt,
		User:        userPrompt(utterance, contextBlock),
		MaxTokens:   c.maxTokens,
		Temperature: llm.Temperature(c.temp),
	})
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			c.log.Error("completion service rejected request",
				logger.Int("status", apiErr.StatusCode), logger.Error(err))
		} else {
			c.log.Error("completion request failed", logger.Error(err))
		}
		c.metrics.ObserveCompletion("error")
		return TroubleMessage
	}
	c.metrics.ObserveCompletion("ok")

	return answer + formatLinks(links)
}

func buildContext(results []models.SearchResult) (string, []models.Link) {
	if len(results) == 0 {
		return "", nil
	}
	var sb strings.Builder
	var links []models.Link
	sb.WriteString("Based on information from the Made with Nestlé Canada website:\n\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "From %s: %s\n\n", r.Title, r.Text)
		links = append(links, r.Links...)
	}
	return sb.String(), links
}

func userPrompt(utterance, contextBlock string) string {
	return fmt.Sprintf(`User question: %s

Context from website:
%s

Please provide a helpful response to the user's question. If you reference specific information, mention that it comes from the Made with Nestlé Canada website.`, utterance, contextBlock)
}

// formatLinks considers only the first two gathered links and skips those
// missing text or url, so fewer than two may be listed.
func formatLinks(links []models.Link) string {
	if len(links) == 0 {
		return ""
	}
	if len(links) > maxReplyLinks {
		links = links[:maxReplyLinks]
	}
	var sb strings.Builder
	sb.WriteString("\n\nHere are some helpful links:\n")
	for _, l := range links {
		if l.Text != "" && l.URL != "" {
			fmt.Fprintf(&sb, "• [%s](%s)\n", l.Text, l.URL)
		}
	}
	return sb.String()
}
