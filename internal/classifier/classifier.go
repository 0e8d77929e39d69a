
package classifier

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"support-chatbot/internal/models"
)

// Rule maps a phrase set to an intent. Phrases are matched as lowercase substrings.
type Rule struct {
	Intent  models.Intent
	Phrases []string
}

// DefaultRules is evaluated top to bottom and the first matching rule wins,
// so "where can i buy" resolves to location even though it also says "buy".
var DefaultRules = []Rule{
	{models.IntentLocation, []string{"near me", "nearby", "close by", "where can i buy", "stores near", "in my area"}},
	{models.IntentCount, []string{"how many", "count", "number of", "total products"}},
	{models.IntentPurchase, []string{"buy online", "amazon", "purchase", "order online"}},
}

type compiledRule struct {
	intent  models.Intent
	matcher *ahocorasick.Matcher
}

type Classifier struct {
	rules []compiledRule
}

func New() *Classifier { return NewWithRules(DefaultRules) }

func NewWithRules(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		phrases := make([]string, 0, len(r.Phrases))
		for _, p := range r.Phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) == 0 {
			continue
		}
		c.rules = append(c.rules, compiledRule{
			intent:  r.Intent,
			matcher: ahocorasick.NewStringMatcher(phrases),
		})
	}
	return c
}

// Classify returns the intent of the first rule with a phrase occurring in
// the utterance, or IntentGeneral.
func (c *Classifier) Classify(utterance string) models.Intent {
	text := []byte(strings.ToLower(utterance))
	for _, r := range c.rules {
		if len(r.matcher.Match(text)) > 0 {
			return r.intent
		}
	}
	return models.IntentGeneral
}
