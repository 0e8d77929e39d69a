
package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-chatbot/internal/models"
)

func TestClassify(t *testing.T) {
	cl := New()
	cases := []struct {
		utterance string
		want      models.Intent
	}{
		{"Where can I buy KitKat near me", models.IntentLocation},
		{"any stores NEARBY?", models.IntentLocation},
		{"How many chocolate products are there", models.IntentCount},
		{"what is the total products listed", models.IntentCount},
		{"I want to order online", models.IntentPurchase},
		{"can I buy online?", models.IntentPurchase},
		// "order kitkat online" is not the phrase "order online"
		{"I want to order kitkat online", models.IntentGeneral},
		{"is Aero on Amazon", models.IntentPurchase},
		{"tell me about sustainability", models.IntentGeneral},
		{"", models.IntentGeneral},
		// location is checked before count and purchase
		{"how many stores near me sell it on amazon", models.IntentLocation},
		// count is checked before purchase
		{"count the products I can purchase", models.IntentCount},
		// substring match, not word match
		{"my account balance", models.IntentCount},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cl.Classify(tc.utterance), tc.utterance)
	}
}

func TestClassifyCustomRules(t *testing.T) {
	cl := NewWithRules([]Rule{
		{Intent: models.IntentPurchase, Phrases: []string{"Buy"}},
		{Intent: models.IntentCount, Phrases: []string{"  "}},
	})
	assert.Equal(t, models.IntentPurchase, cl.Classify("BUY it"))
	assert.Equal(t, models.IntentGeneral, cl.Classify("how many"))
}

func TestTopics(t *testing.T) {
	topics := Topics("go go network network network parsing parsing", 3)
	assert.Equal(t, []string{"network", "parsing"}, topics)

	assert.Empty(t, Topics("the and of", 5))
	assert.Equal(t, []string{"aaa"}, Topics("bbb aaa", 1))
}
