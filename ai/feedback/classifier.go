package feedback

import (
	"fmt"
	"strings"
)

// categoryRule maps a keyword set to a category.
// Rules are evaluated in order; the first rule with a matching keyword wins.
type categoryRule struct {
	category Category
	keywords []string
}

// categoryProfile holds the fields derived 1:1 from a category.
type categoryProfile struct {
	sentiment   Sentiment
	priority    Priority
	route       string
	actionItems []string
}

// Negative feedback is triaged first, so Complaint precedes Praise and Suggestion.
var categoryRules = []categoryRule{
	{
		category: CategoryComplaint,
		keywords: []string{"hate", "terrible", "awful", "worst", "complaint", "problem", "issue", "broken"},
	},
	{
		category: CategoryPraise,
		keywords: []string{"love", "amazing", "excellent", "great", "fantastic", "wonderful", "praise"},
	},
	{
		category: CategorySuggestion,
		keywords: []string{"suggest", "could", "should", "improve", "idea", "recommendation"},
	},
}

var profiles = map[Category]categoryProfile{
	CategoryComplaint: {
		sentiment: SentimentNegative,
		priority:  PriorityHigh,
		route:     RouteCustomerService,
		actionItems: []string{
			"Contact customer within 24 hours to address concerns",
			"Investigate reported issues and provide solutions",
			"Follow up to ensure customer satisfaction",
		},
	},
	CategoryPraise: {
		sentiment: SentimentPositive,
		priority:  PriorityMedium,
		route:     RouteRecognition,
		actionItems: []string{
			"Share positive feedback with relevant team members",
			"Consider featuring this feedback in marketing materials",
			"Recognize employees mentioned in the feedback",
		},
	},
	CategorySuggestion: {
		sentiment: SentimentNeutral,
		priority:  PriorityMedium,
		route:     RouteProduct,
		actionItems: []string{
			"Review suggestion with product development team",
			"Assess feasibility of implementing suggested improvements",
			"Consider including in product roadmap",
		},
	},
	CategoryQuery: {
		sentiment: SentimentNeutral,
		priority:  PriorityLow,
		route:     RouteKnowledgeBase,
		actionItems: []string{
			"Provide detailed response to customer query",
			"Update FAQ if this is a common question",
			"Ensure knowledge base has relevant information",
		},
	},
}

// entityVocabulary is scanned in this order; output order follows it.
var entityVocabulary = []string{
	"product", "service", "staff", "website", "app", "delivery", "quality", "price", "support",
}

// Classify analyzes feedback with keyword rules.
// It never fails and holds no state, so it is safe for concurrent use.
func Classify(text string) *Analysis {
	lower := strings.ToLower(text)

	category := MatchCategory(lower)
	p := profiles[category]
	entities := ExtractEntities(lower)

	return &Analysis{
		Feedback:      text,
		Category:      category,
		Entities:      entities,
		Summary:       Summarize(p.sentiment, entities),
		Sentiment:     p.sentiment,
		Priority:      p.priority,
		Route:         p.route,
		ActionItems:   append([]string(nil), p.actionItems...),
		TrendAnalysis: TrendAnalysis(p.sentiment, category),
	}
}

// MatchCategory returns the category of the first rule with a keyword
// contained in text, or Query when none match. Matching is case-insensitive.
func MatchCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			return rule.category
		}
	}
	return CategoryQuery
}

// ExtractEntities returns the vocabulary keywords contained in text, in
// vocabulary order. It returns the general feedback entity when none match.
func ExtractEntities(text string) []string {
	lower := strings.ToLower(text)
	var entities []string
	for _, keyword := range entityVocabulary {
		if strings.Contains(lower, keyword) {
			entities = append(entities, keyword)
		}
	}
	if len(entities) == 0 {
		return []string{GeneralFeedbackEntity}
	}
	return entities
}

// Summarize builds the templated summary for a sentiment and entity list.
func Summarize(sentiment Sentiment, entities []string) string {
	return fmt.Sprintf("Customer provided %s feedback regarding %s",
		strings.ToLower(string(sentiment)), strings.Join(entities, ", "))
}

// TrendAnalysis builds the templated trend line for a sentiment and category.
func TrendAnalysis(sentiment Sentiment, category Category) string {
	return fmt.Sprintf("%s customer sentiment in %s category", sentiment, strings.ToLower(string(category)))
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
