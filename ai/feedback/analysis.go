// Package feedback provides the feedback analysis model and the keyword classifier
// used in demo mode.
package feedback

import "unicode/utf8"

// MaxFeedbackLength is the maximum feedback length in characters (runes).
const MaxFeedbackLength = 10000

// Category is the feedback category.
type Category string

const (
	CategoryComplaint  Category = "Complaint"
	CategoryPraise     Category = "Praise"
	CategorySuggestion Category = "Suggestion"
	CategoryQuery      Category = "Query"
)

// Sentiment is the customer sentiment carried by the feedback.
type Sentiment string

const (
	SentimentNegative Sentiment = "Negative"
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
)

// Priority is the handling priority assigned to the feedback.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Routes.
const (
	RouteCustomerService = "Customer Service Team"
	RouteRecognition     = "HR/Employee Recognition"
	RouteProduct         = "Product Development"
	RouteKnowledgeBase   = "FAQ/Knowledge Base Update"
	RouteGeneralSupport  = "General Support"
)

// GeneralFeedbackEntity is used when no known entity is found in the feedback.
const GeneralFeedbackEntity = "general feedback"

// Analysis is the structured result of analyzing one piece of feedback.
// Every producer (classifier, pipeline, fallback) returns this type.
type Analysis struct {
	Feedback      string    `json:"feedback"`
	Category      Category  `json:"category"`
	Entities      []string  `json:"entities"`
	Summary       string    `json:"summary"`
	Sentiment     Sentiment `json:"sentiment"`
	Priority      Priority  `json:"priority"`
	Route         string    `json:"route"`
	ActionItems   []string  `json:"action_items"`
	TrendAnalysis string    `json:"trend_analysis"`
}

// Clone returns a deep copy of the analysis.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	c := *a
	c.Entities = append([]string(nil), a.Entities...)
	c.ActionItems = append([]string(nil), a.ActionItems...)
	return &c
}

// ParseCategory returns the category matching s exactly.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryComplaint, CategoryPraise, CategorySuggestion, CategoryQuery:
		return c, true
	}
	return "", false
}

// ParseSentiment returns the sentiment matching s exactly.
func ParseSentiment(s string) (Sentiment, bool) {
	switch v := Sentiment(s); v {
	case SentimentNegative, SentimentPositive, SentimentNeutral:
		return v, true
	}
	return "", false
}

// ParsePriority returns the priority matching s exactly.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// RouteFor returns the team a category is routed to.
// Unknown categories go to general support.
func RouteFor(c Category) string {
	if p, ok := profiles[c]; ok {
		return p.route
	}
	return RouteGeneralSupport
}

// CharCount returns the feedback length in characters.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}
