package pipeline

import (
	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

// State is the value passed through the graph.
type State struct {
	// Feedback is the customer feedback under analysis.
	Feedback string `json:"feedback"`
	// Category is one of Complaint, Praise, Suggestion, Query.
	Category string `json:"category"`
	// Entities are the things the feedback talks about.
	Entities []string `json:"entities"`
	// Summary is a one-sentence summary of the feedback.
	Summary string `json:"summary"`
	// Sentiment is one of Negative, Positive, Neutral.
	Sentiment string `json:"sentiment"`
	// Priority is one of High, Medium, Low.
	Priority string `json:"priority"`
	// Route is the team the feedback is routed to.
	Route string `json:"route"`
	// ActionItems are the follow-ups suggested for the feedback.
	ActionItems []string `json:"action_items"`
	// TrendAnalysis is a short statement about the sentiment trend.
	TrendAnalysis string `json:"trend_analysis"`
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	c := s
	c.Entities = append([]string(nil), s.Entities...)
	c.ActionItems = append([]string(nil), s.ActionItems...)
	return c
}

// ToAnalysis converts a completed state into an analysis.
func (s State) ToAnalysis() (*feedback.Analysis, error) {
	category, ok := feedback.ParseCategory(s.Category)
	if !ok {
		return nil, errors.Errorf("invalid category %q", s.Category)
	}
	sentiment, ok := feedback.ParseSentiment(s.Sentiment)
	if !ok {
		return nil, errors.Errorf("invalid sentiment %q", s.Sentiment)
	}
	priority, ok := feedback.ParsePriority(s.Priority)
	if !ok {
		return nil, errors.Errorf("invalid priority %q", s.Priority)
	}
	if len(s.ActionItems) == 0 {
		return nil, errors.New("no action items")
	}

	entities := append([]string(nil), s.Entities...)
	if len(entities) == 0 {
		entities = []string{feedback.GeneralFeedbackEntity}
	}
	route := s.Route
	if route == "" {
		route = feedback.RouteFor(category)
	}

	return &feedback.Analysis{
		Feedback:      s.Feedback,
		Category:      category,
		Entities:      entities,
		Summary:       s.Summary,
		Sentiment:     sentiment,
		Priority:      priority,
		Route:         route,
		ActionItems:   append([]string(nil), s.ActionItems...),
		TrendAnalysis: s.TrendAnalysis,
	}, nil
}
