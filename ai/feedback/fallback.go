package feedback

// FallbackNote is attached to responses built from the fallback analysis.
const FallbackNote = "Fallback analysis used: analysis pipeline unavailable"

// Fallback returns the fixed analysis substituted when the pipeline fails.
// It is a single-attempt substitute; callers do not retry the pipeline.
func Fallback(text string) *Analysis {
	return &Analysis{
		Feedback:      text,
		Category:      CategoryQuery,
		Entities:      []string{GeneralFeedbackEntity},
		Summary:       "Customer feedback requires manual review",
		Sentiment:     SentimentNeutral,
		Priority:      PriorityMedium,
		Route:         RouteGeneralSupport,
		ActionItems:   []string{"Review customer feedback manually"},
		TrendAnalysis: "Fallback analysis due to system limitations",
	}
}
