package store

import (
	"time"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

// Analysis sources.
const (
	SourceClassifier = "classifier"
	SourcePipeline   = "pipeline"
	SourceCache      = "cache"
	SourceFallback   = "fallback"
)

// FeedbackAnalysis is a persisted analysis.
type FeedbackAnalysis struct {
	ID int64 `json:"id"`
	feedback.Analysis
	// Source is the producer of the analysis: classifier, pipeline, cache or fallback.
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// FindFeedbackAnalysis specifies conditions for finding analyses.
type FindFeedbackAnalysis struct {
	ID       *int64
	Category *string
	Priority *string
	Since    *time.Time
	Limit    int
}

// GetAnalysisStats specifies parameters for analysis statistics.
type GetAnalysisStats struct {
	Since time.Time
}

// AnalysisStats aggregates persisted analyses over a time window.
type AnalysisStats struct {
	Total       int64            `json:"total"`
	ByCategory  map[string]int64 `json:"by_category"`
	BySentiment map[string]int64 `json:"by_sentiment"`
	ByPriority  map[string]int64 `json:"by_priority"`
	ByRoute     map[string]int64 `json:"by_route"`
	BySource    map[string]int64 `json:"by_source"`
	Since       time.Time        `json:"since"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// AnalysisSummary is a stored statistics snapshot.
type AnalysisSummary struct {
	ID        int64          `json:"id"`
	Data      *AnalysisStats `json:"summary_data"`
	CreatedAt time.Time      `json:"created_at"`
}

// StatsColumns are the columns GetAnalysisStats groups by.
var StatsColumns = []string{"category", "sentiment", "priority", "route", "source"}

// NewAnalysisStats returns empty stats with every breakdown initialized.
func NewAnalysisStats(since time.Time) *AnalysisStats {
	return &AnalysisStats{
		ByCategory:  map[string]int64{},
		BySentiment: map[string]int64{},
		ByPriority:  map[string]int64{},
		ByRoute:     map[string]int64{},
		BySource:    map[string]int64{},
		Since:       since,
		GeneratedAt: time.Now(),
	}
}

// Breakdown returns the map holding counts for a column of StatsColumns.
func (s *AnalysisStats) Breakdown(column string) map[string]int64 {
	switch column {
	case "category":
		return s.ByCategory
	case "sentiment":
		return s.BySentiment
	case "priority":
		return s.ByPriority
	case "route":
		return s.ByRoute
	case "source":
		return s.BySource
	}
	return nil
}
