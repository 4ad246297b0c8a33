package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// FeedbackAnalysis model related methods.
	CreateFeedbackAnalysis(ctx context.Context, create *FeedbackAnalysis) (*FeedbackAnalysis, error)
	ListFeedbackAnalyses(ctx context.Context, find *FindFeedbackAnalysis) ([]*FeedbackAnalysis, error)
	GetAnalysisStats(ctx context.Context, get *GetAnalysisStats) (*AnalysisStats, error)

	// AnalysisSummary model related methods.
	CreateAnalysisSummary(ctx context.Context, create *AnalysisSummary) (*AnalysisSummary, error)
	ListAnalysisSummaries(ctx context.Context, limit int) ([]*AnalysisSummary, error)
}
