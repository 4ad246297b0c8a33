package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultListLimit caps list queries without an explicit limit.
const DefaultListLimit = 50

// MaxListLimit is the largest accepted list limit.
const MaxListLimit = 500

// Store provides database access to all raw objects.
type Store struct {
	driver Driver
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateFeedbackAnalysis(ctx context.Context, create *FeedbackAnalysis) (*FeedbackAnalysis, error) {
	if create.Feedback == "" {
		return nil, errors.New("feedback is required")
	}
	return s.driver.CreateFeedbackAnalysis(ctx, create)
}

// GetFeedbackAnalysis returns the analysis with the given id, or nil if none exists.
func (s *Store) GetFeedbackAnalysis(ctx context.Context, id int64) (*FeedbackAnalysis, error) {
	list, err := s.driver.ListFeedbackAnalyses(ctx, &FindFeedbackAnalysis{ID: &id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListFeedbackAnalyses returns analyses newest first.
func (s *Store) ListFeedbackAnalyses(ctx context.Context, find *FindFeedbackAnalysis) ([]*FeedbackAnalysis, error) {
	if find == nil {
		find = &FindFeedbackAnalysis{}
	}
	if find.Limit <= 0 {
		find.Limit = DefaultListLimit
	}
	if find.Limit > MaxListLimit {
		find.Limit = MaxListLimit
	}
	return s.driver.ListFeedbackAnalyses(ctx, find)
}

func (s *Store) GetAnalysisStats(ctx context.Context, get *GetAnalysisStats) (*AnalysisStats, error) {
	return s.driver.GetAnalysisStats(ctx, get)
}

func (s *Store) CreateAnalysisSummary(ctx context.Context, create *AnalysisSummary) (*AnalysisSummary, error) {
	if create.Data == nil {
		return nil, errors.New("summary data is required")
	}
	return s.driver.CreateAnalysisSummary(ctx, create)
}

// ListAnalysisSummaries returns stored snapshots newest first.
func (s *Store) ListAnalysisSummaries(ctx context.Context, limit int) ([]*AnalysisSummary, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	return s.driver.ListAnalysisSummaries(ctx, limit)
}

// SnapshotStats computes the statistics of the last window and stores them
// as an analysis summary.
func (s *Store) SnapshotStats(ctx context.Context, window time.Duration) (*AnalysisSummary, error) {
	stats, err := s.driver.GetAnalysisStats(ctx, &GetAnalysisStats{Since: time.Now().Add(-window)})
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute stats")
	}
	summary, err := s.driver.CreateAnalysisSummary(ctx, &AnalysisSummary{Data: stats})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store summary")
	}
	return summary, nil
}
